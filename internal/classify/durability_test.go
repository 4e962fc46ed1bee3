package classify

import (
	"testing"

	"github.com/caseledger/caseledger/internal/ledger"
)

// ledgerFor replays raw rows and returns the classified stream.
func ledgerFor(t *testing.T, rows ...ledger.RawEvent) []Event {
	t.Helper()
	return Classify(rows).Events
}

func recordFor(t *testing.T, records []AttemptRecord, date string) AttemptRecord {
	t.Helper()
	want := day(t, date)
	for _, rec := range records {
		if rec.Date.Equal(want) {
			return rec
		}
	}
	t.Fatalf("no attempt record on %s", date)
	return AttemptRecord{}
}

// Scenario: single accept and complete, ample future data. The attempt
// must resolve durable with nothing pending.
func TestClassifyDurability_CleanCloseIsDurable(t *testing.T) {
	events := ledgerFor(t,
		ledger.RawEvent{Seq: 0, EntityID: "C1", Type: ledger.EventAccepted, Date: day(t, "2012-01-01")},
		ledger.RawEvent{Seq: 1, EntityID: "C1", Type: ledger.EventCompleted, Date: day(t, "2012-01-05")},
	)

	records := ClassifyDurability(events, 30, day(t, "2013-02-04")) // ledger ends ~day 400

	if len(records) != 1 {
		t.Fatalf("expected 1 attempt record, got %d", len(records))
	}
	if records[0].Durability != Durable {
		t.Errorf("expected durable, got %s", records[0].Durability)
	}
}

// Scenario: reopen 5 days after the first attempt bounces it; the
// post-reopen attempt with a quiet horizon is durable.
func TestClassifyDurability_InWindowReopenBounces(t *testing.T) {
	events := ledgerFor(t,
		ledger.RawEvent{Seq: 0, EntityID: "C2", Type: ledger.EventAccepted, Date: day(t, "2012-01-01")},
		ledger.RawEvent{Seq: 1, EntityID: "C2", Type: ledger.EventCompleted, Date: day(t, "2012-01-05")},
		ledger.RawEvent{Seq: 2, EntityID: "C2", Type: ledger.EventAccepted, Date: day(t, "2012-01-10")},
		ledger.RawEvent{Seq: 3, EntityID: "C2", Type: ledger.EventCompleted, Date: day(t, "2012-01-20")},
	)

	records := ClassifyDurability(events, 30, day(t, "2013-02-04"))

	if len(records) != 2 {
		t.Fatalf("expected 2 attempt records, got %d", len(records))
	}
	if got := recordFor(t, records, "2012-01-05").Durability; got != Bounced {
		t.Errorf("first attempt: expected bounced, got %s", got)
	}
	if got := recordFor(t, records, "2012-01-20").Durability; got != Durable {
		t.Errorf("second attempt: expected durable, got %s", got)
	}
}

// Scenario: attempt near the end of the data. Its window runs past the
// last observed date, so it must stay pending rather than resolve
// durable by absence of evidence.
func TestClassifyDurability_TruncatedWindowIsPending(t *testing.T) {
	maxDate := day(t, "2013-02-04")
	events := ledgerFor(t,
		ledger.RawEvent{Seq: 0, EntityID: "C3", Type: ledger.EventAccepted, Date: day(t, "2013-01-30")},
		ledger.RawEvent{Seq: 1, EntityID: "C3", Type: ledger.EventCompleted, Date: day(t, "2013-02-02")},
	)

	records := ClassifyDurability(events, 30, maxDate)

	if len(records) != 1 {
		t.Fatalf("expected 1 attempt record, got %d", len(records))
	}
	if records[0].Durability != Pending {
		t.Errorf("expected pending, got %s", records[0].Durability)
	}
}

func TestClassifyDurability_WindowBoundaries(t *testing.T) {
	maxDate := day(t, "2013-12-31")

	tests := []struct {
		name       string
		reopenDate string
		want       Durability
	}{
		// Same-day reopen is outside (d, d+T]: not a bounce.
		{"same_day_reopen", "2012-01-05", Durable},
		{"next_day_reopen", "2012-01-06", Bounced},
		// Exactly d+T is the last in-window day.
		{"reopen_at_horizon", "2012-02-04", Bounced},
		{"reopen_past_horizon", "2012-02-05", Durable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := ledgerFor(t,
				ledger.RawEvent{Seq: 0, EntityID: "C1", Type: ledger.EventAccepted, Date: day(t, "2012-01-01")},
				ledger.RawEvent{Seq: 1, EntityID: "C1", Type: ledger.EventCompleted, Date: day(t, "2012-01-05")},
				ledger.RawEvent{Seq: 2, EntityID: "C1", Type: ledger.EventAccepted, Date: day(t, tt.reopenDate)},
			)
			records := ClassifyDurability(events, 30, maxDate)
			if got := recordFor(t, records, "2012-01-05").Durability; got != tt.want {
				t.Errorf("reopen on %s: expected %s, got %s", tt.reopenDate, tt.want, got)
			}
		})
	}
}

func TestClassifyDurability_WindowEndingExactlyAtMaxDateResolves(t *testing.T) {
	// d+T equals the last observed date: the window is fully visible.
	events := ledgerFor(t,
		ledger.RawEvent{Seq: 0, EntityID: "C1", Type: ledger.EventAccepted, Date: day(t, "2012-01-01")},
		ledger.RawEvent{Seq: 1, EntityID: "C1", Type: ledger.EventCompleted, Date: day(t, "2012-01-05")},
	)

	records := ClassifyDurability(events, 30, day(t, "2012-02-04"))
	if records[0].Durability != Durable {
		t.Errorf("expected durable at exact horizon visibility, got %s", records[0].Durability)
	}
}

func TestClassifyDurability_MultipleReopensOneBounce(t *testing.T) {
	// Two in-window reopens still make exactly one bounced attempt.
	events := ledgerFor(t,
		ledger.RawEvent{Seq: 0, EntityID: "C1", Type: ledger.EventAccepted, Date: day(t, "2012-01-01")},
		ledger.RawEvent{Seq: 1, EntityID: "C1", Type: ledger.EventCompleted, Date: day(t, "2012-01-05")},
		ledger.RawEvent{Seq: 2, EntityID: "C1", Type: ledger.EventAccepted, Date: day(t, "2012-01-08")},
		ledger.RawEvent{Seq: 3, EntityID: "C1", Type: ledger.EventCompleted, Date: day(t, "2012-01-09")},
		ledger.RawEvent{Seq: 4, EntityID: "C1", Type: ledger.EventAccepted, Date: day(t, "2012-01-12")},
	)

	records := ClassifyDurability(events, 30, day(t, "2013-12-31"))

	bounced := 0
	for _, rec := range records {
		if rec.Date.Equal(day(t, "2012-01-05")) && rec.Durability == Bounced {
			bounced++
		}
	}
	if bounced != 1 {
		t.Errorf("expected exactly one bounced record for the first attempt, got %d", bounced)
	}
}

// Widening the horizon can only move attempts from durable to bounced
// (more time to reopen) or from resolved to pending, never the other
// way.
func TestClassifyDurability_HorizonMonotonicity(t *testing.T) {
	events := ledgerFor(t,
		ledger.RawEvent{Seq: 0, EntityID: "C1", Type: ledger.EventAccepted, Date: day(t, "2012-01-01")},
		ledger.RawEvent{Seq: 1, EntityID: "C1", Type: ledger.EventCompleted, Date: day(t, "2012-01-05")},
		ledger.RawEvent{Seq: 2, EntityID: "C1", Type: ledger.EventAccepted, Date: day(t, "2012-03-01")},
		ledger.RawEvent{Seq: 3, EntityID: "C1", Type: ledger.EventCompleted, Date: day(t, "2012-03-10")},
		ledger.RawEvent{Seq: 4, EntityID: "C2", Type: ledger.EventAccepted, Date: day(t, "2012-01-15")},
		ledger.RawEvent{Seq: 5, EntityID: "C2", Type: ledger.EventCompleted, Date: day(t, "2012-02-01")},
		ledger.RawEvent{Seq: 6, EntityID: "C2", Type: ledger.EventAccepted, Date: day(t, "2012-02-20")},
	)
	maxDate := day(t, "2013-12-31")

	prevDurable := -1
	prevBounced := 0
	for _, horizon := range []int{1, 5, 15, 30, 60, 120, 365} {
		durable, bounced := 0, 0
		for _, rec := range ClassifyDurability(events, horizon, maxDate) {
			switch rec.Durability {
			case Durable:
				durable++
			case Bounced:
				bounced++
			}
		}
		if prevDurable >= 0 {
			if durable > prevDurable {
				t.Errorf("horizon %d: durable count rose from %d to %d", horizon, prevDurable, durable)
			}
			if bounced < prevBounced {
				t.Errorf("horizon %d: bounced count fell from %d to %d", horizon, prevBounced, bounced)
			}
		}
		prevDurable, prevBounced = durable, bounced
	}
}

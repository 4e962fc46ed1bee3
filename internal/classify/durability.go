package classify

import (
	"time"
)

// Durability is the resolved state of one attempt.
type Durability string

const (
	// Durable means no reopen for the entity inside the horizon
	// window (d, d+T] after the attempt at d.
	Durable Durability = "durable"
	// Bounced means at least one in-window reopen exists. One attempt
	// counts as exactly one bounce however many reopens follow.
	Bounced Durability = "bounced"
	// Pending means the attempt's window extends past the last
	// observed ledger date, so its durability cannot be judged yet.
	// Pending attempts are reported, never treated as durable.
	Pending Durability = "pending"
)

// AttemptRecord is an attempt enriched with its durability.
type AttemptRecord struct {
	EntityID   string     `json:"entityId"`
	Date       time.Time  `json:"date"`
	Seq        int        `json:"seq"`
	Durability Durability `json:"durability"`
}

// ClassifyDurability resolves every attempt in the classified stream
// against the horizon. maxDate is the last date observed anywhere in
// the ledger, including events of excluded entities: the question is
// how far the data can see, not how far valid entities reach.
//
// This is necessarily a second pass over an already-complete stream.
// An attempt near the end of the data whose window reaches past
// maxDate stays Pending; resolving it as durable would overstate
// durability exactly where the data runs out.
func ClassifyDurability(events []Event, horizonDays int, maxDate time.Time) []AttemptRecord {
	reopens := make(map[string][]time.Time)
	for _, ev := range events {
		if ev.Kind == KindReopen {
			reopens[ev.EntityID] = append(reopens[ev.EntityID], ev.Date)
		}
	}

	var records []AttemptRecord
	for _, ev := range events {
		if ev.Kind != KindAttempt {
			continue
		}
		records = append(records, AttemptRecord{
			EntityID:   ev.EntityID,
			Date:       ev.Date,
			Seq:        ev.Seq,
			Durability: resolve(ev, reopens[ev.EntityID], horizonDays, maxDate),
		})
	}
	return records
}

func resolve(attempt Event, entityReopens []time.Time, horizonDays int, maxDate time.Time) Durability {
	windowEnd := attempt.Date.AddDate(0, 0, horizonDays)
	if windowEnd.After(maxDate) {
		return Pending
	}
	for _, r := range entityReopens {
		// Strictly after the attempt day, at most horizon days later.
		if r.After(attempt.Date) && !r.After(windowEnd) {
			return Bounced
		}
	}
	return Durable
}

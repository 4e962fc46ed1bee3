// Package aggregate buckets classified events into dense daily counts
// and derives the backlog stock and trailing-window ratios from them.
package aggregate

import (
	"time"

	"github.com/caseledger/caseledger/internal/classify"
)

// DayBucket holds one calendar day's counts. The series is dense: every
// day from the first to the last observed ledger date is present, with
// zeroes on inactive days, so rolling windows and plots never have a
// missing date.
type DayBucket struct {
	Date     time.Time `json:"date"`
	Arrivals int       `json:"arrivals"`
	Attempts int       `json:"attempts"`
	Reopens  int       `json:"reopens"`
	// Durable and Bounced count resolved attempts keyed by the
	// attempt's own date; durability is a property of the attempt,
	// not of the reopen that voids it.
	Durable int `json:"durable"`
	Bounced int `json:"bounced"`
	// Pending counts attempts on this day whose horizon window runs
	// past the end of the data. They sit outside the durable/bounced
	// split until enough future arrives.
	Pending int `json:"pending"`
	// Backlog is the stock L(t) = L(t-1) + arrivals(t) - durable(t).
	// A negative value is surfaced by the validator, never clamped.
	Backlog int `json:"backlog"`
}

// Resolved returns the number of non-pending attempts on the day.
func (b DayBucket) Resolved() int {
	return b.Durable + b.Bounced
}

// StickRate returns durable over resolved attempts for the day, or nil
// when the day has no resolved attempts.
func (b DayBucket) StickRate() *float64 {
	resolved := b.Resolved()
	if resolved == 0 {
		return nil
	}
	rate := float64(b.Durable) / float64(resolved)
	return &rate
}

// Daily buckets classified events and attempt records into a dense
// per-day series spanning [first, last] inclusive, and threads the
// backlog stock through it seeded with initialBacklog.
func Daily(events []classify.Event, attempts []classify.AttemptRecord, first, last time.Time, initialBacklog int) []DayBucket {
	if last.Before(first) {
		return nil
	}

	type counts struct {
		arrivals, attempts, reopens, durable, bounced, pending int
	}
	byDay := make(map[time.Time]*counts)
	day := func(d time.Time) *counts {
		c, ok := byDay[d]
		if !ok {
			c = &counts{}
			byDay[d] = c
		}
		return c
	}

	for _, ev := range events {
		switch ev.Kind {
		case classify.KindArrival:
			day(ev.Date).arrivals++
		case classify.KindAttempt:
			day(ev.Date).attempts++
		case classify.KindReopen:
			day(ev.Date).reopens++
		}
	}
	for _, rec := range attempts {
		switch rec.Durability {
		case classify.Durable:
			day(rec.Date).durable++
		case classify.Bounced:
			day(rec.Date).bounced++
		case classify.Pending:
			day(rec.Date).pending++
		}
	}

	numDays := int(last.Sub(first).Hours()/24) + 1
	buckets := make([]DayBucket, 0, numDays)
	backlog := initialBacklog

	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		c := counts{}
		if found, ok := byDay[d]; ok {
			c = *found
		}
		backlog += c.arrivals - c.durable
		buckets = append(buckets, DayBucket{
			Date:     d,
			Arrivals: c.arrivals,
			Attempts: c.attempts,
			Reopens:  c.reopens,
			Durable:  c.durable,
			Bounced:  c.bounced,
			Pending:  c.pending,
			Backlog:  backlog,
		})
	}
	return buckets
}

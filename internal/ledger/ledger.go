// Package ledger loads raw case lifecycle events from a backing source.
//
// Flow:
//  1. A Source reads rows from CSV, Postgres, or memory
//  2. Each row is validated (identifier, event type, date)
//  3. Valid rows become immutable RawEvents, invalid rows are counted
//     by reason and skipped
package ledger

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrMissingColumn = errors.New("ledger source is missing a required column")
	ErrEmptySource   = errors.New("ledger source contains no rows")
)

// EventType is the recognized vocabulary of ledger rows.
type EventType string

const (
	// EventAccepted is an admission event: the first one for an entity
	// is its arrival, every later one is a reopen.
	EventAccepted EventType = "accepted"
	// EventCompleted is a closure attempt.
	EventCompleted EventType = "completed"
)

// ParseEventType maps a raw cell to an EventType, case-insensitively.
func ParseEventType(s string) (EventType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "accepted":
		return EventAccepted, true
	case "completed":
		return EventCompleted, true
	}
	return "", false
}

// RawEvent is one validated ledger row. Immutable once loaded.
type RawEvent struct {
	// Seq is the row's ordinal in the input. It is the documented
	// tie-break for same-day events: within an entity, events on the
	// same day are replayed in input order.
	Seq      int       `json:"seq"`
	EntityID string    `json:"entityId"`
	Type     EventType `json:"type"`
	Date     time.Time `json:"date"`
}

// SkipReason identifies why a row was rejected at load time.
type SkipReason string

const (
	SkipMissingID   SkipReason = "missing_id"
	SkipUnknownType SkipReason = "unknown_type"
	SkipBadDate     SkipReason = "bad_date"
	SkipShortRow    SkipReason = "short_row"
)

// LoadResult holds the validated events plus the load's row accounting.
type LoadResult struct {
	Events   []RawEvent
	RowsRead int
	Skipped  map[SkipReason]int
}

// SkippedTotal returns the number of rows rejected across all reasons.
func (r *LoadResult) SkippedTotal() int {
	total := 0
	for _, n := range r.Skipped {
		total += n
	}
	return total
}

// SkipFraction returns skipped rows as a fraction of rows read.
func (r *LoadResult) SkipFraction() float64 {
	if r.RowsRead == 0 {
		return 0
	}
	return float64(r.SkippedTotal()) / float64(r.RowsRead)
}

func (r *LoadResult) skip(reason SkipReason) {
	if r.Skipped == nil {
		r.Skipped = make(map[SkipReason]int)
	}
	r.Skipped[reason]++
}

// Source reads and validates a ledger snapshot.
type Source interface {
	Load(ctx context.Context) (*LoadResult, error)
}

// Day normalizes a timestamp to UTC midnight. All engine arithmetic is
// day-granular.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// dateLayouts are accepted date formats, tried in order. The plain day
// form is the engine's native format; the timestamp forms cover ledgers
// exported with full event times, which are truncated to their day.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate parses a ledger date cell and normalizes it to UTC midnight.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var firstErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return Day(t), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// DayString formats a normalized date for output artifacts.
func DayString(t time.Time) string {
	return t.Format("2006-01-02")
}

// validateRow applies the row-level fault taxonomy shared by all
// sources. On success the event is appended to the result.
func (r *LoadResult) validateRow(entityID, eventType, date string) {
	r.RowsRead++

	if strings.TrimSpace(entityID) == "" {
		r.skip(SkipMissingID)
		return
	}
	typ, ok := ParseEventType(eventType)
	if !ok {
		r.skip(SkipUnknownType)
		return
	}
	day, err := ParseDate(date)
	if err != nil {
		r.skip(SkipBadDate)
		return
	}

	r.Events = append(r.Events, RawEvent{
		Seq:      len(r.Events),
		EntityID: strings.TrimSpace(entityID),
		Type:     typ,
		Date:     day,
	})
}

// Package classify replays per-entity event histories into arrival,
// attempt, and reopen occurrences, and judges each attempt's
// durability against a fixed look-ahead horizon.
package classify

import (
	"sort"
	"time"

	"github.com/caseledger/caseledger/internal/ledger"
)

// Kind is the classified role of one ledger event.
type Kind string

const (
	KindArrival Kind = "arrival"
	KindAttempt Kind = "attempt"
	KindReopen  Kind = "reopen"
)

// Event is one classified occurrence for an entity.
type Event struct {
	EntityID string    `json:"entityId"`
	Kind     Kind      `json:"kind"`
	Date     time.Time `json:"date"`
	Seq      int       `json:"seq"`
}

// Result holds the classified event stream plus entity accounting.
type Result struct {
	// Events is ordered by (date, input sequence).
	Events []Event
	// Entities is the number of entities that classified cleanly.
	Entities int
	// Excluded lists entities rejected for an impossible event order
	// (a completion before any acceptance, or no acceptance at all).
	// Sorted for deterministic output.
	Excluded []string
}

// Classify groups raw events by entity and replays each group.
//
// Within an entity, events are ordered by date with the input sequence
// as tie-break; this ordering decides which of several same-day events
// is the entity's first. The replay itself needs only one bit of state
// per entity: whether an arrival has been seen. The first accepted
// event is the arrival, later accepted events are reopens, and every
// completed event is an attempt.
//
// Entities whose history starts with a completion are logically
// impossible under this model. Their events are excluded entirely,
// because counting an attempt with no matching arrival would break the
// conservation identity downstream.
func Classify(events []ledger.RawEvent) *Result {
	groups := groupByEntity(events)

	result := &Result{}
	for _, group := range groups {
		classified, ok := replayEntity(group.events)
		if !ok {
			result.Excluded = append(result.Excluded, group.id)
			continue
		}
		result.Entities++
		result.Events = append(result.Events, classified...)
	}

	sortEvents(result.Events)
	sort.Strings(result.Excluded)
	return result
}

type entityGroup struct {
	id     string
	events []ledger.RawEvent
}

// groupByEntity partitions events per entity, each group ordered by
// (date, seq). Group order follows first appearance in the input.
func groupByEntity(events []ledger.RawEvent) []entityGroup {
	index := make(map[string]int)
	var groups []entityGroup

	for _, ev := range events {
		i, ok := index[ev.EntityID]
		if !ok {
			i = len(groups)
			index[ev.EntityID] = i
			groups = append(groups, entityGroup{id: ev.EntityID})
		}
		groups[i].events = append(groups[i].events, ev)
	}

	for i := range groups {
		g := groups[i].events
		sort.SliceStable(g, func(a, b int) bool {
			if !g[a].Date.Equal(g[b].Date) {
				return g[a].Date.Before(g[b].Date)
			}
			return g[a].Seq < g[b].Seq
		})
	}
	return groups
}

// replayEntity runs the single-pass state machine over one entity's
// ordered events. Returns ok=false for an impossible history.
func replayEntity(events []ledger.RawEvent) ([]Event, bool) {
	seenArrival := false
	classified := make([]Event, 0, len(events))

	for _, ev := range events {
		switch ev.Type {
		case ledger.EventAccepted:
			kind := KindReopen
			if !seenArrival {
				kind = KindArrival
				seenArrival = true
			}
			classified = append(classified, Event{
				EntityID: ev.EntityID, Kind: kind, Date: ev.Date, Seq: ev.Seq,
			})
		case ledger.EventCompleted:
			if !seenArrival {
				return nil, false
			}
			classified = append(classified, Event{
				EntityID: ev.EntityID, Kind: KindAttempt, Date: ev.Date, Seq: ev.Seq,
			})
		}
	}

	if !seenArrival {
		return nil, false
	}
	return classified, true
}

func sortEvents(events []Event) {
	sort.SliceStable(events, func(a, b int) bool {
		if !events[a].Date.Equal(events[b].Date) {
			return events[a].Date.Before(events[b].Date)
		}
		return events[a].Seq < events[b].Seq
	})
}

// OpenDeltas derives the per-day net change in the number of open
// entities, tallied directly from entity state: an entity opens at its
// arrival or a reopen and closes at its next attempt. This tally is
// independent of the durability split and serves as the cross-check
// for the backlog stock-flow identity.
func OpenDeltas(events []Event) map[time.Time]int {
	open := make(map[string]bool)
	deltas := make(map[time.Time]int)

	for _, ev := range events {
		switch ev.Kind {
		case KindArrival, KindReopen:
			if !open[ev.EntityID] {
				open[ev.EntityID] = true
				deltas[ev.Date]++
			}
		case KindAttempt:
			if open[ev.EntityID] {
				open[ev.EntityID] = false
				deltas[ev.Date]--
			}
		}
	}
	return deltas
}

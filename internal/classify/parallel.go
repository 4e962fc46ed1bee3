package classify

import (
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/caseledger/caseledger/internal/ledger"
)

// ClassifyParallel is Classify with the per-entity replay fanned out
// across at most workers goroutines. Entities are independent, so the
// only shared step is the merge, and the merge is append-only: partial
// results are combined by accumulation, never by overwrite, which
// keeps the daily sums (and with them the conservation identity)
// identical to the sequential path. The final sort restores the
// deterministic (date, seq) order.
func ClassifyParallel(events []ledger.RawEvent, workers int) *Result {
	if workers <= 1 {
		return Classify(events)
	}

	groups := groupByEntity(events)

	result := &Result{}
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for _, group := range groups {
		group := group
		g.Go(func() error {
			classified, ok := replayEntity(group.events)

			mu.Lock()
			defer mu.Unlock()
			if !ok {
				result.Excluded = append(result.Excluded, group.id)
				return nil
			}
			result.Entities++
			result.Events = append(result.Events, classified...)
			return nil
		})
	}
	_ = g.Wait() // replay workers never fail

	sortEvents(result.Events)
	sort.Strings(result.Excluded)
	return result
}

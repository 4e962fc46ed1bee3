// Package reconcile cross-checks the aggregated series against the
// accounting identities it must satisfy.
package reconcile

import (
	"fmt"
	"time"

	"github.com/caseledger/caseledger/internal/aggregate"
	"github.com/caseledger/caseledger/internal/ledger"
)

// Violation is one day where the exact conservation identity
// attempts = durable + bounced failed despite all attempts being
// resolved. These are counts, so the check is integer equality with
// zero tolerance; a violation indicates a classification defect, not
// noise, and fails the run.
type Violation struct {
	Date     time.Time `json:"date"`
	Attempts int       `json:"attempts"`
	Durable  int       `json:"durable"`
	Bounced  int       `json:"bounced"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: attempts=%d durable=%d bounced=%d",
		ledger.DayString(v.Date), v.Attempts, v.Durable, v.Bounced)
}

// BacklogResult is the outcome of the stock-flow cross-check. Unlike
// the conservation identity, the two backlog tallies measure open-ness
// with different definitions (durable-adjusted flow vs raw open state),
// so they are compared within a declared tolerance and reported as
// residuals rather than hard failures.
type BacklogResult struct {
	WithinTolerance   bool        `json:"withinTolerance"`
	TolerancePct      float64     `json:"tolerancePct"`
	MaxResidualPct    float64     `json:"maxResidualPct"`
	MaxResidualDate   string      `json:"maxResidualDate,omitempty"`
	DaysOverTolerance int         `json:"daysOverTolerance"`
	// NegativeDays lists days where the stock-flow backlog went
	// negative. The identity cannot produce one from clean input, so
	// any entry signals a data or definition fault upstream.
	NegativeDays []string `json:"negativeDays,omitempty"`
}

// Validator runs the identity checks over a daily series.
type Validator struct {
	tolerancePct float64
}

// NewValidator creates a validator with the given backlog residual
// tolerance, expressed as a percentage of the open-tally magnitude.
func NewValidator(tolerancePct float64) *Validator {
	return &Validator{tolerancePct: tolerancePct}
}

// Conservation recomputes attempts = durable + bounced for every day
// with zero pending attempts and returns the days where it fails.
// Days with pending attempts carry incomplete information and are
// excluded here; they are accounted separately in diagnostics.
func (v *Validator) Conservation(buckets []aggregate.DayBucket) []Violation {
	var violations []Violation
	for _, b := range buckets {
		if b.Pending > 0 {
			continue
		}
		if b.Attempts != b.Durable+b.Bounced {
			violations = append(violations, Violation{
				Date:     b.Date,
				Attempts: b.Attempts,
				Durable:  b.Durable,
				Bounced:  b.Bounced,
			})
		}
	}
	return violations
}

// Backlog compares the stock-flow backlog L(t) carried by the buckets
// against an independent open-entity tally rebuilt from entity state
// transitions. openDeltas comes from classify.OpenDeltas; the tally is
// seeded with the same initial stock as the series.
func (v *Validator) Backlog(buckets []aggregate.DayBucket, openDeltas map[time.Time]int, initialBacklog int) *BacklogResult {
	result := &BacklogResult{
		WithinTolerance: true,
		TolerancePct:    v.tolerancePct,
	}

	openTally := initialBacklog
	for _, b := range buckets {
		openTally += openDeltas[b.Date]

		if b.Backlog < 0 {
			result.NegativeDays = append(result.NegativeDays, ledger.DayString(b.Date))
		}

		residual := residualPct(b.Backlog, openTally)
		if residual > result.MaxResidualPct {
			result.MaxResidualPct = residual
			result.MaxResidualDate = ledger.DayString(b.Date)
		}
		if residual > v.tolerancePct {
			result.DaysOverTolerance++
		}
	}

	result.WithinTolerance = result.DaysOverTolerance == 0
	return result
}

// residualPct expresses the tally mismatch as a percentage of the
// open-tally magnitude, with a floor of 1 so a mismatch against an
// empty backlog still registers.
func residualPct(stockFlow, openTally int) float64 {
	diff := stockFlow - openTally
	if diff < 0 {
		diff = -diff
	}
	magnitude := openTally
	if magnitude < 0 {
		magnitude = -magnitude
	}
	if magnitude < 1 {
		magnitude = 1
	}
	return float64(diff) / float64(magnitude) * 100
}

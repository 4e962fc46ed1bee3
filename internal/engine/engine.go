// Package engine threads one ledger snapshot through the accounting
// pipeline: load, classify, judge durability, aggregate, validate,
// and emit. Each stage returns a fresh value consumed by the next;
// nothing is mutated across stage boundaries, which is what makes a
// run a pure function of (ledger, horizon, window).
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caseledger/caseledger/internal/aggregate"
	"github.com/caseledger/caseledger/internal/classify"
	"github.com/caseledger/caseledger/internal/config"
	"github.com/caseledger/caseledger/internal/ledger"
	"github.com/caseledger/caseledger/internal/logging"
	"github.com/caseledger/caseledger/internal/metrics"
	"github.com/caseledger/caseledger/internal/reconcile"
	"github.com/caseledger/caseledger/internal/report"
)

// ErrChecksFailed reports a completed run whose identity checks did
// not pass. The artifacts are written regardless, so the failure can
// be inspected from the diagnostics document.
var ErrChecksFailed = errors.New("accounting checks failed")

// Result is the outcome of one run.
type Result struct {
	Buckets     []aggregate.DayBucket
	Windows     []aggregate.WindowRow
	Diagnostics *report.Diagnostics
	// OK is true when every resolved day passed the conservation
	// identity and the backlog residual stayed within tolerance.
	OK bool
}

// Run executes the full pipeline against src and writes the artifacts
// into cfg.OutputDir. A nil error with Result.OK == false means the
// run completed but failed its checks; the caller decides the exit
// status from that distinction.
func Run(ctx context.Context, cfg *config.Config, src ledger.Source) (*Result, error) {
	start := time.Now()
	log := logging.L(ctx)

	loaded, err := src.Load(ctx)
	if err != nil {
		metrics.ObserveRun(start, "load_fault")
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if len(loaded.Events) == 0 {
		metrics.ObserveRun(start, "load_fault")
		return nil, ledger.ErrEmptySource
	}

	metrics.RowsReadTotal.Add(float64(loaded.RowsRead))
	for reason, n := range loaded.Skipped {
		metrics.RowsSkippedTotal.WithLabelValues(string(reason)).Add(float64(n))
	}

	log.Info("ledger loaded",
		"rows_read", loaded.RowsRead,
		"rows_skipped", loaded.SkippedTotal(),
	)
	if frac := loaded.SkipFraction(); frac > cfg.SkipWarnFraction {
		log.Warn("skipped-row fraction above threshold",
			"skip_fraction", frac,
			"threshold", cfg.SkipWarnFraction,
		)
	}

	first, last := span(loaded.Events)

	classified := classify.ClassifyParallel(loaded.Events, cfg.Workers)
	metrics.EntitiesExcludedTotal.Add(float64(len(classified.Excluded)))

	attempts := classify.ClassifyDurability(classified.Events, cfg.HorizonDays, last)
	for _, rec := range attempts {
		metrics.AttemptsTotal.WithLabelValues(string(rec.Durability)).Inc()
	}

	buckets := aggregate.Daily(classified.Events, attempts, first, last, cfg.InitialBacklog)
	windows := aggregate.Rolling(buckets, cfg.WindowDays)

	validator := reconcile.NewValidator(cfg.BacklogTolerancePct)
	violations := validator.Conservation(buckets)
	metrics.ConservationViolationsTotal.Add(float64(len(violations)))
	backlog := validator.Backlog(buckets, classify.OpenDeltas(classified.Events), cfg.InitialBacklog)

	diag := buildDiagnostics(cfg, loaded, classified, attempts, buckets, violations, backlog)

	result := &Result{
		Buckets:     buckets,
		Windows:     windows,
		Diagnostics: diag,
		OK:          len(violations) == 0 && backlog.WithinTolerance,
	}

	emitter := report.NewEmitter(cfg.OutputDir)
	if err := emitter.Write(&report.Run{Buckets: buckets, Windows: windows, Diagnostics: diag}); err != nil {
		metrics.ObserveRun(start, "emit_fault")
		return nil, fmt.Errorf("emit report: %w", err)
	}

	status := "ok"
	if !result.OK {
		status = "checks_failed"
		log.Error("run failed accounting checks",
			"conservation_violations", len(violations),
			"backlog_within_tolerance", backlog.WithinTolerance,
		)
	} else {
		log.Info("run complete",
			"days", len(buckets),
			"entities", classified.Entities,
			"pending_attempts", diag.PendingAttempts,
		)
	}
	metrics.ObserveRun(start, status)

	return result, nil
}

// span returns the first and last event dates across the whole ledger,
// including events of later-excluded entities: the data's horizon is a
// property of the ledger, not of the entities that survive validation.
func span(events []ledger.RawEvent) (first, last time.Time) {
	first, last = events[0].Date, events[0].Date
	for _, ev := range events[1:] {
		if ev.Date.Before(first) {
			first = ev.Date
		}
		if ev.Date.After(last) {
			last = ev.Date
		}
	}
	return first, last
}

func buildDiagnostics(
	cfg *config.Config,
	loaded *ledger.LoadResult,
	classified *classify.Result,
	attempts []classify.AttemptRecord,
	buckets []aggregate.DayBucket,
	violations []reconcile.Violation,
	backlog *reconcile.BacklogResult,
) *report.Diagnostics {
	diag := &report.Diagnostics{
		Parameters: report.Parameters{
			LedgerPath:          cfg.LedgerPath,
			DatabaseURL:         cfg.DatabaseURL,
			OutputDir:           cfg.OutputDir,
			HorizonDays:         cfg.HorizonDays,
			WindowDays:          cfg.WindowDays,
			InitialBacklog:      cfg.InitialBacklog,
			BacklogTolerancePct: cfg.BacklogTolerancePct,
			SkipWarnFraction:    cfg.SkipWarnFraction,
			Workers:             cfg.Workers,
		},
		Days:                   len(buckets),
		RowsRead:               loaded.RowsRead,
		RowsSkipped:            make(map[string]int, len(loaded.Skipped)),
		SkipFraction:           loaded.SkipFraction(),
		EntitiesClassified:     classified.Entities,
		EntitiesExcluded:       len(classified.Excluded),
		ExcludedEntityIDs:      classified.Excluded,
		ConservationViolations: violations,
		Backlog:                backlog,
	}
	if diag.ConservationViolations == nil {
		diag.ConservationViolations = []reconcile.Violation{}
	}
	for reason, n := range loaded.Skipped {
		diag.RowsSkipped[string(reason)] = n
	}

	for _, rec := range attempts {
		if rec.Durability != classify.Pending {
			continue
		}
		if diag.PendingAttemptsByDay == nil {
			diag.PendingAttemptsByDay = make(map[string]int)
		}
		diag.PendingAttempts++
		diag.PendingAttemptsByDay[ledger.DayString(rec.Date)]++
	}

	for _, b := range buckets {
		diag.Totals.Arrivals += b.Arrivals
		diag.Totals.Attempts += b.Attempts
		diag.Totals.Reopens += b.Reopens
		diag.Totals.Durable += b.Durable
		diag.Totals.Bounced += b.Bounced
		diag.Totals.Pending += b.Pending
		if b.Backlog > diag.Totals.MaxBacklog {
			diag.Totals.MaxBacklog = b.Backlog
		}
	}

	if len(buckets) > 0 {
		if buckets[len(buckets)-1].Backlog > buckets[0].Backlog {
			diag.Regime = "backlog_growth"
		} else {
			diag.Regime = "stable_or_declining"
		}
	}

	return diag
}

// Package metrics provides Prometheus instrumentation for the engine.
//
// A run is a batch computation, so these are run-scoped tallies rather
// than request-rate series. Embedders that keep the process alive (for
// example a scheduler running the engine on a cadence) can expose the
// default registry and scrape accumulated totals across runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RowsReadTotal counts ledger rows read, valid or not.
	RowsReadTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "caseledger",
		Name:      "rows_read_total",
		Help:      "Total ledger rows read across runs.",
	})

	// RowsSkippedTotal counts rejected rows by fault reason.
	RowsSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caseledger",
			Name:      "rows_skipped_total",
			Help:      "Total ledger rows skipped by reason.",
		},
		[]string{"reason"},
	)

	// EntitiesExcludedTotal counts entities rejected for an
	// impossible event order.
	EntitiesExcludedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "caseledger",
		Name:      "entities_excluded_total",
		Help:      "Total entities excluded for inconsistent histories.",
	})

	// AttemptsTotal counts classified attempts by durability.
	AttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caseledger",
			Name:      "attempts_total",
			Help:      "Total closure attempts by durability outcome.",
		},
		[]string{"durability"},
	)

	// ConservationViolationsTotal counts days that failed the exact
	// attempts = durable + bounced identity.
	ConservationViolationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "caseledger",
		Name:      "conservation_violations_total",
		Help:      "Total days failing the conservation identity.",
	})

	// RunsTotal counts engine runs by final status.
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caseledger",
			Name:      "runs_total",
			Help:      "Total engine runs by status.",
		},
		[]string{"status"},
	)

	// RunDuration observes end-to-end run duration.
	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "caseledger",
		Name:      "run_duration_seconds",
		Help:      "End-to-end engine run duration in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
	})
)

func init() {
	prometheus.MustRegister(
		RowsReadTotal,
		RowsSkippedTotal,
		EntitiesExcludedTotal,
		AttemptsTotal,
		ConservationViolationsTotal,
		RunsTotal,
		RunDuration,
	)
}

// ObserveRun records one completed run's duration and status.
func ObserveRun(start time.Time, status string) {
	RunDuration.Observe(time.Since(start).Seconds())
	RunsTotal.WithLabelValues(status).Inc()
}

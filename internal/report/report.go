// Package report serializes a finished run into its output artifacts.
//
// Emission is pure formatting: every number is computed upstream. The
// artifacts must be byte-for-byte identical across runs on identical
// input and parameters, because an external wrapper verifies them by
// checksum. Hence fixed column order, fixed float formatting, sorted
// JSON maps, and a zip with a fixed entry order and zeroed timestamps.
package report

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/caseledger/caseledger/internal/aggregate"
	"github.com/caseledger/caseledger/internal/ledger"
	"github.com/caseledger/caseledger/internal/reconcile"
)

const (
	TimeseriesFile  = "timeseries.csv"
	DiagnosticsFile = "diagnostics.json"
	ManifestFile    = "manifest.json"
	SubmissionFile  = "submission.zip"
)

// Parameters echoes the exact configuration of the run. Defaults are
// resolved before this point, so nothing here is implicit.
type Parameters struct {
	LedgerPath          string  `json:"ledgerPath,omitempty"`
	DatabaseURL         string  `json:"databaseUrl,omitempty"`
	OutputDir           string  `json:"outputDir"`
	HorizonDays         int     `json:"horizonDays"`
	WindowDays          int     `json:"windowDays"`
	InitialBacklog      int     `json:"initialBacklog"`
	BacklogTolerancePct float64 `json:"backlogTolerancePct"`
	SkipWarnFraction    float64 `json:"skipWarnFraction"`
	Workers             int     `json:"workers"`
}

// Totals summarises the whole series.
type Totals struct {
	Arrivals   int `json:"arrivals"`
	Attempts   int `json:"attempts"`
	Reopens    int `json:"reopens"`
	Durable    int `json:"durable"`
	Bounced    int `json:"bounced"`
	Pending    int `json:"pending"`
	MaxBacklog int `json:"maxBacklog"`
}

// Diagnostics is the structured account of what the run read, what it
// excluded, and which checks passed. It is written even when the run
// fails, so failures stay inspectable.
type Diagnostics struct {
	Parameters   Parameters     `json:"parameters"`
	Days         int            `json:"days"`
	RowsRead     int            `json:"rowsRead"`
	RowsSkipped  map[string]int `json:"rowsSkipped"`
	SkipFraction float64        `json:"skipFraction"`

	EntitiesClassified int      `json:"entitiesClassified"`
	EntitiesExcluded   int      `json:"entitiesExcluded"`
	ExcludedEntityIDs  []string `json:"excludedEntityIds,omitempty"`

	PendingAttempts      int            `json:"pendingAttempts"`
	PendingAttemptsByDay map[string]int `json:"pendingAttemptsByDay,omitempty"`

	ConservationViolations []reconcile.Violation    `json:"conservationViolations"`
	Backlog                *reconcile.BacklogResult `json:"backlog"`

	Totals Totals `json:"totals"`
	// Regime is a coarse trend label: backlog_growth when the series
	// ends above where it started, stable_or_declining otherwise.
	Regime string `json:"regime"`
}

// Run bundles everything the emitter needs.
type Run struct {
	Buckets     []aggregate.DayBucket
	Windows     []aggregate.WindowRow
	Diagnostics *Diagnostics
}

// Emitter writes run artifacts into one output directory.
type Emitter struct {
	outputDir string
}

// NewEmitter creates an emitter rooted at dir, creating it if missing.
func NewEmitter(dir string) *Emitter {
	return &Emitter{outputDir: dir}
}

// Write emits all four artifacts. The zip bundles the other three.
func (e *Emitter) Write(run *Run) error {
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	ts, err := renderTimeseries(run)
	if err != nil {
		return err
	}
	diag, err := renderJSON(run.Diagnostics)
	if err != nil {
		return fmt.Errorf("encode diagnostics: %w", err)
	}
	manifest, err := renderJSON(newManifest(run.Diagnostics.Parameters))
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	files := []artifact{
		{TimeseriesFile, ts},
		{DiagnosticsFile, diag},
		{ManifestFile, manifest},
	}

	for _, f := range files {
		path := filepath.Join(e.outputDir, f.name)
		if err := os.WriteFile(path, f.data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}

	zipped, err := renderZip(files)
	if err != nil {
		return fmt.Errorf("bundle submission: %w", err)
	}
	path := filepath.Join(e.outputDir, SubmissionFile)
	if err := os.WriteFile(path, zipped, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", SubmissionFile, err)
	}
	return nil
}

// timeseriesHeader is the fixed column order of the daily table.
var timeseriesHeader = []string{
	"date", "arrivals", "attempts", "reopens", "durable", "bounced",
	"pending", "backlog", "stick_rate", "rolling_ratio",
}

func renderTimeseries(run *Run) ([]byte, error) {
	ratioByDay := make(map[string]*float64, len(run.Windows))
	for _, w := range run.Windows {
		ratioByDay[ledger.DayString(w.Date)] = w.Ratio
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(timeseriesHeader); err != nil {
		return nil, fmt.Errorf("write timeseries header: %w", err)
	}

	for _, b := range run.Buckets {
		date := ledger.DayString(b.Date)
		ratio, windowed := ratioByDay[date]
		row := []string{
			date,
			strconv.Itoa(b.Arrivals),
			strconv.Itoa(b.Attempts),
			strconv.Itoa(b.Reopens),
			strconv.Itoa(b.Durable),
			strconv.Itoa(b.Bounced),
			strconv.Itoa(b.Pending),
			strconv.Itoa(b.Backlog),
			formatRatio(b.StickRate()),
			"",
		}
		if windowed {
			row[9] = formatRatio(ratio)
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write timeseries row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush timeseries: %w", err)
	}
	return buf.Bytes(), nil
}

// formatRatio renders a nullable ratio with fixed precision; null is
// an empty cell, matching the nullable-ratio contract.
func formatRatio(r *float64) string {
	if r == nil {
		return ""
	}
	return strconv.FormatFloat(*r, 'f', 4, 64)
}

type manifest struct {
	Generator  string            `json:"generator"`
	Standard   string            `json:"standard"`
	Parameters Parameters        `json:"parameters"`
	Files      map[string]string `json:"files"`
}

func newManifest(params Parameters) manifest {
	return manifest{
		Generator:  "caseledger",
		Standard:   "closure-accounting/v1",
		Parameters: params,
		Files: map[string]string{
			"timeseries":  TimeseriesFile,
			"diagnostics": DiagnosticsFile,
		},
	}
}

func renderJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

type artifact struct {
	name string
	data []byte
}

// renderZip bundles the artifacts with deterministic entry order and
// no timestamps, so the archive hashes identically across runs.
func renderZip(files []artifact) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		header := &zip.FileHeader{Name: f.name, Method: zip.Deflate}
		entry, err := zw.CreateHeader(header)
		if err != nil {
			return nil, err
		}
		if _, err := entry.Write(f.data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

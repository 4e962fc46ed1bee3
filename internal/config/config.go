// Package config handles engine configuration from flags and environment variables
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all parameters of one engine run. Every field is
// recorded verbatim in the diagnostics document: a defaulted value is
// still an explicit, reported value.
type Config struct {
	// Input: exactly one of LedgerPath (CSV) or DatabaseURL (Postgres).
	LedgerPath  string
	DatabaseURL string

	// OutputDir receives timeseries.csv, diagnostics.json, manifest
	// and the bundled submission archive.
	OutputDir string

	// HorizonDays is T: an attempt is durable only if no reopen for
	// its entity occurs within T days strictly after the attempt.
	HorizonDays int
	// WindowDays is W: the trailing window for the durability ratio.
	WindowDays int

	// InitialBacklog seeds the stock-flow series L(t0-1).
	InitialBacklog int
	// BacklogTolerancePct bounds the accepted residual between the
	// stock-flow backlog and the independent open-entity tally.
	BacklogTolerancePct float64
	// SkipWarnFraction is the skipped-row fraction above which the
	// run logs a warning. Surfaced in diagnostics, never a hard cap.
	SkipWarnFraction float64

	// Workers bounds the per-entity classification fan-out.
	// 1 disables parallelism.
	Workers int

	LogLevel  string
	LogFormat string
}

const (
	DefaultHorizonDays         = 30
	DefaultWindowDays          = 90
	DefaultBacklogTolerancePct = 5.0
	DefaultSkipWarnFraction    = 0.01
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "text"
)

// FromEnv builds a Config from environment variables, loading a .env
// file first if one is present. Command-line flags are bound on top of
// this by the CLI, so env values act as overridable defaults.
func FromEnv() *Config {
	_ = godotenv.Load()

	return &Config{
		LedgerPath:          os.Getenv("LEDGER_PATH"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		OutputDir:           os.Getenv("OUTPUT_DIR"),
		HorizonDays:         getEnvInt("HORIZON_DAYS", DefaultHorizonDays),
		WindowDays:          getEnvInt("WINDOW_DAYS", DefaultWindowDays),
		InitialBacklog:      getEnvInt("INITIAL_BACKLOG", 0),
		BacklogTolerancePct: getEnvFloat("BACKLOG_TOLERANCE_PCT", DefaultBacklogTolerancePct),
		SkipWarnFraction:    getEnvFloat("SKIP_WARN_FRACTION", DefaultSkipWarnFraction),
		Workers:             getEnvInt("WORKERS", 1),
		LogLevel:            getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:           getEnv("LOG_FORMAT", DefaultLogFormat),
	}
}

// Validate checks that the run is fully and coherently parameterized.
func (c *Config) Validate() error {
	if c.LedgerPath == "" && c.DatabaseURL == "" {
		return fmt.Errorf("a ledger input is required: set --ledger or DATABASE_URL")
	}
	if c.LedgerPath != "" && c.DatabaseURL != "" {
		return fmt.Errorf("ambiguous ledger input: both --ledger and DATABASE_URL are set")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("--output-dir is required")
	}
	if c.HorizonDays <= 0 {
		return fmt.Errorf("--horizon-days must be positive, got %d", c.HorizonDays)
	}
	if c.WindowDays <= 0 {
		return fmt.Errorf("--window-days must be positive, got %d", c.WindowDays)
	}
	if c.InitialBacklog < 0 {
		return fmt.Errorf("--initial-backlog must not be negative, got %d", c.InitialBacklog)
	}
	if c.BacklogTolerancePct < 0 {
		return fmt.Errorf("--backlog-tolerance-pct must not be negative, got %g", c.BacklogTolerancePct)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("--workers must be positive, got %d", c.Workers)
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

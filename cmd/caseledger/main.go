// Caseledger - event-log closure accounting engine
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/caseledger/caseledger/internal/config"
	"github.com/caseledger/caseledger/internal/engine"
	"github.com/caseledger/caseledger/internal/ledger"
	"github.com/caseledger/caseledger/internal/logging"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "caseledger",
		Short: "Closure accounting over a per-case event ledger",
		Long: `caseledger ingests a ledger of per-case lifecycle events (accepted,
completed) and derives daily time series of arrivals, closure attempts,
reopens, durable closures, backlog, and a rolling durability ratio,
enforcing the conservation identity attempts = durable + bounced.`,
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newVersionCmd())
	return root
}

func newRunCmd() *cobra.Command {
	cfg := config.FromEnv()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the engine over a ledger snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.LedgerPath, "ledger", cfg.LedgerPath, "path to the ledger CSV file")
	flags.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "Postgres URL for a database-backed ledger")
	flags.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "directory for output artifacts")
	flags.IntVar(&cfg.HorizonDays, "horizon-days", cfg.HorizonDays, "durability horizon T in days")
	flags.IntVar(&cfg.WindowDays, "window-days", cfg.WindowDays, "rolling window W in days")
	flags.IntVar(&cfg.InitialBacklog, "initial-backlog", cfg.InitialBacklog, "declared backlog stock before the first day")
	flags.Float64Var(&cfg.BacklogTolerancePct, "backlog-tolerance-pct", cfg.BacklogTolerancePct, "accepted backlog residual, percent")
	flags.IntVar(&cfg.Workers, "workers", cfg.Workers, "classification worker bound (1 = sequential)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (text, json)")

	return cmd
}

func runEngine(ctx context.Context, cfg *config.Config) error {
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	ctx = logging.WithLogger(ctx, logger)
	ctx = logging.WithRunID(ctx, logging.NewRunID())

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Info("starting caseledger",
		"version", Version,
		"commit", Commit,
		"horizon_days", cfg.HorizonDays,
		"window_days", cfg.WindowDays,
	)

	src, closeSrc, err := newSource(cfg)
	if err != nil {
		return err
	}
	defer closeSrc()

	result, err := engine.Run(ctx, cfg, src)
	if err != nil {
		return err
	}
	if !result.OK {
		return engine.ErrChecksFailed
	}
	return nil
}

// newSource picks the ledger backend from the configuration. Validate
// has already guaranteed exactly one input is set.
func newSource(cfg *config.Config) (ledger.Source, func(), error) {
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		return ledger.NewPostgresSource(db), func() { _ = db.Close() }, nil
	}
	return ledger.NewCSVSource(cfg.LedgerPath), func() {}, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("caseledger %s (commit %s, built %s)\n", Version, Commit, BuildTime)
		},
	}
}

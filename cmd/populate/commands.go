package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/JonMunkholm/shipimport/internal/config"
	"github.com/JonMunkholm/shipimport/internal/core"
	"github.com/JonMunkholm/shipimport/internal/logging"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

// flagValues holds command-line overrides for the environment configuration.
type flagValues struct {
	direct    string
	products  string
	shipments string
	policy    string
}

func newRootCmd() *cobra.Command {
	var flags flagValues

	root := &cobra.Command{
		Use:   "populate",
		Short: "Load shipment spreadsheets into PostgreSQL",
		Long: `populate appends the direct sheet verbatim into its table, then joins the
product-line sheet with the shipment sheet and writes one row per
(shipment, product) into the expanded table. Both loads share one
transaction: either every row lands or nothing does.

Configuration comes from the environment (or a .env file); see DATABASE_URL,
SOURCE_*, TABLE_* and IMPORT_* variables.

Exit Codes:
  0  - Success
  1  - General error
  10 - Source file missing or unreadable
  11 - Schema mismatch
  12 - Invalid cell value
  13 - Constraint violation
  14 - Database connection failed
  15 - Representative origin/destination conflict`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(&flags)
			if err != nil {
				return err
			}
			return withService(cmd.Context(), cfg, func(ctx context.Context, svc *core.Service) error {
				return runImport(ctx, cmd, cfg, svc)
			})
		},
	}

	root.Flags().StringVar(&flags.direct, "direct", "", "direct source file (overrides SOURCE_DIRECT)")
	root.Flags().StringVar(&flags.products, "products", "", "product-line source file (overrides SOURCE_PRODUCTS)")
	root.Flags().StringVar(&flags.shipments, "shipments", "", "shipment source file (overrides SOURCE_SHIPMENTS)")
	root.Flags().StringVar(&flags.policy, "policy", "", "representative policy: first-wins, assert-uniform, error-on-conflict")

	root.AddCommand(newResetCmd())
	return root
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Truncate both destination tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(&flagValues{})
			if err != nil {
				return err
			}
			return withService(cmd.Context(), cfg, func(ctx context.Context, svc *core.Service) error {
				if err := svc.Reset(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "truncated %s and %s\n", cfg.Tables.Direct, cfg.Tables.Expanded)
				return nil
			})
		},
	}
}

// loadConfig reads the environment, applies flag overrides, validates the
// result and installs the logger.
func loadConfig(flags *flagValues) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	applyFlags(cfg, flags)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())
	return cfg, nil
}

func applyFlags(cfg *config.Config, flags *flagValues) {
	if flags.direct != "" {
		cfg.Sources.Direct = flags.direct
	}
	if flags.products != "" {
		cfg.Sources.Products = flags.products
	}
	if flags.shipments != "" {
		cfg.Sources.Shipments = flags.shipments
	}
	if flags.policy != "" {
		cfg.Import.RepresentativePolicy = flags.policy
	}
}

// withService connects to the database, builds a Service and runs fn under
// the import timeout. SIGINT/SIGTERM cancel the run, rolling it back.
func withService(ctx context.Context, cfg *config.Config, fn func(context.Context, *core.Service) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	policy, err := core.ParsePolicy(cfg.Import.RepresentativePolicy)
	if err != nil {
		return err
	}

	svc := core.NewService(pool, core.Options{
		DirectTable:   cfg.Tables.Direct,
		ExpandedTable: cfg.Tables.Expanded,
		BatchSize:     cfg.Import.BatchSize,
		Policy:        policy,
	})

	ctx, cancel := context.WithTimeout(ctx, cfg.Import.Timeout)
	defer cancel()
	return fn(ctx, svc)
}

// connect opens the pool and verifies it with a ping bounded by the
// connect timeout. Any failure is reported as core.ErrConnection.
func connect(ctx context.Context, dbCfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dbCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse database URL: %w", core.ErrConnection, err)
	}
	poolConfig.ConnConfig.ConnectTimeout = dbCfg.ConnectTimeout

	pingCtx, cancel := context.WithTimeout(ctx, dbCfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(pingCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConnection, err)
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %w", core.ErrConnection, err)
	}

	if u, err := url.Parse(dbCfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"), "host", u.Hostname())
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}

func runImport(ctx context.Context, cmd *cobra.Command, cfg *config.Config, svc *core.Service) error {
	res, err := svc.Run(ctx, core.Sources{
		Direct:    cfg.Sources.Direct,
		Products:  cfg.Sources.Products,
		Shipments: cfg.Sources.Shipments,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, stage := range []core.StageResult{res.Direct, res.Expand} {
		total, err := svc.RowCount(ctx, stage.Table)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-8s %s: inserted %d rows from %d source rows (table now holds %d)\n",
			stage.Stage, stage.Table, stage.Inserted, stage.SourceRows, total)
	}
	fmt.Fprintf(out, "run %s committed in %s\n", res.RunID, res.Duration.Round(time.Millisecond))
	return nil
}

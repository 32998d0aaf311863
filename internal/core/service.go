package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/shipimport/internal/admin"
	"github.com/JonMunkholm/shipimport/internal/logging"
	"github.com/JonMunkholm/shipimport/internal/sheet"
	"github.com/google/uuid"
)

// Options configures a Service.
type Options struct {
	DirectTable   string // Receives the direct source verbatim
	ExpandedTable string // Receives one row per (shipment, product)
	BatchSize     int    // Expanded rows per pipelined batch
	Policy        Policy // Representative origin/destination policy
}

// Service runs imports against one destination store.
type Service struct {
	db     DB
	opts   Options
	direct *DirectLoader
	expand *ExpandLoader
}

// NewService creates a new Service. The caller owns db and closes it.
func NewService(db DB, opts Options) *Service {
	if opts.Policy == "" {
		opts.Policy = PolicyAssertUniform
	}
	return &Service{
		db:     db,
		opts:   opts,
		direct: &DirectLoader{Table: opts.DirectTable},
		expand: &ExpandLoader{Table: opts.ExpandedTable, BatchSize: opts.BatchSize, Policy: opts.Policy},
	}
}

// Run reads the three sources and loads them in a single transaction.
// Either both destination tables receive all their rows or neither changes.
func (s *Service) Run(ctx context.Context, src Sources) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{RunID: uuid.New()}

	ctx = logging.WithRunID(ctx, result.RunID.String())
	log := logging.FromContext(ctx)

	log.Info("import started",
		"direct_source", src.Direct,
		"products_source", src.Products,
		"shipments_source", src.Shipments,
		"policy", string(s.opts.Policy),
	)

	direct, err := readSource(log, src.Direct)
	if err != nil {
		return nil, err
	}
	products, err := readSource(log, src.Products)
	if err != nil {
		return nil, err
	}
	shipments, err := readSource(log, src.Shipments)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, classifyDBError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	directLog := logging.WithFields(ctx, "stage", "direct", "table", s.opts.DirectTable)
	result.Direct, err = s.direct.Load(ctx, tx, direct)
	if err != nil {
		directLog.Error("load failed, rolling back", "error", err)
		return nil, fmt.Errorf("load %s: %w", s.opts.DirectTable, err)
	}
	directLog.Info("load complete",
		"rows", result.Direct.Inserted,
		"duration_ms", result.Direct.Duration.Milliseconds(),
	)

	expandLog := logging.WithFields(ctx, "stage", "expand", "table", s.opts.ExpandedTable)
	result.Expand, err = s.expand.Load(ctx, tx, shipments, products)
	if err != nil {
		expandLog.Error("load failed, rolling back", "error", err)
		return nil, fmt.Errorf("load %s: %w", s.opts.ExpandedTable, err)
	}
	expandLog.Info("load complete",
		"groups", result.Expand.Groups,
		"rows", result.Expand.Inserted,
		"duration_ms", result.Expand.Duration.Milliseconds(),
	)

	if err := tx.Commit(ctx); err != nil {
		return nil, classifyDBError("commit", err)
	}

	result.Duration = time.Since(start)
	log.Info("import committed",
		"direct_rows", result.Direct.Inserted,
		"expanded_rows", result.Expand.Inserted,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// Reset truncates both destination tables in one transaction.
func (s *Service) Reset(ctx context.Context) error {
	r := admin.ResetDbs{DB: s.db}
	if err := r.ResetAll(ctx, s.opts.DirectTable, s.opts.ExpandedTable); err != nil {
		return classifyDBError("reset", err)
	}
	slog.Info("destination tables reset", "tables", []string{s.opts.DirectTable, s.opts.ExpandedTable})
	return nil
}

// RowCount returns the number of rows currently in table.
func (s *Service) RowCount(ctx context.Context, table string) (int64, error) {
	return RowCount(ctx, s.db, table)
}

// readSource loads one source file. A malformed header is a schema problem;
// every other failure means the file could not be read.
func readSource(log *slog.Logger, path string) (*sheet.Table, error) {
	t, err := sheet.Read(path)
	switch {
	case err == nil:
		log.Debug("source read",
			"source", t.Name,
			"rows", t.Len(),
			"columns", len(t.Header),
			"bytes", t.Bytes,
		)
		return t, nil
	case errors.Is(err, sheet.ErrNoHeader), errors.Is(err, sheet.ErrRaggedRow):
		return nil, fmt.Errorf("%w: %s: %w", ErrSchemaMismatch, path, err)
	default:
		return nil, fmt.Errorf("%w: %s: %w", ErrIO, path, err)
	}
}

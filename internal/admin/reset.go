// Package admin provides administrative operations for database management.
package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// ResetTimeout is the maximum duration for database reset operations.
const ResetTimeout = 30 * time.Second

// TxBeginner starts a transaction. Satisfied by *pgxpool.Pool and *pgx.Conn.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ResetDbs handles database reset operations.
type ResetDbs struct {
	DB TxBeginner
}

type dbResetFn func(ctx context.Context, tx pgx.Tx) error

// ResetAll truncates every named table in one transaction.
// This is a destructive operation - use with caution.
func (r *ResetDbs) ResetAll(ctx context.Context, tables ...string) error {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	resets := make([]dbResetFn, 0, len(tables))
	for _, t := range tables {
		resets = append(resets, truncate(t))
	}

	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := r.runResets(ctx, tx, resets); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ResetDbs) runResets(ctx context.Context, tx pgx.Tx, resets []dbResetFn) error {
	for _, reset := range resets {
		if err := reset(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}

func truncate(table string) dbResetFn {
	return func(ctx context.Context, tx pgx.Tx) error {
		ident := pgx.Identifier(strings.Split(table, "."))
		if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+ident.Sanitize()); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
		return nil
	}
}

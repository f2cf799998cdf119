package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianpos/meridian/internal/shared"
)

// WithTx runs fn inside a RepeatableRead transaction, rolling back unless fn
// returns nil and the commit succeeds. Begin and commit failures carry
// shared.ErrPersistence; fn errors pass through untouched so domain sentinels
// survive the wrap.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("db: begin tx: %w (%w)", shared.ErrPersistence, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("db: commit tx: %w (%w)", shared.ErrPersistence, err)
	}
	return nil
}

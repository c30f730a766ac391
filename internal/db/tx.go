package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TxRunner runs fn inside a single database transaction. fn's error rolls
// the whole transaction back; a nil return commits it.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, q Querier) error) error
}

type PoolTxRunner struct {
	pool Pool
}

func NewTxRunner(pool Pool) *PoolTxRunner {
	return &PoolTxRunner{pool: pool}
}

func (r *PoolTxRunner) InTx(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			// A cancelled ctx still needs the rollback sent.
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

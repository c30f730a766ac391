package sequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/db"
)

var errEmptyPartition = errors.New("empty partition key")

// Repository hands out per-partition event sequence numbers. Events for one
// order share a partition, so consumers can detect gaps and reordering.
type Repository struct {
	pool db.Querier
}

func NewRepository(pool db.Querier) *Repository {
	return &Repository{pool: pool}
}

// NextSequence reserves the next number for partitionKey. The first call for
// a partition returns 1.
func (r *Repository) NextSequence(ctx context.Context, partitionKey string) (int64, error) {
	if partitionKey == "" {
		return 0, errEmptyPartition
	}
	var seq int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO event_sequence AS s (partition_key, last_sequence)
		VALUES ($1, 1)
		ON CONFLICT (partition_key)
		DO UPDATE SET last_sequence = s.last_sequence + 1, updated_at = now()
		RETURNING s.last_sequence`, partitionKey).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence for %s: %w", partitionKey, err)
	}
	return seq, nil
}

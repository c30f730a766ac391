package payment

import (
	"context"
	"fmt"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/db"
)

type Store interface {
	InsertTx(ctx context.Context, q db.Querier, p *Payment) error
}

type PostgresRepository struct{}

func NewPostgresRepository() *PostgresRepository {
	return &PostgresRepository{}
}

func (r *PostgresRepository) InsertTx(ctx context.Context, q db.Querier, p *Payment) error {
	err := q.QueryRow(ctx, `
		INSERT INTO payments (order_id, amount, method, status, transaction_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, p.OrderID, p.Amount, string(p.Method), string(p.Status), p.TransactionID).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

package wishlist

import (
	"context"
	"fmt"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/db"
)

type Repository interface {
	List(ctx context.Context, userID int64) ([]Item, error)
	Add(ctx context.Context, userID, productID int64) error
	RemoveTx(ctx context.Context, q db.Querier, userID, productID int64) error
}

type PostgresRepository struct {
	pool db.Querier
}

func NewPostgresRepository(pool db.Querier) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) List(ctx context.Context, userID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT w.id, w.product_id, p.name, p.price, p.stock, w.added_at
		FROM wishlist w
		JOIN products p ON p.id = w.product_id
		WHERE w.user_id=$1
		ORDER BY w.added_at DESC, w.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	defer rows.Close()

	out := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ProductID, &it.ProductName, &it.Price, &it.Stock, &it.AddedAt); err != nil {
			return nil, fmt.Errorf("scan wishlist item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Add(ctx context.Context, userID, productID int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO wishlist (user_id, product_id) VALUES ($1, $2)`, userID, productID)
	if err != nil {
		switch {
		case db.IsUniqueViolation(err):
			return apperr.Duplicate("wishlist item")
		case db.IsForeignKeyViolation(err):
			return apperr.NotFound("product")
		}
		return fmt.Errorf("add wishlist item: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RemoveTx(ctx context.Context, q db.Querier, userID, productID int64) error {
	tag, err := q.Exec(ctx, `DELETE FROM wishlist WHERE user_id=$1 AND product_id=$2`, userID, productID)
	if err != nil {
		return fmt.Errorf("remove wishlist item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("wishlist item")
	}
	return nil
}

package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/db"
	"github.com/shopspring/decimal"
)

// Store is the persistence the cart needs. Every method runs on the caller's
// transaction.
type Store interface {
	// LockTx returns the user's cart row, creating it first if needed, and
	// holds its row lock until the transaction ends.
	LockTx(ctx context.Context, q db.Querier, userID int64) (Cart, error)
	LinesTx(ctx context.Context, q db.Querier, cartID int64) ([]Line, error)
	InsertLineTx(ctx context.Context, q db.Querier, cartID, productID int64, qty int, price decimal.Decimal) error
	SetQuantityTx(ctx context.Context, q db.Querier, lineID int64, qty int) error
	DeleteLineTx(ctx context.Context, q db.Querier, lineID int64) error
	ClearTx(ctx context.Context, q db.Querier, cartID int64) error
	SaveTotalTx(ctx context.Context, q db.Querier, cartID int64, total decimal.Decimal) (time.Time, error)
}

type PostgresRepository struct{}

func NewPostgresRepository() *PostgresRepository {
	return &PostgresRepository{}
}

func (r *PostgresRepository) LockTx(ctx context.Context, q db.Querier, userID int64) (Cart, error) {
	if _, err := q.Exec(ctx, `
		INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		if db.IsForeignKeyViolation(err) {
			return Cart{}, apperr.NotFound("user")
		}
		return Cart{}, fmt.Errorf("ensure cart: %w", err)
	}

	c := Cart{UserID: userID}
	err := q.QueryRow(ctx, `
		SELECT id, updated_at
		FROM carts
		WHERE user_id=$1
		FOR UPDATE
	`, userID).Scan(&c.ID, &c.UpdatedAt)
	if err != nil {
		return Cart{}, fmt.Errorf("lock cart: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) LinesTx(ctx context.Context, q db.Querier, cartID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `
		SELECT cl.id, cl.product_id, p.name, cl.quantity, cl.price
		FROM cart_lines cl
		JOIN products p ON p.id = cl.product_id
		WHERE cl.cart_id=$1
		ORDER BY cl.id
	`, cartID)
	if err != nil {
		return nil, fmt.Errorf("load cart lines: %w", err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.ProductID, &l.ProductName, &l.Quantity, &l.Price); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load cart lines: %w", err)
	}
	return lines, nil
}

func (r *PostgresRepository) InsertLineTx(ctx context.Context, q db.Querier, cartID, productID int64, qty int, price decimal.Decimal) error {
	_, err := q.Exec(ctx, `
		INSERT INTO cart_lines (cart_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4)
	`, cartID, productID, qty, price)
	if err != nil {
		return fmt.Errorf("insert cart line: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SetQuantityTx(ctx context.Context, q db.Querier, lineID int64, qty int) error {
	if _, err := q.Exec(ctx, `UPDATE cart_lines SET quantity=$2 WHERE id=$1`, lineID, qty); err != nil {
		return fmt.Errorf("update cart line: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteLineTx(ctx context.Context, q db.Querier, lineID int64) error {
	if _, err := q.Exec(ctx, `DELETE FROM cart_lines WHERE id=$1`, lineID); err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ClearTx(ctx context.Context, q db.Querier, cartID int64) error {
	if _, err := q.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id=$1`, cartID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SaveTotalTx(ctx context.Context, q db.Querier, cartID int64, total decimal.Decimal) (time.Time, error) {
	var updatedAt time.Time
	err := q.QueryRow(ctx, `
		UPDATE carts SET total_price=$2, updated_at=now()
		WHERE id=$1
		RETURNING updated_at
	`, cartID, total).Scan(&updatedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("save cart total: %w", err)
	}
	return updatedAt, nil
}

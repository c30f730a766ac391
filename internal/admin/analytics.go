// Package admin serves store-wide reporting over a plain database/sql handle,
// which can point at a read replica.
package admin

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

const topProductsLimit = 5

type Analytics struct {
	TotalUsers   int64           `json:"totalUsers"`
	TotalOrders  int64           `json:"totalOrders"`
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
	TopProducts  []TopProduct    `json:"topProducts"`
}

type TopProduct struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	TotalSold int64  `json:"totalSold"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Analytics reads every figure from one read-only snapshot.
func (r *Repository) Analytics(ctx context.Context) (Analytics, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return Analytics{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var a Analytics
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&a.TotalUsers); err != nil {
		return Analytics{}, fmt.Errorf("count users: %w", err)
	}
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&a.TotalOrders); err != nil {
		return Analytics{}, fmt.Errorf("count orders: %w", err)
	}
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(o.total_amount), 0)
		FROM orders o
		JOIN payments p ON p.order_id = o.id
		WHERE p.status = 'SUCCESS'
	`).Scan(&a.TotalRevenue)
	if err != nil {
		return Analytics{}, fmt.Errorf("sum revenue: %w", err)
	}

	a.TopProducts, err = topProducts(ctx, tx)
	if err != nil {
		return Analytics{}, err
	}

	if err := tx.Commit(); err != nil {
		return Analytics{}, fmt.Errorf("commit tx: %w", err)
	}
	return a, nil
}

func topProducts(ctx context.Context, tx *sql.Tx) ([]TopProduct, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT ol.product_id, p.name, SUM(ol.quantity) AS sold
		FROM order_lines ol
		JOIN products p ON p.id = ol.product_id
		GROUP BY ol.product_id, p.name
		ORDER BY sold DESC, ol.product_id
		LIMIT $1
	`, topProductsLimit)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	defer rows.Close()

	out := []TopProduct{}
	for rows.Next() {
		var tp TopProduct
		if err := rows.Scan(&tp.ProductID, &tp.Name, &tp.TotalSold); err != nil {
			return nil, fmt.Errorf("scan top product: %w", err)
		}
		out = append(out, tp)
	}
	return out, rows.Err()
}

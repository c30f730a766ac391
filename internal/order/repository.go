package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/payment"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, user_id, address_id, total_amount, status, created_at, updated_at`

// Store is the write side used by checkout, on the checkout transaction.
type Store interface {
	CreateTx(ctx context.Context, q db.Querier, o *Order) error
	AddLineTx(ctx context.Context, q db.Querier, l *Line) error
}

type Repository interface {
	Store
	GetByID(ctx context.Context, id int64) (Order, error)
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	SetStatusTx(ctx context.Context, q db.Querier, id int64, status Status) (Status, error)
}

type PostgresRepository struct {
	pool db.Querier
}

func NewPostgresRepository(pool db.Querier) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) CreateTx(ctx context.Context, q db.Querier, o *Order) error {
	err := q.QueryRow(ctx, `
		INSERT INTO orders (user_id, address_id, total_amount, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, o.UserID, o.AddressID, o.TotalAmount, string(o.Status)).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *PostgresRepository) AddLineTx(ctx context.Context, q db.Querier, l *Line) error {
	err := q.QueryRow(ctx, `
		INSERT INTO order_lines (order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, l.OrderID, l.ProductID, l.Quantity, l.UnitPrice).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("insert order line: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (Order, error) {
	var (
		o      Order
		status string
	)
	err := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.UserID, &o.AddressID, &o.TotalAmount, &status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, apperr.NotFound("order")
		}
		return Order{}, fmt.Errorf("select order: %w", err)
	}
	o.Status = Status(status)

	orders := []Order{o}
	if err := r.attach(ctx, orders); err != nil {
		return Order{}, err
	}
	return orders[0], nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC, id DESC`, userID)
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id DESC`)
}

// SetStatusTx changes an order's status and returns the status it replaced.
func (r *PostgresRepository) SetStatusTx(ctx context.Context, q db.Querier, id int64, status Status) (Status, error) {
	var previous string
	err := q.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, id).Scan(&previous)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.NotFound("order")
		}
		return "", fmt.Errorf("lock order: %w", err)
	}

	if _, err := q.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, id, string(status)); err != nil {
		return "", fmt.Errorf("update order status: %w", err)
	}
	return Status(previous), nil
}

func (r *PostgresRepository) list(ctx context.Context, sql string, args ...any) ([]Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		var (
			o      Order
			status string
		)
		if err := rows.Scan(&o.ID, &o.UserID, &o.AddressID, &o.TotalAmount, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Status = Status(status)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	if err := r.attach(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attach loads lines and payments for all orders with one query each.
func (r *PostgresRepository) attach(ctx context.Context, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	lineRows, err := r.pool.Query(ctx, `
		SELECT ol.id, ol.order_id, ol.product_id, p.name, ol.quantity, ol.unit_price
		FROM order_lines ol
		JOIN products p ON p.id = ol.product_id
		WHERE ol.order_id = ANY($1)
		ORDER BY ol.id
	`, ids)
	if err != nil {
		return fmt.Errorf("select order lines: %w", err)
	}
	for lineRows.Next() {
		var l Line
		if err := lineRows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPrice); err != nil {
			lineRows.Close()
			return fmt.Errorf("scan order line: %w", err)
		}
		i := index[l.OrderID]
		orders[i].Lines = append(orders[i].Lines, l)
	}
	lineRows.Close()
	if err := lineRows.Err(); err != nil {
		return fmt.Errorf("order lines: %w", err)
	}

	payRows, err := r.pool.Query(ctx, `
		SELECT id, order_id, amount, method, status, transaction_id, created_at
		FROM payments
		WHERE order_id = ANY($1)
	`, ids)
	if err != nil {
		return fmt.Errorf("select payments: %w", err)
	}
	defer payRows.Close()
	for payRows.Next() {
		var (
			p              payment.Payment
			method, status string
		)
		if err := payRows.Scan(&p.ID, &p.OrderID, &p.Amount, &method, &status, &p.TransactionID, &p.CreatedAt); err != nil {
			return fmt.Errorf("scan payment: %w", err)
		}
		p.Method = payment.Method(method)
		p.Status = payment.Status(status)
		orders[index[p.OrderID]].Payment = &p
	}
	return payRows.Err()
}

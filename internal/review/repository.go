package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/db"
	"github.com/jackc/pgx/v5"
)

type Repository interface {
	ListByProduct(ctx context.Context, productID int64) ([]Review, error)
	GetTx(ctx context.Context, q db.Querier, id int64) (Review, error)
	CreateTx(ctx context.Context, q db.Querier, r *Review) error
	UpdateTx(ctx context.Context, q db.Querier, r *Review) error
	DeleteTx(ctx context.Context, q db.Querier, id int64) error
	RefreshRatingTx(ctx context.Context, q db.Querier, productID int64) error
}

type PostgresRepository struct {
	pool db.Querier
}

func NewPostgresRepository(pool db.Querier) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const selectReview = `
	SELECT r.id, r.product_id, r.user_id, u.full_name, r.rating, r.comment, r.created_at
	FROM reviews r
	JOIN users u ON u.id = r.user_id`

func (r *PostgresRepository) ListByProduct(ctx context.Context, productID int64) ([]Review, error) {
	rows, err := r.pool.Query(ctx, selectReview+` WHERE r.product_id=$1 ORDER BY r.created_at DESC, r.id DESC`, productID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	out := []Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) GetTx(ctx context.Context, q db.Querier, id int64) (Review, error) {
	rv, err := scanReview(q.QueryRow(ctx, selectReview+` WHERE r.id=$1 FOR UPDATE OF r`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Review{}, apperr.NotFound("review")
		}
		return Review{}, fmt.Errorf("get review: %w", err)
	}
	return rv, nil
}

func (r *PostgresRepository) CreateTx(ctx context.Context, q db.Querier, rv *Review) error {
	err := q.QueryRow(ctx, `
		INSERT INTO reviews (product_id, user_id, rating, comment)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, rv.ProductID, rv.UserID, rv.Rating, rv.Comment).Scan(&rv.ID, &rv.CreatedAt)
	if err != nil {
		switch {
		case db.IsUniqueViolation(err):
			return apperr.Duplicate("review")
		case db.IsForeignKeyViolation(err):
			return apperr.NotFound("product")
		}
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateTx(ctx context.Context, q db.Querier, rv *Review) error {
	tag, err := q.Exec(ctx, `UPDATE reviews SET rating=$2, comment=$3 WHERE id=$1`, rv.ID, rv.Rating, rv.Comment)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("review")
	}
	return nil
}

func (r *PostgresRepository) DeleteTx(ctx context.Context, q db.Querier, id int64) error {
	tag, err := q.Exec(ctx, `DELETE FROM reviews WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("review")
	}
	return nil
}

// RefreshRatingTx rewrites the product's rating aggregate from its reviews.
func (r *PostgresRepository) RefreshRatingTx(ctx context.Context, q db.Querier, productID int64) error {
	_, err := q.Exec(ctx, `
		UPDATE products p
		SET average_rating = agg.avg_rating, review_count = agg.cnt, updated_at = now()
		FROM (
			SELECT COALESCE(AVG(rating), 0)::float8 AS avg_rating, COUNT(*)::int AS cnt
			FROM reviews WHERE product_id = $1
		) agg
		WHERE p.id = $1
	`, productID)
	if err != nil {
		return fmt.Errorf("refresh rating: %w", err)
	}
	return nil
}

func scanReview(row pgx.Row) (Review, error) {
	var rv Review
	err := row.Scan(&rv.ID, &rv.ProductID, &rv.UserID, &rv.UserName, &rv.Rating, &rv.Comment, &rv.CreatedAt)
	return rv, err
}

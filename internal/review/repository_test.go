package review

import (
	"context"
	"testing"
	"time"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reviewCols = []string{"id", "product_id", "user_id", "full_name", "rating", "comment", "created_at"}

func TestPostgresRepository_ListByProduct(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM reviews r JOIN users u ON u.id = r.user_id WHERE r.product_id=\$1 ORDER BY`).
		WithArgs(int64(4)).
		WillReturnRows(mock.NewRows(reviewCols).
			AddRow(int64(2), int64(4), int64(8), "Bo", 5, "great", now).
			AddRow(int64(1), int64(4), int64(7), "Ana", 3, "", now.Add(-time.Hour)))

	got, err := NewPostgresRepository(mock).ListByProduct(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Bo", got[0].UserName)
	assert.Equal(t, 3, got[1].Rating)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CreateTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("INSERT INTO reviews").
		WithArgs(int64(4), int64(7), 4, "nice").
		WillReturnRows(mock.NewRows([]string{"id", "created_at"}).AddRow(int64(11), now))

	rv := &Review{ProductID: 4, UserID: 7, Rating: 4, Comment: "nice"}
	require.NoError(t, NewPostgresRepository(nil).CreateTx(context.Background(), mock, rv))
	assert.Equal(t, int64(11), rv.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CreateTxConstraintErrors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO reviews").WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectQuery("INSERT INTO reviews").WillReturnError(&pgconn.PgError{Code: "23503"})

	repo := NewPostgresRepository(nil)
	err = repo.CreateTx(context.Background(), mock, &Review{ProductID: 4, UserID: 7, Rating: 4})
	require.ErrorIs(t, err, apperr.ErrDuplicate)

	err = repo.CreateTx(context.Background(), mock, &Review{ProductID: 99, UserID: 7, Rating: 4})
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetTxMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`WHERE r.id=\$1 FOR UPDATE OF r`).
		WithArgs(int64(3)).
		WillReturnRows(mock.NewRows(reviewCols))

	_, err = NewPostgresRepository(nil).GetTx(context.Background(), mock, 3)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPostgresRepository_UpdateDeleteAndRefresh(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE reviews SET rating").
		WithArgs(int64(3), 2, "meh").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE products p SET average_rating").
		WithArgs(int64(4)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("DELETE FROM reviews").
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	repo := NewPostgresRepository(nil)
	ctx := context.Background()
	require.NoError(t, repo.UpdateTx(ctx, mock, &Review{ID: 3, Rating: 2, Comment: "meh"}))
	require.NoError(t, repo.RefreshRatingTx(ctx, mock, 4))
	require.ErrorIs(t, repo.DeleteTx(ctx, mock, 3), apperr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

package admin

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryAnalytics_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM users`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(12)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM orders`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(30)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(SUM(o.total_amount), 0)`)).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("1234.50"))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM order_lines ol`)).
		WithArgs(topProductsLimit).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "name", "sold"}).
			AddRow(int64(3), "Widget", int64(40)).
			AddRow(int64(1), "Gadget", int64(12)))
	mock.ExpectCommit()

	a, err := NewRepository(db).Analytics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), a.TotalUsers)
	assert.Equal(t, int64(30), a.TotalOrders)
	assert.True(t, a.TotalRevenue.Equal(decimal.RequireFromString("1234.50")))
	require.Len(t, a.TopProducts, 2)
	assert.Equal(t, TopProduct{ProductID: 3, Name: "Widget", TotalSold: 40}, a.TopProducts[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryAnalytics_EmptyStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM users`)).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM orders`)).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery(regexp.QuoteMeta(`SUM(o.total_amount)`)).WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("0"))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM order_lines ol`)).WillReturnRows(sqlmock.NewRows([]string{"product_id", "name", "sold"}))
	mock.ExpectCommit()

	a, err := NewRepository(db).Analytics(context.Background())
	require.NoError(t, err)
	assert.True(t, a.TotalRevenue.IsZero())
	assert.NotNil(t, a.TopProducts)
	assert.Empty(t, a.TopProducts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryAnalytics_QueryErrorRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM users`)).WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	_, err = NewRepository(db).Analytics(context.Background())
	require.ErrorContains(t, err, "count users")
	require.NoError(t, mock.ExpectationsWereMet())
}

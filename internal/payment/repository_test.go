package payment

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepository_InsertTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("INSERT INTO payments").
		WithArgs(int64(7), pgxmock.AnyArg(), "UPI", "FAILED", "tx-1").
		WillReturnRows(mock.NewRows([]string{"id", "created_at"}).AddRow(int64(3), now))

	p := &Payment{OrderID: 7, Amount: decimal.RequireFromString("25.00"), Method: MethodUPI, Status: StatusFailed, TransactionID: "tx-1"}
	require.NoError(t, NewPostgresRepository().InsertTx(context.Background(), mock, p))
	assert.Equal(t, int64(3), p.ID)
	assert.Equal(t, now, p.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

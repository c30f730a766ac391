package sequence

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextSequence(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO event_sequence AS s").
		WithArgs("12").
		WillReturnRows(mock.NewRows([]string{"last_sequence"}).AddRow(int64(1)))
	mock.ExpectQuery("INSERT INTO event_sequence AS s").
		WithArgs("12").
		WillReturnRows(mock.NewRows([]string{"last_sequence"}).AddRow(int64(2)))

	repo := NewRepository(mock)
	first, err := repo.NextSequence(context.Background(), "12")
	require.NoError(t, err)
	second, err := repo.NextSequence(context.Background(), "12")
	require.NoError(t, err)

	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNextSequence_EmptyPartition(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewRepository(mock).NextSequence(context.Background(), "")
	require.ErrorIs(t, err, errEmptyPartition)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNextSequence_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO event_sequence").WillReturnError(errors.New("db down"))

	_, err = NewRepository(mock).NextSequence(context.Background(), "12")
	require.ErrorContains(t, err, "next sequence for 12")
}

package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsufficientStockError(t *testing.T) {
	var err error = &InsufficientStockError{ProductID: 7, ProductName: "Desk Lamp", Requested: 5, Available: 3}
	wrapped := fmt.Errorf("checkout: %w", err)

	assert.True(t, errors.Is(wrapped, ErrInsufficientStock))
	assert.False(t, errors.Is(wrapped, ErrNotFound))

	var ise *InsufficientStockError
	require.True(t, errors.As(wrapped, &ise))
	assert.Equal(t, "Desk Lamp", ise.ProductName)
	assert.Contains(t, wrapped.Error(), "Desk Lamp")
}

func TestHelpers(t *testing.T) {
	err := NotFound("address")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "address not found", err.Error())

	err = Invalid("quantity must be positive, got %d", 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "invalid input: quantity must be positive, got 0", err.Error())

	err = Duplicate("review")
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, "review already exists", err.Error())
}

package payment

import (
	"context"
	"math/rand"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Result is the outcome of one authorization attempt.
type Result struct {
	Status        Status
	TransactionID string
}

// Authorizer decides whether a payment goes through. A decline is a Result
// with StatusFailed; an error means the attempt itself could not be made.
type Authorizer interface {
	Authorize(ctx context.Context, amount decimal.Decimal, method Method) (Result, error)
}

// RandomAuthorizer approves with a fixed probability. It stands in for a
// payment gateway.
type RandomAuthorizer struct {
	successRate float64
	roll        func() float64
	newID       func() string
}

func NewRandomAuthorizer(successRate float64) *RandomAuthorizer {
	return &RandomAuthorizer{
		successRate: successRate,
		roll:        rand.Float64,
		newID:       uuid.NewString,
	}
}

func (a *RandomAuthorizer) Authorize(ctx context.Context, amount decimal.Decimal, method Method) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	status := StatusFailed
	if a.roll() < a.successRate {
		status = StatusSuccess
	}
	return Result{Status: status, TransactionID: a.newID()}, nil
}

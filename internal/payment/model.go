package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodCreditCard     Method = "CREDIT_CARD"
	MethodDebitCard      Method = "DEBIT_CARD"
	MethodUPI            Method = "UPI"
	MethodCashOnDelivery Method = "CASH_ON_DELIVERY"
)

func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToUpper(strings.TrimSpace(s))); m {
	case MethodCreditCard, MethodDebitCard, MethodUPI, MethodCashOnDelivery:
		return m, nil
	default:
		return "", fmt.Errorf("unknown payment method %q", s)
	}
}

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusPending Status = "PENDING"
)

// Payment is the single terminal payment record of an order. A declined
// authorization is stored with StatusFailed; it is never retried in place.
type Payment struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"orderId"`
	Amount        decimal.Decimal `json:"amount"`
	Method        Method          `json:"paymentMethod"`
	Status        Status          `json:"status"`
	TransactionID string          `json:"transactionId"`
	CreatedAt     time.Time       `json:"createdAt"`
}

package order

import (
	"encoding/json"
	"time"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/payment"
	"github.com/shopspring/decimal"
)

// Order is immutable after checkout except for its status.
type Order struct {
	ID          int64
	UserID      int64
	AddressID   int64
	TotalAmount decimal.Decimal
	Status      Status
	Lines       []Line
	Payment     *payment.Payment
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Line copies the price the customer paid; it is not linked to the live catalog price.
type Line struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l Line) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          int64           `json:"id"`
		ProductID   int64           `json:"productId"`
		ProductName string          `json:"productName"`
		Quantity    int             `json:"quantity"`
		UnitPrice   decimal.Decimal `json:"unitPrice"`
		Subtotal    decimal.Decimal `json:"subtotal"`
	}{l.ID, l.ProductID, l.ProductName, l.Quantity, l.UnitPrice, l.Subtotal()})
}

func (o Order) MarshalJSON() ([]byte, error) {
	lines := o.Lines
	if lines == nil {
		lines = []Line{}
	}
	return json.Marshal(struct {
		ID          int64            `json:"id"`
		UserID      int64            `json:"userId"`
		AddressID   int64            `json:"addressId"`
		TotalAmount decimal.Decimal  `json:"totalAmount"`
		Status      Status           `json:"status"`
		Items       []Line           `json:"items"`
		Payment     *payment.Payment `json:"payment"`
		CreatedAt   time.Time        `json:"createdAt"`
		UpdatedAt   time.Time        `json:"updatedAt"`
	}{o.ID, o.UserID, o.AddressID, o.TotalAmount, o.Status, lines, o.Payment, o.CreatedAt, o.UpdatedAt})
}

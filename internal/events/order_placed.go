package events

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventTypeOrderPlaced = "OrderPlaced"
	orderPlacedSchema    = "storefront.order.placed.v1"
)

type OrderPlacedPayload struct {
	OrderID       int64             `json:"orderId"`
	UserID        int64             `json:"userId"`
	AddressID     int64             `json:"addressId"`
	TotalAmount   decimal.Decimal   `json:"totalAmount"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"paymentStatus,omitempty"`
	PaymentMethod string            `json:"paymentMethod,omitempty"`
	Items         []OrderPlacedLine `json:"items"`
	PlacedAt      time.Time         `json:"placedAt"`
}

type OrderPlacedLine struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type OrderPlacedEvent = Envelope[OrderPlacedPayload]

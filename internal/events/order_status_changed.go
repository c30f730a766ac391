package events

import "time"

const (
	EventTypeOrderStatusChanged = "OrderStatusChanged"
	orderStatusChangedSchema    = "storefront.order.status_changed.v1"
)

type OrderStatusChangedPayload struct {
	OrderID        int64     `json:"orderId"`
	UserID         int64     `json:"userId"`
	PreviousStatus string    `json:"previousStatus"`
	Status         string    `json:"status"`
	ChangedAt      time.Time `json:"changedAt"`
}

type OrderStatusChangedEvent = Envelope[OrderStatusChangedPayload]

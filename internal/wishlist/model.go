package wishlist

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a wishlisted product with its live catalog price.
type Item struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	AddedAt     time.Time       `json:"addedAt"`
}

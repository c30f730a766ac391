package cart

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Cart struct {
	ID        int64
	UserID    int64
	Lines     []Line
	UpdatedAt time.Time
}

// Line holds the price captured when the product was first added; later
// catalog price changes do not reach it.
type Line struct {
	ID          int64
	ProductID   int64
	ProductName string
	Quantity    int
	Price       decimal.Decimal
}

func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// TotalPrice is always derived from the current lines.
func (c Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func (c Cart) IsEmpty() bool { return len(c.Lines) == 0 }

func (c Cart) line(id int64) (Line, bool) {
	for _, l := range c.Lines {
		if l.ID == id {
			return l, true
		}
	}
	return Line{}, false
}

func (c Cart) lineForProduct(productID int64) (Line, bool) {
	for _, l := range c.Lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return Line{}, false
}

type lineJSON struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

func (l Line) MarshalJSON() ([]byte, error) {
	return json.Marshal(lineJSON{
		ID:          l.ID,
		ProductID:   l.ProductID,
		ProductName: l.ProductName,
		Quantity:    l.Quantity,
		Price:       l.Price,
		Subtotal:    l.Subtotal(),
	})
}

func (c Cart) MarshalJSON() ([]byte, error) {
	items := c.Lines
	if items == nil {
		items = []Line{}
	}
	return json.Marshal(struct {
		ID         int64           `json:"id"`
		UserID     int64           `json:"userId"`
		Items      []Line          `json:"items"`
		TotalPrice decimal.Decimal `json:"totalPrice"`
		UpdatedAt  time.Time       `json:"updatedAt"`
	}{
		ID:         c.ID,
		UserID:     c.UserID,
		Items:      items,
		TotalPrice: c.TotalPrice(),
		UpdatedAt:  c.UpdatedAt,
	})
}

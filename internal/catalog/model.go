package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Stock         int             `json:"stock"`
	ImageURL      string          `json:"imageUrl"`
	CategoryID    *int64          `json:"categoryId,omitempty"`
	AverageRating float64         `json:"averageRating"`
	ReviewCount   int             `json:"reviewCount"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Sort string

const (
	SortDefault   Sort = ""
	SortPriceLow  Sort = "price_low"
	SortPriceHigh Sort = "price_high"
	SortRating    Sort = "rating"
	SortNewest    Sort = "newest"
)

func ParseSort(s string) (Sort, error) {
	switch Sort(strings.ToLower(strings.TrimSpace(s))) {
	case SortDefault:
		return SortDefault, nil
	case SortPriceLow:
		return SortPriceLow, nil
	case SortPriceHigh:
		return SortPriceHigh, nil
	case SortRating:
		return SortRating, nil
	case SortNewest:
		return SortNewest, nil
	default:
		return "", fmt.Errorf("unknown sort %q", s)
	}
}

func (s Sort) orderBy() string {
	switch s {
	case SortPriceLow:
		return "price ASC, id ASC"
	case SortPriceHigh:
		return "price DESC, id ASC"
	case SortRating:
		return "average_rating DESC, id ASC"
	case SortNewest:
		return "created_at DESC, id DESC"
	default:
		return "id ASC"
	}
}

// Filter narrows a product listing. Zero values mean "no constraint".
type Filter struct {
	Query      string
	CategoryID *int64
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Sort       Sort
}

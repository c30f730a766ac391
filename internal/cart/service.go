package cart

import (
	"context"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/db"
)

type ProductReader interface {
	GetTx(ctx context.Context, q db.Querier, id int64) (catalog.Product, error)
}

// Service is the cart aggregate. Each operation runs in one transaction that
// holds the cart row lock, so concurrent requests for the same user apply one
// after another and the stored total is rewritten from the full line set.
type Service struct {
	store    Store
	products ProductReader
	tx       db.TxRunner
}

func NewService(store Store, products ProductReader, tx db.TxRunner) *Service {
	return &Service{store: store, products: products, tx: tx}
}

func (s *Service) Get(ctx context.Context, userID int64) (Cart, error) {
	var c Cart
	err := s.tx.InTx(ctx, func(ctx context.Context, q db.Querier) error {
		var err error
		c, err = s.load(ctx, q, userID)
		return err
	})
	return c, err
}

// ProvisionTx creates the user's empty cart if it does not exist yet.
func (s *Service) ProvisionTx(ctx context.Context, q db.Querier, userID int64) error {
	_, err := s.store.LockTx(ctx, q, userID)
	return err
}

func (s *Service) AddLine(ctx context.Context, userID, productID int64, qty int) (Cart, error) {
	var c Cart
	err := s.tx.InTx(ctx, func(ctx context.Context, q db.Querier) error {
		var err error
		c, err = s.AddLineTx(ctx, q, userID, productID, qty)
		return err
	})
	return c, err
}

// AddLineTx adds qty units of a product on the caller's transaction. A product
// already in the cart has its quantity increased and keeps its original price.
func (s *Service) AddLineTx(ctx context.Context, q db.Querier, userID, productID int64, qty int) (Cart, error) {
	if qty <= 0 {
		return Cart{}, apperr.Invalid("quantity must be positive")
	}

	c, err := s.load(ctx, q, userID)
	if err != nil {
		return Cart{}, err
	}

	p, err := s.products.GetTx(ctx, q, productID)
	if err != nil {
		return Cart{}, err
	}
	if p.Stock < qty {
		return Cart{}, &apperr.InsufficientStockError{ProductID: p.ID, ProductName: p.Name, Requested: qty, Available: p.Stock}
	}

	if existing, ok := c.lineForProduct(productID); ok {
		err = s.store.SetQuantityTx(ctx, q, existing.ID, existing.Quantity+qty)
	} else {
		err = s.store.InsertLineTx(ctx, q, c.ID, productID, qty, p.Price)
	}
	if err != nil {
		return Cart{}, err
	}

	return s.recompute(ctx, q, c)
}

// UpdateLine sets a line's quantity after checking it against current stock.
// On failure the line keeps its previous quantity.
func (s *Service) UpdateLine(ctx context.Context, userID, lineID int64, qty int) (Cart, error) {
	if qty <= 0 {
		return Cart{}, apperr.Invalid("quantity must be positive")
	}

	var c Cart
	err := s.tx.InTx(ctx, func(ctx context.Context, q db.Querier) error {
		current, err := s.load(ctx, q, userID)
		if err != nil {
			return err
		}
		line, ok := current.line(lineID)
		if !ok {
			return apperr.NotFound("cart line")
		}

		p, err := s.products.GetTx(ctx, q, line.ProductID)
		if err != nil {
			return err
		}
		if p.Stock < qty {
			return &apperr.InsufficientStockError{ProductID: p.ID, ProductName: p.Name, Requested: qty, Available: p.Stock}
		}

		if err := s.store.SetQuantityTx(ctx, q, lineID, qty); err != nil {
			return err
		}
		c, err = s.recompute(ctx, q, current)
		return err
	})
	if err != nil {
		return Cart{}, err
	}
	return c, nil
}

func (s *Service) RemoveLine(ctx context.Context, userID, lineID int64) (Cart, error) {
	var c Cart
	err := s.tx.InTx(ctx, func(ctx context.Context, q db.Querier) error {
		current, err := s.load(ctx, q, userID)
		if err != nil {
			return err
		}
		if _, ok := current.line(lineID); !ok {
			return apperr.NotFound("cart line")
		}
		if err := s.store.DeleteLineTx(ctx, q, lineID); err != nil {
			return err
		}
		c, err = s.recompute(ctx, q, current)
		return err
	})
	if err != nil {
		return Cart{}, err
	}
	return c, nil
}

func (s *Service) Clear(ctx context.Context, userID int64) error {
	return s.tx.InTx(ctx, func(ctx context.Context, q db.Querier) error {
		c, err := s.store.LockTx(ctx, q, userID)
		if err != nil {
			return err
		}
		return s.ClearTx(ctx, q, c.ID)
	})
}

// ClearTx empties a cart the caller has already locked.
func (s *Service) ClearTx(ctx context.Context, q db.Querier, cartID int64) error {
	if err := s.store.ClearTx(ctx, q, cartID); err != nil {
		return err
	}
	_, err := s.store.SaveTotalTx(ctx, q, cartID, Cart{}.TotalPrice())
	return err
}

// LoadTx locks the user's cart and reads its lines on the caller's transaction.
func (s *Service) LoadTx(ctx context.Context, q db.Querier, userID int64) (Cart, error) {
	return s.load(ctx, q, userID)
}

func (s *Service) load(ctx context.Context, q db.Querier, userID int64) (Cart, error) {
	c, err := s.store.LockTx(ctx, q, userID)
	if err != nil {
		return Cart{}, err
	}
	c.Lines, err = s.store.LinesTx(ctx, q, c.ID)
	if err != nil {
		return Cart{}, err
	}
	return c, nil
}

func (s *Service) recompute(ctx context.Context, q db.Querier, c Cart) (Cart, error) {
	lines, err := s.store.LinesTx(ctx, q, c.ID)
	if err != nil {
		return Cart{}, err
	}
	c.Lines = lines
	c.UpdatedAt, err = s.store.SaveTotalTx(ctx, q, c.ID, c.TotalPrice())
	if err != nil {
		return Cart{}, err
	}
	return c, nil
}

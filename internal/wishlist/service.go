package wishlist

import (
	"context"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/db"
)

type CartAdder interface {
	AddLineTx(ctx context.Context, q db.Querier, userID, productID int64, qty int) (cart.Cart, error)
}

type Service struct {
	repo  Repository
	carts CartAdder
	tx    db.TxRunner
}

func NewService(repo Repository, carts CartAdder, tx db.TxRunner) *Service {
	return &Service{repo: repo, carts: carts, tx: tx}
}

func (s *Service) List(ctx context.Context, userID int64) ([]Item, error) {
	return s.repo.List(ctx, userID)
}

func (s *Service) Add(ctx context.Context, userID, productID int64) error {
	return s.repo.Add(ctx, userID, productID)
}

func (s *Service) Remove(ctx context.Context, userID, productID int64) error {
	return s.tx.InTx(ctx, func(ctx context.Context, q db.Querier) error {
		return s.repo.RemoveTx(ctx, q, userID, productID)
	})
}

// MoveToCart adds one unit to the cart and drops the wishlist entry. Neither
// happens if the product is out of stock or not on the wishlist.
func (s *Service) MoveToCart(ctx context.Context, userID, productID int64) (cart.Cart, error) {
	var c cart.Cart
	err := s.tx.InTx(ctx, func(ctx context.Context, q db.Querier) error {
		if err := s.repo.RemoveTx(ctx, q, userID, productID); err != nil {
			return err
		}
		var err error
		c, err = s.carts.AddLineTx(ctx, q, userID, productID, 1)
		return err
	})
	if err != nil {
		return cart.Cart{}, err
	}
	return c, nil
}

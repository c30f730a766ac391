// Package checkout turns a user's cart into an order in a single transaction.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/identity"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/metrics"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/payment"
	"go.uber.org/zap"
)

type Carts interface {
	LoadTx(ctx context.Context, q db.Querier, userID int64) (cart.Cart, error)
	ClearTx(ctx context.Context, q db.Querier, cartID int64) error
}

type Users interface {
	GetUserTx(ctx context.Context, q db.Querier, id int64) (identity.User, error)
	GetAddressTx(ctx context.Context, q db.Querier, userID, id int64) (identity.Address, error)
}

type Publisher interface {
	PublishOrderPlaced(ctx context.Context, o order.Order) error
}

// Invalidator drops cached product reads after their stock changed.
type Invalidator interface {
	Invalidate(ctx context.Context, ids ...int64)
}

type Deps struct {
	Tx         db.TxRunner
	Carts      Carts
	Users      Users
	Products   catalog.TxRepository
	Orders     order.Store
	Payments   payment.Store
	Authorizer payment.Authorizer
	Publisher  Publisher
	Cache      Invalidator
	Metrics    *metrics.Collectors
	Logger     *zap.Logger
	Timeout    time.Duration
}

type Service struct {
	d Deps
}

func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Service{d: d}
}

// PlaceOrder converts the user's cart into an order. Stock re-validation,
// order creation, stock decrements, the payment record and the cart clear all
// commit together or not at all. A declined payment still places the order.
func (s *Service) PlaceOrder(ctx context.Context, userID, addressID int64, rawMethod string) (order.Order, error) {
	method, err := payment.ParseMethod(rawMethod)
	if err != nil {
		s.observe(apperr.ErrInvalidInput)
		return order.Order{}, apperr.Invalid("%s", err.Error())
	}

	if s.d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.d.Timeout)
		defer cancel()
	}

	var placed order.Order
	err = s.d.Tx.InTx(ctx, func(ctx context.Context, q db.Querier) error {
		var err error
		placed, err = s.placeTx(ctx, q, userID, addressID, method)
		return err
	})
	if err != nil {
		s.observe(err)
		s.logFailure(userID, err)
		return order.Order{}, err
	}

	s.afterCommit(ctx, placed)
	return placed, nil
}

func (s *Service) placeTx(ctx context.Context, q db.Querier, userID, addressID int64, method payment.Method) (order.Order, error) {
	c, err := s.d.Carts.LoadTx(ctx, q, userID)
	if err != nil {
		return order.Order{}, err
	}
	if c.IsEmpty() {
		return order.Order{}, apperr.ErrEmptyCart
	}

	if _, err := s.d.Users.GetUserTx(ctx, q, userID); err != nil {
		return order.Order{}, err
	}
	if _, err := s.d.Users.GetAddressTx(ctx, q, userID, addressID); err != nil {
		return order.Order{}, err
	}

	products, err := s.lockProducts(ctx, q, c)
	if err != nil {
		return order.Order{}, err
	}

	o := order.Order{
		UserID:      userID,
		AddressID:   addressID,
		TotalAmount: c.TotalPrice(),
		Status:      order.StatusProcessing,
	}
	if err := s.d.Orders.CreateTx(ctx, q, &o); err != nil {
		return order.Order{}, err
	}

	for _, l := range c.Lines {
		ol := order.Line{
			OrderID:     o.ID,
			ProductID:   l.ProductID,
			ProductName: products[l.ProductID].Name,
			Quantity:    l.Quantity,
			UnitPrice:   l.Price,
		}
		if err := s.d.Orders.AddLineTx(ctx, q, &ol); err != nil {
			return order.Order{}, err
		}
		if err := s.d.Products.DecrementStockTx(ctx, q, l.ProductID, l.Quantity); err != nil {
			return order.Order{}, err
		}
		o.Lines = append(o.Lines, ol)
	}

	res, err := s.d.Authorizer.Authorize(ctx, o.TotalAmount, method)
	if err != nil {
		return order.Order{}, fmt.Errorf("authorize payment: %w", err)
	}
	pay := payment.Payment{
		OrderID:       o.ID,
		Amount:        o.TotalAmount,
		Method:        method,
		Status:        res.Status,
		TransactionID: res.TransactionID,
	}
	if err := s.d.Payments.InsertTx(ctx, q, &pay); err != nil {
		return order.Order{}, err
	}
	o.Payment = &pay

	if err := s.d.Carts.ClearTx(ctx, q, c.ID); err != nil {
		return order.Order{}, err
	}
	return o, nil
}

// lockProducts row-locks every product in the cart in ascending id order and
// then checks stock line by line in cart order.
func (s *Service) lockProducts(ctx context.Context, q db.Querier, c cart.Cart) (map[int64]catalog.Product, error) {
	ids := make([]int64, 0, len(c.Lines))
	for _, l := range c.Lines {
		ids = append(ids, l.ProductID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	products, err := s.d.Products.LockTx(ctx, q, ids)
	if err != nil {
		return nil, err
	}

	for _, l := range c.Lines {
		p, ok := products[l.ProductID]
		if !ok {
			return nil, apperr.NotFound("product")
		}
		if p.Stock < l.Quantity {
			return nil, &apperr.InsufficientStockError{
				ProductID:   p.ID,
				ProductName: p.Name,
				Requested:   l.Quantity,
				Available:   p.Stock,
			}
		}
	}
	return products, nil
}

func (s *Service) afterCommit(ctx context.Context, o order.Order) {
	outcome := metrics.OutcomePlaced
	if o.Payment != nil && o.Payment.Status != payment.StatusSuccess {
		outcome = metrics.OutcomePaymentFailed
	}
	if s.d.Metrics != nil {
		s.d.Metrics.ObserveCheckout(outcome)
	}

	s.d.Logger.Info("order placed",
		zap.Int64("user_id", o.UserID),
		zap.Int64("order_id", o.ID),
		zap.String("payment_status", string(o.Payment.Status)),
		zap.Int("lines", len(o.Lines)),
		zap.String("total", o.TotalAmount.StringFixed(2)),
	)

	// The response must not depend on anything below.
	bg := context.WithoutCancel(ctx)
	if s.d.Cache != nil {
		ids := make([]int64, 0, len(o.Lines))
		for _, l := range o.Lines {
			ids = append(ids, l.ProductID)
		}
		s.d.Cache.Invalidate(bg, ids...)
	}
	if s.d.Publisher != nil {
		if err := s.d.Publisher.PublishOrderPlaced(bg, o); err != nil {
			s.d.Logger.Warn("publish order placed failed", zap.Int64("order_id", o.ID), zap.Error(err))
		}
	}
}

func (s *Service) observe(err error) {
	if s.d.Metrics == nil {
		return
	}
	s.d.Metrics.ObserveCheckout(outcomeFor(err))
}

func (s *Service) logFailure(userID int64, err error) {
	if outcomeFor(err) == metrics.OutcomeRejected {
		s.d.Logger.Info("checkout rejected", zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	s.d.Logger.Error("checkout failed", zap.Int64("user_id", userID), zap.Error(err))
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, apperr.ErrEmptyCart),
		errors.Is(err, apperr.ErrInsufficientStock),
		errors.Is(err, apperr.ErrNotFound),
		errors.Is(err, apperr.ErrInvalidInput):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}

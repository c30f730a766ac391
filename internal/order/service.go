package order

import (
	"context"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/db"
	"go.uber.org/zap"
)

type StatusPublisher interface {
	PublishOrderStatusChanged(ctx context.Context, o Order, previous Status) error
}

// Service serves order history and admin status changes.
type Service struct {
	repo      Repository
	tx        db.TxRunner
	publisher StatusPublisher
	logger    *zap.Logger
}

func NewService(repo Repository, tx db.TxRunner, publisher StatusPublisher, logger *zap.Logger) *Service {
	return &Service{repo: repo, tx: tx, publisher: publisher, logger: logger}
}

// Get returns an order owned by userID. Other users' orders read as missing.
func (s *Service) Get(ctx context.Context, userID, id int64) (Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if o.UserID != userID {
		return Order{}, apperr.NotFound("order")
	}
	return o, nil
}

// History returns the user's orders, newest first.
func (s *Service) History(ctx context.Context, userID int64) ([]Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) All(ctx context.Context) ([]Order, error) {
	return s.repo.ListAll(ctx)
}

// SetStatus moves an order to any of the known statuses.
func (s *Service) SetStatus(ctx context.Context, id int64, raw string) (Order, error) {
	status, err := ParseStatus(raw)
	if err != nil {
		return Order{}, apperr.Invalid("%s", err.Error())
	}

	var previous Status
	err = s.tx.InTx(ctx, func(ctx context.Context, q db.Querier) error {
		var err error
		previous, err = s.repo.SetStatusTx(ctx, q, id, status)
		return err
	})
	if err != nil {
		return Order{}, err
	}

	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Order{}, err
	}

	s.logger.Info("order status changed",
		zap.Int64("order_id", id),
		zap.String("from", string(previous)),
		zap.String("to", string(status)),
	)
	if err := s.publisher.PublishOrderStatusChanged(context.WithoutCancel(ctx), o, previous); err != nil {
		s.logger.Warn("publish order status changed failed", zap.Int64("order_id", id), zap.Error(err))
	}
	return o, nil
}

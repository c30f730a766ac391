package review

import (
	"context"
	"strings"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/db"
	"go.uber.org/zap"
)

// Invalidator drops the cached product whose rating changed.
type Invalidator interface {
	Invalidate(ctx context.Context, ids ...int64)
}

// Service keeps products.average_rating and review_count in step with the
// review rows: every write refreshes them in the same transaction.
type Service struct {
	repo   Repository
	tx     db.TxRunner
	cache  Invalidator
	logger *zap.Logger
}

func NewService(repo Repository, tx db.TxRunner, cache Invalidator, logger *zap.Logger) *Service {
	return &Service{repo: repo, tx: tx, cache: cache, logger: logger}
}

func (s *Service) ForProduct(ctx context.Context, productID int64) ([]Review, error) {
	return s.repo.ListByProduct(ctx, productID)
}

func (s *Service) Create(ctx context.Context, userID, productID int64, rating int, comment string) (Review, error) {
	rv := Review{ProductID: productID, UserID: userID, Rating: rating, Comment: strings.TrimSpace(comment)}
	if err := validateRating(rating); err != nil {
		return Review{}, err
	}

	err := s.tx.InTx(ctx, func(ctx context.Context, q db.Querier) error {
		if err := s.repo.CreateTx(ctx, q, &rv); err != nil {
			return err
		}
		return s.repo.RefreshRatingTx(ctx, q, productID)
	})
	if err != nil {
		return Review{}, err
	}
	s.logger.Info("review created",
		zap.Int64("review_id", rv.ID),
		zap.Int64("product_id", productID),
		zap.Int("rating", rating),
	)
	s.invalidate(ctx, productID)
	return rv, nil
}

// Update changes the caller's own review. Reviews by other users read as missing.
func (s *Service) Update(ctx context.Context, userID, id int64, rating int, comment string) (Review, error) {
	if err := validateRating(rating); err != nil {
		return Review{}, err
	}

	var rv Review
	err := s.tx.InTx(ctx, func(ctx context.Context, q db.Querier) error {
		var err error
		rv, err = s.owned(ctx, q, userID, id)
		if err != nil {
			return err
		}
		rv.Rating = rating
		rv.Comment = strings.TrimSpace(comment)
		if err := s.repo.UpdateTx(ctx, q, &rv); err != nil {
			return err
		}
		return s.repo.RefreshRatingTx(ctx, q, rv.ProductID)
	})
	if err != nil {
		return Review{}, err
	}
	s.invalidate(ctx, rv.ProductID)
	return rv, nil
}

func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	var productID int64
	err := s.tx.InTx(ctx, func(ctx context.Context, q db.Querier) error {
		rv, err := s.owned(ctx, q, userID, id)
		if err != nil {
			return err
		}
		productID = rv.ProductID
		if err := s.repo.DeleteTx(ctx, q, id); err != nil {
			return err
		}
		return s.repo.RefreshRatingTx(ctx, q, productID)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, productID)
	return nil
}

func (s *Service) owned(ctx context.Context, q db.Querier, userID, id int64) (Review, error) {
	rv, err := s.repo.GetTx(ctx, q, id)
	if err != nil {
		return Review{}, err
	}
	if rv.UserID != userID {
		return Review{}, apperr.NotFound("review")
	}
	return rv, nil
}

func (s *Service) invalidate(ctx context.Context, productID int64) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, productID)
	}
}

func validateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return apperr.Invalid("rating must be between 1 and 5")
	}
	return nil
}

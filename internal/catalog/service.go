package catalog

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Service serves catalog reads through an optional cache and applies admin
// edits. Stock and prices seen here are for display only; checkout reads the
// store under lock.
type Service struct {
	repo   Repository
	cache  Cache
	logger *zap.Logger
	sfg    singleflight.Group
}

// NewService builds a catalog service. cache may be nil.
func NewService(repo Repository, cache Cache, logger *zap.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	v, err, _ := s.sfg.Do(strconv.FormatInt(id, 10), func() (any, error) {
		if s.cache != nil {
			p, err := s.cache.Get(ctx, id)
			if err == nil {
				return *p, nil
			}
			if !errors.Is(err, ErrCacheMiss) {
				s.logger.Warn("product cache get failed", zap.Int64("product_id", id), zap.Error(err))
			}
		}

		p, err := s.repo.Get(ctx, id)
		if err != nil {
			return Product{}, err
		}

		if s.cache != nil {
			if err := s.cache.Set(ctx, &p); err != nil {
				s.logger.Warn("product cache set failed", zap.Int64("product_id", id), zap.Error(err))
			}
		}
		return p, nil
	})
	if err != nil {
		return Product{}, err
	}
	return v.(Product), nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]Product, error) {
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return nil, apperr.Invalid("minPrice must not exceed maxPrice")
	}
	return s.repo.List(ctx, f)
}

func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	return s.repo.Categories(ctx)
}

func (s *Service) Create(ctx context.Context, p *Product) error {
	if err := validate(p); err != nil {
		return err
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Update(ctx context.Context, p *Product) error {
	if err := validate(p); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	s.invalidate(ctx, p.ID)
	return nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// Invalidate drops a cached product after a write made outside this service,
// such as a checkout decrement or a new review.
func (s *Service) Invalidate(ctx context.Context, ids ...int64) {
	for _, id := range ids {
		s.invalidate(ctx, id)
	}
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, id); err != nil {
		s.logger.Warn("product cache delete failed", zap.Int64("product_id", id), zap.Error(err))
	}
}

func validate(p *Product) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return apperr.Invalid("name is required")
	}
	if p.Price.IsNegative() {
		return apperr.Invalid("price must not be negative")
	}
	if p.Stock < 0 {
		return apperr.Invalid("stock must not be negative")
	}
	return nil
}

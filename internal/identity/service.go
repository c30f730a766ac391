package identity

import (
	"context"
	"strings"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
)

// Service exposes profile reads and the address book of the acting user.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Me(ctx context.Context, userID int64) (User, error) {
	return s.repo.GetUser(ctx, userID)
}

func (s *Service) Addresses(ctx context.Context, userID int64) ([]Address, error) {
	return s.repo.ListAddresses(ctx, userID)
}

func (s *Service) AddAddress(ctx context.Context, userID int64, a Address) (Address, error) {
	a.UserID = userID
	if err := validateAddress(&a); err != nil {
		return Address{}, err
	}
	if err := s.repo.CreateAddress(ctx, &a); err != nil {
		return Address{}, err
	}
	return a, nil
}

func (s *Service) UpdateAddress(ctx context.Context, userID, id int64, a Address) (Address, error) {
	a.ID = id
	a.UserID = userID
	if err := validateAddress(&a); err != nil {
		return Address{}, err
	}
	if err := s.repo.UpdateAddress(ctx, &a); err != nil {
		return Address{}, err
	}
	return a, nil
}

func (s *Service) DeleteAddress(ctx context.Context, userID, id int64) error {
	return s.repo.DeleteAddress(ctx, userID, id)
}

func validateAddress(a *Address) error {
	a.FullName = strings.TrimSpace(a.FullName)
	a.AddressLine1 = strings.TrimSpace(a.AddressLine1)
	a.City = strings.TrimSpace(a.City)
	switch {
	case a.FullName == "":
		return apperr.Invalid("fullName is required")
	case a.AddressLine1 == "":
		return apperr.Invalid("addressLine1 is required")
	case a.City == "":
		return apperr.Invalid("city is required")
	}
	return nil
}

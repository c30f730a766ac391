package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/identity"
	"go.uber.org/zap"
)

const minPasswordLen = 6

// CartProvisioner creates the empty cart that belongs to a new account.
type CartProvisioner interface {
	ProvisionTx(ctx context.Context, q db.Querier, userID int64) error
}

type SignupRequest struct {
	Email    string
	Password string
	FullName string
	Phone    string
}

type Session struct {
	Token    string        `json:"token"`
	UserID   int64         `json:"userId"`
	Email    string        `json:"email"`
	FullName string        `json:"fullName"`
	Role     identity.Role `json:"role"`
}

type Service struct {
	users  identity.Repository
	carts  CartProvisioner
	tx     db.TxRunner
	tokens *Tokens
	logger *zap.Logger
}

func NewService(users identity.Repository, carts CartProvisioner, tx db.TxRunner, tokens *Tokens, logger *zap.Logger) *Service {
	return &Service{users: users, carts: carts, tx: tx, tokens: tokens, logger: logger}
}

func (s *Service) Signup(ctx context.Context, req SignupRequest) (Session, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return Session{}, apperr.Invalid("email is not valid")
	}
	if len(req.Password) < minPasswordLen {
		return Session{}, apperr.Invalid("password must be at least %d characters", minPasswordLen)
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return Session{}, err
	}

	u := identity.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
		Phone:        strings.TrimSpace(req.Phone),
		Role:         identity.RoleUser,
	}
	err = s.tx.InTx(ctx, func(ctx context.Context, q db.Querier) error {
		if err := s.users.CreateUserTx(ctx, q, &u); err != nil {
			return err
		}
		return s.carts.ProvisionTx(ctx, q, u.ID)
	})
	if err != nil {
		return Session{}, err
	}

	s.logger.Info("user signed up", zap.Int64("user_id", u.ID))
	return s.session(u)
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Session{}, fmt.Errorf("invalid credentials: %w", apperr.ErrUnauthorized)
		}
		return Session{}, err
	}

	ok, err := CheckPassword(u.PasswordHash, password)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, fmt.Errorf("invalid credentials: %w", apperr.ErrUnauthorized)
	}
	return s.session(u)
}

// AdminLogin is Login restricted to admin accounts.
func (s *Service) AdminLogin(ctx context.Context, email, password string) (Session, error) {
	session, err := s.Login(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	if session.Role != identity.RoleAdmin {
		return Session{}, fmt.Errorf("admin only: %w", apperr.ErrForbidden)
	}
	return session, nil
}

func (s *Service) session(u identity.User) (Session, error) {
	token, err := s.tokens.Issue(Principal{UserID: u.ID, Role: u.Role})
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, UserID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role}, nil
}

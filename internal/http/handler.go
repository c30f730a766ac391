package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/admin"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/auth"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/identity"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/middleware"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/review"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/wishlist"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type CatalogService interface {
	Get(ctx context.Context, id int64) (catalog.Product, error)
	List(ctx context.Context, f catalog.Filter) ([]catalog.Product, error)
	Categories(ctx context.Context) ([]catalog.Category, error)
	Create(ctx context.Context, p *catalog.Product) error
	Update(ctx context.Context, p *catalog.Product) error
	Delete(ctx context.Context, id int64) error
}

type AuthService interface {
	Signup(ctx context.Context, req auth.SignupRequest) (auth.Session, error)
	Login(ctx context.Context, email, password string) (auth.Session, error)
	AdminLogin(ctx context.Context, email, password string) (auth.Session, error)
}

type IdentityService interface {
	Me(ctx context.Context, userID int64) (identity.User, error)
	Addresses(ctx context.Context, userID int64) ([]identity.Address, error)
	AddAddress(ctx context.Context, userID int64, a identity.Address) (identity.Address, error)
	UpdateAddress(ctx context.Context, userID, id int64, a identity.Address) (identity.Address, error)
	DeleteAddress(ctx context.Context, userID, id int64) error
}

type CartService interface {
	Get(ctx context.Context, userID int64) (cart.Cart, error)
	AddLine(ctx context.Context, userID, productID int64, qty int) (cart.Cart, error)
	UpdateLine(ctx context.Context, userID, lineID int64, qty int) (cart.Cart, error)
	RemoveLine(ctx context.Context, userID, lineID int64) (cart.Cart, error)
	Clear(ctx context.Context, userID int64) error
}

type CheckoutService interface {
	PlaceOrder(ctx context.Context, userID, addressID int64, paymentMethod string) (order.Order, error)
}

type OrderService interface {
	Get(ctx context.Context, userID, id int64) (order.Order, error)
	History(ctx context.Context, userID int64) ([]order.Order, error)
	All(ctx context.Context) ([]order.Order, error)
	SetStatus(ctx context.Context, id int64, status string) (order.Order, error)
}

type ReviewService interface {
	ForProduct(ctx context.Context, productID int64) ([]review.Review, error)
	Create(ctx context.Context, userID, productID int64, rating int, comment string) (review.Review, error)
	Update(ctx context.Context, userID, id int64, rating int, comment string) (review.Review, error)
	Delete(ctx context.Context, userID, id int64) error
}

type WishlistService interface {
	List(ctx context.Context, userID int64) ([]wishlist.Item, error)
	Add(ctx context.Context, userID, productID int64) error
	Remove(ctx context.Context, userID, productID int64) error
	MoveToCart(ctx context.Context, userID, productID int64) (cart.Cart, error)
}

type AnalyticsReader interface {
	Analytics(ctx context.Context) (admin.Analytics, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Catalog   CatalogService
	Auth      AuthService
	Identity  IdentityService
	Carts     CartService
	Checkout  CheckoutService
	Orders    OrderService
	Reviews   ReviewService
	Wishlist  WishlistService
	Analytics AnalyticsReader
	DB        Pinger
	Logger    *zap.Logger
}

type Handler struct {
	d Deps
}

func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Handler{d: d}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.d.DB != nil {
		if err := h.d.DB.Ping(r.Context()); err != nil {
			h.d.Logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "storefront"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error": msg,
	})
}

// writeAppError maps the apperr taxonomy onto status codes. Anything outside
// it is a 500 whose details stay in the log.
func (h *Handler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var stockErr *apperr.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		writeError(w, http.StatusConflict, stockErr.Error())
	case errors.Is(err, apperr.ErrInsufficientStock):
		writeError(w, http.StatusConflict, apperr.ErrInsufficientStock.Error())
	case errors.Is(err, apperr.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperr.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperr.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, apperr.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperr.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, apperr.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		h.d.Logger.Error("request timed out", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		h.d.Logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "request body is required")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// userID is set by middleware.Authenticate on every protected route.
func userID(r *http.Request) int64 {
	p, _ := auth.FromContext(r.Context())
	return p.UserID
}

package httpapi

import (
	"net/http"
	"time"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/metrics"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterOptions struct {
	Tokens         middleware.TokenParser
	Metrics        *metrics.Collectors
	Logger         *zap.Logger
	AllowOrigins   []string
	RequestTimeout time.Duration
}

func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if len(opts.AllowOrigins) == 0 {
		opts.AllowOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.AccessLog(opts.Logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(opts.AllowOrigins))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}

	r.Get("/health", h.Health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		if opts.RequestTimeout > 0 {
			r.Use(chimw.Timeout(opts.RequestTimeout))
		}

		r.Post("/auth/signup", h.Signup)
		r.Post("/auth/login", h.Login)
		r.Post("/auth/admin/login", h.AdminLogin)

		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)
		r.Get("/products/{id}/reviews", h.ListReviews)
		r.Get("/categories", h.ListCategories)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(opts.Tokens))

			r.Get("/users/me", h.Me)
			r.Get("/users/me/addresses", h.ListAddresses)
			r.Post("/users/me/addresses", h.AddAddress)
			r.Put("/users/me/addresses/{id}", h.UpdateAddress)
			r.Delete("/users/me/addresses/{id}", h.DeleteAddress)

			r.Get("/cart", h.GetCart)
			r.Post("/cart/add", h.AddToCart)
			r.Put("/cart/update/{lineId}", h.UpdateCartLine)
			r.Delete("/cart/remove/{lineId}", h.RemoveCartLine)
			r.Delete("/cart/clear", h.ClearCart)

			r.Post("/orders/checkout", h.Checkout)
			r.Get("/orders", h.ListOrders)
			r.Get("/orders/{id}", h.GetOrder)

			r.Post("/products/{id}/reviews", h.CreateReview)
			r.Put("/reviews/{id}", h.UpdateReview)
			r.Delete("/reviews/{id}", h.DeleteReview)

			r.Get("/wishlist", h.GetWishlist)
			r.Post("/wishlist/{productId}", h.AddToWishlist)
			r.Delete("/wishlist/{productId}", h.RemoveFromWishlist)
			r.Post("/wishlist/{productId}/move-to-cart", h.MoveWishlistToCart)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin)

				r.Get("/products", h.ListProducts)
				r.Post("/products", h.CreateProduct)
				r.Put("/products/{id}", h.UpdateProduct)
				r.Delete("/products/{id}", h.DeleteProduct)

				r.Get("/orders", h.AdminListOrders)
				r.Put("/orders/{id}/status", h.AdminSetOrderStatus)
				r.Get("/analytics", h.AdminAnalytics)
			})
		})
	})

	return r
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/admin"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/auth"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/events"
	httpapi "github.com/andreasstove999/ecommerce-system/storefront-go/internal/http"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/identity"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/logging"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/metrics"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/payment"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/review"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/sequence"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/wishlist"
)

type eventPublisher interface {
	order.StatusPublisher
	checkout.Publisher
}

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
			logger.Fatal("run migrations", zap.Error(err))
		}
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer pool.Close()

	reporting, err := db.OpenSQL(ctx, cfg.ReportingDSN)
	if err != nil {
		logger.Fatal("connect reporting database", zap.Error(err))
	}
	defer closeSQL(reporting, logger)

	var productCache catalog.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, product cache disabled", zap.Error(err))
		} else {
			productCache = catalog.NewRedisCache(rdb, cfg.ProductCacheTTL)
		}
	}

	var publisher eventPublisher = events.NopPublisher{}
	if cfg.RabbitURL != "" {
		conn, err := amqp.Dial(cfg.RabbitURL)
		if err != nil {
			logger.Fatal("connect to RabbitMQ", zap.Error(err))
		}
		defer func() { _ = conn.Close() }()

		p, err := events.NewPublisher(conn, sequence.NewRepository(pool))
		if err != nil {
			logger.Fatal("create event publisher", zap.Error(err))
		}
		defer func() {
			if err := p.Close(); err != nil {
				logger.Warn("publisher close error", zap.Error(err))
			}
		}()
		publisher = p
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collectorSet := metrics.New(reg)

	tx := db.NewTxRunner(pool)

	catalogRepo := catalog.NewPostgresRepository(pool)
	catalogSvc := catalog.NewService(catalogRepo, productCache, logger)

	identityRepo := identity.NewPostgresRepository(pool)
	identitySvc := identity.NewService(identityRepo)

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	cartSvc := cart.NewService(cart.NewPostgresRepository(), catalogRepo, tx)
	authSvc := auth.NewService(identityRepo, cartSvc, tx, tokens, logger)

	orderRepo := order.NewPostgresRepository(pool)
	orderSvc := order.NewService(orderRepo, tx, publisher, logger)

	checkoutSvc := checkout.NewService(checkout.Deps{
		Tx:         tx,
		Carts:      cartSvc,
		Users:      identityRepo,
		Products:   catalogRepo,
		Orders:     orderRepo,
		Payments:   payment.NewPostgresRepository(),
		Authorizer: payment.NewRandomAuthorizer(cfg.PaymentSuccessRate),
		Publisher:  publisher,
		Cache:      catalogSvc,
		Metrics:    collectorSet,
		Logger:     logger,
		Timeout:    cfg.CheckoutTimeout,
	})

	reviewSvc := review.NewService(review.NewPostgresRepository(pool), tx, catalogSvc, logger)
	wishlistSvc := wishlist.NewService(wishlist.NewPostgresRepository(pool), cartSvc, tx)

	h := httpapi.NewHandler(httpapi.Deps{
		Catalog:   catalogSvc,
		Auth:      authSvc,
		Identity:  identitySvc,
		Carts:     cartSvc,
		Checkout:  checkoutSvc,
		Orders:    orderSvc,
		Reviews:   reviewSvc,
		Wishlist:  wishlistSvc,
		Analytics: admin.NewRepository(reporting),
		DB:        pool,
		Logger:    logger,
	})

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(h, httpapi.RouterOptions{
			Tokens:         tokens,
			Metrics:        collectorSet,
			Logger:         logger,
			AllowOrigins:   cfg.CORSAllowOrigins,
			RequestTimeout: cfg.RequestTimeout,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("storefront listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown error", zap.Error(err))
	}
}

func closeSQL(sqlDB *sql.DB, logger *zap.Logger) {
	if err := sqlDB.Close(); err != nil {
		logger.Warn("reporting db close error", zap.Error(err))
	}
}

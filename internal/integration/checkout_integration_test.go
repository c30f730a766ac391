package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/admin"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/auth"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/identity"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/metrics"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/payment"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/sequence"
)

type storefront struct {
	pool     *pgxpool.Pool
	catalog  *catalog.Service
	identity *identity.Service
	auth     *auth.Service
	carts    *cart.Service
	orders   *order.Service
	checkout *checkout.Service
}

func migratedPool(ctx context.Context, t *testing.T, dsn string) *pgxpool.Pool {
	t.Helper()
	require.NoError(t, db.RunMigrations(dsn, zap.NewNop()))

	pool, err := db.NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func newStorefront(t *testing.T, pool *pgxpool.Pool, publisher checkout.Publisher) *storefront {
	t.Helper()

	logger := zap.NewNop()
	tx := db.NewTxRunner(pool)
	catalogRepo := catalog.NewPostgresRepository(pool)
	identityRepo := identity.NewPostgresRepository(pool)
	orderRepo := order.NewPostgresRepository(pool)

	s := &storefront{pool: pool}
	s.catalog = catalog.NewService(catalogRepo, nil, logger)
	s.identity = identity.NewService(identityRepo)
	s.carts = cart.NewService(cart.NewPostgresRepository(), catalogRepo, tx)
	s.auth = auth.NewService(identityRepo, s.carts, tx, auth.NewTokens("integration", time.Hour), logger)
	s.orders = order.NewService(orderRepo, tx, events.NopPublisher{}, logger)
	s.checkout = checkout.NewService(checkout.Deps{
		Tx:         tx,
		Carts:      s.carts,
		Users:      identityRepo,
		Products:   catalogRepo,
		Orders:     orderRepo,
		Payments:   payment.NewPostgresRepository(),
		Authorizer: payment.NewRandomAuthorizer(1),
		Publisher:  publisher,
		Cache:      s.catalog,
		Metrics:    metrics.New(prometheus.NewRegistry()),
		Logger:     logger,
		Timeout:    10 * time.Second,
	})
	return s
}

func (s *storefront) shopper(ctx context.Context, t *testing.T, email string) (userID, addressID int64) {
	t.Helper()
	session, err := s.auth.Signup(ctx, auth.SignupRequest{Email: email, Password: "secret123", FullName: "Test Shopper"})
	require.NoError(t, err)
	addr, err := s.identity.AddAddress(ctx, session.UserID, identity.Address{
		FullName:     "Test Shopper",
		AddressLine1: "1 Main St",
		City:         "Springfield",
	})
	require.NoError(t, err)
	return session.UserID, addr.ID
}

func (s *storefront) product(ctx context.Context, t *testing.T, name, price string, stock int) int64 {
	t.Helper()
	p := catalog.Product{Name: name, Price: decimal.RequireFromString(price), Stock: stock}
	require.NoError(t, s.catalog.Create(ctx, &p))
	return p.ID
}

func (s *storefront) stock(ctx context.Context, t *testing.T, id int64) int {
	t.Helper()
	var stock int
	require.NoError(t, s.pool.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, id).Scan(&stock))
	return stock
}

func TestCheckoutIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pgC, dsn := startPostgres(ctx, t)
	defer terminateContainer(t, pgC)

	rabbitC, rabbitURL := startRabbitMQ(ctx, t)
	defer terminateContainer(t, rabbitC)

	conn, err := amqp.Dial(rabbitURL)
	require.NoError(t, err)
	defer conn.Close()

	pool := migratedPool(ctx, t, dsn)
	publisher, err := events.NewPublisher(conn, sequence.NewRepository(pool))
	require.NoError(t, err)
	defer publisher.Close()

	deliveries := bindOrderPlaced(t, conn)

	s := newStorefront(t, pool, publisher)
	userID, addressID := s.shopper(ctx, t, "buyer@example.com")
	lamp := s.product(ctx, t, "Lamp", "10.00", 5)
	mug := s.product(ctx, t, "Mug", "2.50", 3)

	_, err = s.carts.AddLine(ctx, userID, lamp, 2)
	require.NoError(t, err)
	_, err = s.carts.AddLine(ctx, userID, mug, 2)
	require.NoError(t, err)

	placed, err := s.checkout.PlaceOrder(ctx, userID, addressID, "CREDIT_CARD")
	require.NoError(t, err)

	assert.Equal(t, "25", placed.TotalAmount.String())
	assert.Equal(t, order.StatusProcessing, placed.Status)
	require.NotNil(t, placed.Payment)
	assert.Equal(t, payment.StatusSuccess, placed.Payment.Status)
	assert.Equal(t, 3, s.stock(ctx, t, lamp))
	assert.Equal(t, 1, s.stock(ctx, t, mug))

	c, err := s.carts.Get(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, c.Lines)
	assert.True(t, c.TotalPrice().IsZero())

	stored, err := s.orders.Get(ctx, userID, placed.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 2)
	require.NotNil(t, stored.Payment)
	assert.Equal(t, payment.MethodCreditCard, stored.Payment.Method)

	select {
	case d := <-deliveries:
		var evt events.OrderPlacedEvent
		require.NoError(t, json.Unmarshal(d.Body, &evt))
		require.NoError(t, evt.Validate(events.EventTypeOrderPlaced, 1))
		assert.Equal(t, placed.ID, evt.Payload.OrderID)
		assert.Equal(t, int64(1), evt.Sequence)
		assert.Len(t, evt.Payload.Items, 2)
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for OrderPlaced event")
	}

	_, err = s.checkout.PlaceOrder(ctx, userID, addressID, "CREDIT_CARD")
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)

	sqlDB, err := db.OpenSQL(ctx, dsn)
	require.NoError(t, err)
	defer sqlDB.Close()

	report, err := admin.NewRepository(sqlDB).Analytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.TotalOrders)
	assert.Equal(t, "25", report.TotalRevenue.String())
	require.NotEmpty(t, report.TopProducts)
}

func TestCheckoutIntegration_LastUnit(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pgC, dsn := startPostgres(ctx, t)
	defer terminateContainer(t, pgC)

	s := newStorefront(t, migratedPool(ctx, t, dsn), events.NopPublisher{})
	last := s.product(ctx, t, "Last One", "9.99", 1)

	const shoppers = 4
	type buyer struct{ userID, addressID int64 }
	buyers := make([]buyer, shoppers)
	for i := range buyers {
		u, a := s.shopper(ctx, t, fmt.Sprintf("shopper%d@example.com", i))
		_, err := s.carts.AddLine(ctx, u, last, 1)
		require.NoError(t, err)
		buyers[i] = buyer{u, a}
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		placed   int
		rejected int
	)
	for _, b := range buyers {
		wg.Add(1)
		go func(b buyer) {
			defer wg.Done()
			_, err := s.checkout.PlaceOrder(ctx, b.userID, b.addressID, "UPI")
			mu.Lock()
			defer mu.Unlock()
			var stockErr *apperr.InsufficientStockError
			switch {
			case err == nil:
				placed++
			case errors.As(err, &stockErr):
				rejected++
			default:
				t.Errorf("unexpected checkout error: %v", err)
			}
		}(b)
	}
	wg.Wait()

	assert.Equal(t, 1, placed)
	assert.Equal(t, shoppers-1, rejected)
	assert.Equal(t, 0, s.stock(ctx, t, last))
}

func bindOrderPlaced(t *testing.T, conn *amqp.Connection) <-chan amqp.Delivery {
	t.Helper()

	ch, err := conn.Channel()
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, events.OrderPlacedRoutingKey, events.EventsExchange, false, nil))

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)
	return deliveries
}

func startPostgres(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "storefront"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://postgres:postgres@%s:%s/storefront?sslmode=disable", host, mappedPort.Port())
	return container, dsn
}

func startRabbitMQ(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3.13-alpine",
		ExposedPorts: []string{"5672/tcp"},
		WaitingFor:   wait.ForListeningPort("5672/tcp").WithStartupTimeout(90 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "5672/tcp")
	require.NoError(t, err)

	return container, fmt.Sprintf("amqp://guest:guest@%s:%s/", host, mappedPort.Port())
}

func terminateContainer(t *testing.T, c testcontainers.Container) {
	t.Helper()
	terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, c.Terminate(terminateCtx))
}

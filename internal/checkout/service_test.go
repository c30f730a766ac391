package checkout_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/metrics"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/payment"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/testutil"
)

type fixedAuthorizer struct {
	status payment.Status
	err    error
	calls  atomic.Int64
}

func (a *fixedAuthorizer) Authorize(ctx context.Context, amount decimal.Decimal, method payment.Method) (payment.Result, error) {
	n := a.calls.Add(1)
	if a.err != nil {
		return payment.Result{}, a.err
	}
	return payment.Result{Status: a.status, TransactionID: fmt.Sprintf("tx-%d", n)}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	orders []order.Order
	err    error
}

func (p *recordingPublisher) PublishOrderPlaced(ctx context.Context, o order.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = append(p.orders, o)
	return p.err
}

type recordingCache struct {
	mu  sync.Mutex
	ids []int64
}

func (c *recordingCache) Invalidate(ctx context.Context, ids ...int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, ids...)
}

type fixture struct {
	db        *testutil.MemDB
	carts     *cart.Service
	checkout  *checkout.Service
	auth      *fixedAuthorizer
	publisher *recordingPublisher
	cache     *recordingCache
	metrics   *metrics.Collectors
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := testutil.NewMemDB()
	carts := cart.NewService(m.Carts(), m.Catalog(), m)
	f := &fixture{
		db:        m,
		carts:     carts,
		auth:      &fixedAuthorizer{status: payment.StatusSuccess},
		publisher: &recordingPublisher{},
		cache:     &recordingCache{},
		metrics:   metrics.New(prometheus.NewRegistry()),
	}
	f.checkout = checkout.NewService(checkout.Deps{
		Tx:         m,
		Carts:      carts,
		Users:      m.Identity(),
		Products:   m.Catalog(),
		Orders:     m.Orders(),
		Payments:   m.Payments(),
		Authorizer: f.auth,
		Publisher:  f.publisher,
		Cache:      f.cache,
		Metrics:    f.metrics,
		Logger:     zap.NewNop(),
	})
	return f
}

func (f *fixture) shopper(t *testing.T, email string) (userID, addressID int64) {
	t.Helper()
	userID = f.db.AddUser(email)
	return userID, f.db.AddAddress(userID)
}

func (f *fixture) add(t *testing.T, userID, productID int64, qty int) {
	t.Helper()
	_, err := f.carts.AddLine(context.Background(), userID, productID, qty)
	require.NoError(t, err)
}

func (f *fixture) outcomes(outcome string) float64 {
	return promtest.ToFloat64(f.metrics.Checkouts.WithLabelValues(outcome))
}

func TestPlaceOrder_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.db.AddProduct("Widget", "10.00", 5)
	b := f.db.AddProduct("Gadget", "5.00", 1)
	user, addr := f.shopper(t, "u@example.com")

	f.add(t, user, a, 2)
	f.add(t, user, b, 1)

	o, err := f.checkout.PlaceOrder(ctx, user, addr, "credit_card")
	require.NoError(t, err)

	assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("25.00")))
	assert.Equal(t, order.StatusProcessing, o.Status)
	require.Len(t, o.Lines, 2)
	assert.Equal(t, "Widget", o.Lines[0].ProductName)
	require.NotNil(t, o.Payment)
	assert.Equal(t, payment.StatusSuccess, o.Payment.Status)
	assert.Equal(t, payment.MethodCreditCard, o.Payment.Method)
	assert.True(t, o.Payment.Amount.Equal(o.TotalAmount))
	assert.NotEmpty(t, o.Payment.TransactionID)

	assert.Equal(t, 3, f.db.Stock(a))
	assert.Equal(t, 0, f.db.Stock(b))

	c, err := f.carts.Get(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, c.Lines)
	assert.True(t, c.TotalPrice().IsZero())
	assert.True(t, f.db.StoredCartTotal(user).IsZero())

	stored, ok := f.db.Order(o.ID)
	require.True(t, ok)
	assert.Len(t, stored.Lines, 2)
	require.NotNil(t, stored.Payment)

	require.Len(t, f.publisher.orders, 1)
	assert.Equal(t, o.ID, f.publisher.orders[0].ID)
	assert.ElementsMatch(t, []int64{a, b}, f.cache.ids)
	assert.Equal(t, 1.0, f.outcomes(metrics.OutcomePlaced))
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	f := newFixture(t)
	user, addr := f.shopper(t, "u@example.com")

	_, err := f.checkout.PlaceOrder(context.Background(), user, addr, "UPI")
	require.ErrorIs(t, err, apperr.ErrEmptyCart)

	assert.Equal(t, 0, f.db.OrderCount())
	assert.Equal(t, 0, f.db.PaymentCount())
	assert.Zero(t, f.auth.calls.Load())
	assert.Equal(t, 1.0, f.outcomes(metrics.OutcomeRejected))
}

func TestPlaceOrder_InsufficientStockOnLaterLineLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.db.AddProduct("Widget", "10.00", 5)
	b := f.db.AddProduct("Gadget", "5.00", 3)
	user, addr := f.shopper(t, "u@example.com")
	f.add(t, user, a, 2)
	f.add(t, user, b, 3)

	// Someone else bought Gadget stock after it went into the cart.
	f.db.SetStock(b, 1)

	_, err := f.checkout.PlaceOrder(ctx, user, addr, "UPI")
	var stockErr *apperr.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "Gadget", stockErr.ProductName)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, 1, stockErr.Available)

	assert.Equal(t, 5, f.db.Stock(a))
	assert.Equal(t, 1, f.db.Stock(b))
	assert.Equal(t, 0, f.db.OrderCount())
	assert.Equal(t, 0, f.db.OrderLineCount())
	assert.Equal(t, 0, f.db.PaymentCount())

	c, err := f.carts.Get(ctx, user)
	require.NoError(t, err)
	assert.Len(t, c.Lines, 2)
	assert.Empty(t, f.publisher.orders)
}

func TestPlaceOrder_ReportsFirstShortLineInCartOrder(t *testing.T) {
	f := newFixture(t)
	// Higher id first in the cart: lock order and report order differ.
	a := f.db.AddProduct("Alpha", "1.00", 5)
	b := f.db.AddProduct("Beta", "1.00", 5)
	user, addr := f.shopper(t, "u@example.com")
	f.add(t, user, b, 2)
	f.add(t, user, a, 2)
	f.db.SetStock(a, 0)
	f.db.SetStock(b, 0)

	_, err := f.checkout.PlaceOrder(context.Background(), user, addr, "UPI")
	var stockErr *apperr.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "Beta", stockErr.ProductName)
}

func TestPlaceOrder_UsesPriceSnapshot(t *testing.T) {
	f := newFixture(t)
	p := f.db.AddProduct("Widget", "10.00", 5)
	user, addr := f.shopper(t, "u@example.com")
	f.add(t, user, p, 2)

	f.db.SetPrice(p, "99.00")

	o, err := f.checkout.PlaceOrder(context.Background(), user, addr, "DEBIT_CARD")
	require.NoError(t, err)
	assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("20.00")))
	assert.True(t, o.Lines[0].UnitPrice.Equal(decimal.RequireFromString("10.00")))
}

func TestPlaceOrder_PaymentDeclineStillPlacesOrder(t *testing.T) {
	f := newFixture(t)
	f.auth.status = payment.StatusFailed
	p := f.db.AddProduct("Widget", "10.00", 5)
	user, addr := f.shopper(t, "u@example.com")
	f.add(t, user, p, 1)

	o, err := f.checkout.PlaceOrder(context.Background(), user, addr, "CASH_ON_DELIVERY")
	require.NoError(t, err)
	require.NotNil(t, o.Payment)
	assert.Equal(t, payment.StatusFailed, o.Payment.Status)
	assert.Equal(t, order.StatusProcessing, o.Status)
	assert.Equal(t, 4, f.db.Stock(p))
	assert.Equal(t, 1, f.db.PaymentCount())
	assert.Equal(t, 1.0, f.outcomes(metrics.OutcomePaymentFailed))
}

func TestPlaceOrder_RollsBackOnInfrastructureFailure(t *testing.T) {
	boom := errors.New("connection reset")
	for _, op := range []string{"order.addLine", "stock.decrement", "payment.insert", "cart.clear"} {
		t.Run(op, func(t *testing.T) {
			f := newFixture(t)
			a := f.db.AddProduct("Widget", "10.00", 5)
			b := f.db.AddProduct("Gadget", "5.00", 5)
			user, addr := f.shopper(t, "u@example.com")
			f.add(t, user, a, 2)
			f.add(t, user, b, 1)
			f.db.FailOn(op, boom)

			_, err := f.checkout.PlaceOrder(context.Background(), user, addr, "UPI")
			require.ErrorIs(t, err, boom)

			assert.Equal(t, 5, f.db.Stock(a))
			assert.Equal(t, 5, f.db.Stock(b))
			assert.Equal(t, 0, f.db.OrderCount())
			assert.Equal(t, 0, f.db.PaymentCount())
			assert.True(t, f.db.StoredCartTotal(user).Equal(decimal.RequireFromString("25.00")))
			assert.Equal(t, 1.0, f.outcomes(metrics.OutcomeError))

			f.db.FailOn(op, nil)
			_, err = f.checkout.PlaceOrder(context.Background(), user, addr, "UPI")
			require.NoError(t, err)
		})
	}
}

func TestPlaceOrder_AuthorizerErrorRollsBack(t *testing.T) {
	f := newFixture(t)
	f.auth.err = errors.New("gateway unreachable")
	p := f.db.AddProduct("Widget", "10.00", 5)
	user, addr := f.shopper(t, "u@example.com")
	f.add(t, user, p, 2)

	_, err := f.checkout.PlaceOrder(context.Background(), user, addr, "UPI")
	require.ErrorContains(t, err, "authorize payment")
	assert.Equal(t, 5, f.db.Stock(p))
	assert.Equal(t, 0, f.db.OrderCount())
}

func TestPlaceOrder_AddressMustBelongToUser(t *testing.T) {
	f := newFixture(t)
	p := f.db.AddProduct("Widget", "10.00", 5)
	user, _ := f.shopper(t, "u@example.com")
	_, otherAddr := f.shopper(t, "other@example.com")
	f.add(t, user, p, 1)

	_, err := f.checkout.PlaceOrder(context.Background(), user, otherAddr, "UPI")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 5, f.db.Stock(p))
}

func TestPlaceOrder_UnknownPaymentMethod(t *testing.T) {
	f := newFixture(t)
	user, addr := f.shopper(t, "u@example.com")

	_, err := f.checkout.PlaceOrder(context.Background(), user, addr, "BITCOIN")
	require.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestPlaceOrder_PublishFailureDoesNotFailCheckout(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")
	p := f.db.AddProduct("Widget", "10.00", 5)
	user, addr := f.shopper(t, "u@example.com")
	f.add(t, user, p, 1)

	_, err := f.checkout.PlaceOrder(context.Background(), user, addr, "UPI")
	require.NoError(t, err)
	assert.Equal(t, 1, f.db.OrderCount())
}

func TestPlaceOrder_CancelledContext(t *testing.T) {
	f := newFixture(t)
	p := f.db.AddProduct("Widget", "10.00", 5)
	user, addr := f.shopper(t, "u@example.com")
	f.add(t, user, p, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.checkout.PlaceOrder(ctx, user, addr, "UPI")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, f.db.Stock(p))
}

func TestPlaceOrder_ConcurrentLastUnit(t *testing.T) {
	f := newFixture(t)
	p := f.db.AddProduct("Last One", "42.00", 1)
	u1, a1 := f.shopper(t, "one@example.com")
	u2, a2 := f.shopper(t, "two@example.com")
	f.add(t, u1, p, 1)
	f.add(t, u2, p, 1)

	var (
		wg       sync.WaitGroup
		ok, fail atomic.Int64
	)
	for _, s := range [][2]int64{{u1, a1}, {u2, a2}} {
		s := s
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.checkout.PlaceOrder(context.Background(), s[0], s[1], "UPI")
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, apperr.ErrInsufficientStock):
				fail.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), ok.Load())
	assert.Equal(t, int64(1), fail.Load())
	assert.Equal(t, 0, f.db.Stock(p))
	assert.Equal(t, 1, f.db.OrderCount())
}

func TestPlaceOrder_StockNeverNegative(t *testing.T) {
	f := newFixture(t)
	const initial = 7
	p := f.db.AddProduct("Widget", "3.00", initial)
	q := f.db.AddProduct("Gizmo", "4.00", initial)

	type shopper struct{ user, addr int64 }
	var shoppers []shopper
	for i := 0; i < 12; i++ {
		u, a := f.shopper(t, fmt.Sprintf("s%d@example.com", i))
		f.add(t, u, p, 1+i%3)
		f.add(t, u, q, 1+i%2)
		shoppers = append(shoppers, shopper{u, a})
	}

	var wg sync.WaitGroup
	var soldP, soldQ atomic.Int64
	for _, s := range shoppers {
		s := s
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := f.checkout.PlaceOrder(context.Background(), s.user, s.addr, "UPI")
			if err != nil {
				assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
				return
			}
			for _, l := range o.Lines {
				if l.ProductID == p {
					soldP.Add(int64(l.Quantity))
				} else {
					soldQ.Add(int64(l.Quantity))
				}
			}
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, f.db.Stock(p), 0)
	assert.GreaterOrEqual(t, f.db.Stock(q), 0)
	assert.Equal(t, int64(initial-f.db.Stock(p)), soldP.Load())
	assert.Equal(t, int64(initial-f.db.Stock(q)), soldQ.Load())
	for _, prod := range f.db.Products() {
		assert.GreaterOrEqual(t, prod.Stock, 0, prod.Name)
	}
}

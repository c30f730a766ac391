// Package testutil holds test doubles shared by several packages' tests.
package testutil

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/identity"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/payment"
	"github.com/shopspring/decimal"
)

// MemDB is an in-memory store with serializable transactions: InTx runs one
// transaction at a time and restores a snapshot when fn fails, which is the
// observable behaviour of the row-locked Postgres paths.
type MemDB struct {
	txMu sync.Mutex

	mu    sync.Mutex
	state memState
	fail  map[string]error
	now   time.Time
}

type memState struct {
	nextID     int64
	products   map[int64]catalog.Product
	users      map[int64]identity.User
	addresses  map[int64]identity.Address
	carts      map[int64]cartRow
	cartLines  map[int64]cartLineRow
	orders     map[int64]order.Order
	orderLines map[int64]order.Line
	payments   map[int64]payment.Payment
}

type cartRow struct {
	ID        int64
	UserID    int64
	Total     decimal.Decimal
	UpdatedAt time.Time
}

type cartLineRow struct {
	ID        int64
	CartID    int64
	ProductID int64
	Quantity  int
	Price     decimal.Decimal
}

func NewMemDB() *MemDB {
	return &MemDB{
		state: memState{
			products:   map[int64]catalog.Product{},
			users:      map[int64]identity.User{},
			addresses:  map[int64]identity.Address{},
			carts:      map[int64]cartRow{},
			cartLines:  map[int64]cartLineRow{},
			orders:     map[int64]order.Order{},
			orderLines: map[int64]order.Line{},
			payments:   map[int64]payment.Payment{},
		},
		fail: map[string]error{},
		now:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s memState) clone() memState {
	s.products = maps.Clone(s.products)
	s.users = maps.Clone(s.users)
	s.addresses = maps.Clone(s.addresses)
	s.carts = maps.Clone(s.carts)
	s.cartLines = maps.Clone(s.cartLines)
	s.orders = maps.Clone(s.orders)
	s.orderLines = maps.Clone(s.orderLines)
	s.payments = maps.Clone(s.payments)
	return s
}

func (m *MemDB) InTx(ctx context.Context, fn func(ctx context.Context, q db.Querier) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	m.mu.Lock()
	snapshot := m.state.clone()
	m.mu.Unlock()

	err := fn(ctx, nil)
	if err == nil && ctx.Err() != nil {
		err = fmt.Errorf("commit tx: %w", ctx.Err())
	}
	if err != nil {
		m.mu.Lock()
		m.state = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// FailOn makes the named operation return err until cleared with a nil err.
// Names: "order.addLine", "payment.insert", "cart.clear", "stock.decrement".
func (m *MemDB) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, op)
		return
	}
	m.fail[op] = err
}

func (m *MemDB) injected(op string) error {
	return m.fail[op]
}

func (m *MemDB) id() int64 {
	m.state.nextID++
	return m.state.nextID
}

func (m *MemDB) tick() time.Time {
	m.now = m.now.Add(time.Second)
	return m.now
}

// Seeding and inspection helpers.

func (m *MemDB) AddProduct(name, price string, stock int) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := catalog.Product{ID: m.id(), Name: name, Price: decimal.RequireFromString(price), Stock: stock, CreatedAt: m.tick()}
	m.state.products[p.ID] = p
	return p.ID
}

func (m *MemDB) SetPrice(productID int64, price string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.state.products[productID]
	p.Price = decimal.RequireFromString(price)
	m.state.products[productID] = p
}

func (m *MemDB) SetStock(productID int64, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.state.products[productID]
	p.Stock = stock
	m.state.products[productID] = p
}

func (m *MemDB) Stock(productID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.products[productID].Stock
}

func (m *MemDB) Products() []catalog.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return mapValues(m.state.products)
}

func (m *MemDB) AddUser(email string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := identity.User{ID: m.id(), Email: email, Role: identity.RoleUser, CreatedAt: m.tick()}
	m.state.users[u.ID] = u
	return u.ID
}

func (m *MemDB) AddAddress(userID int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := identity.Address{ID: m.id(), UserID: userID, FullName: "Test User", AddressLine1: "1 Test Street", City: "Testville"}
	m.state.addresses[a.ID] = a
	return a.ID
}

// StoredCartTotal is the total persisted on the cart row.
func (m *MemDB) StoredCartTotal(userID int64) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.state.carts {
		if c.UserID == userID {
			return c.Total
		}
	}
	return decimal.Zero
}

func (m *MemDB) OrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.orders)
}

func (m *MemDB) OrderLineCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.orderLines)
}

func (m *MemDB) PaymentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.payments)
}

// Order assembles a stored order with its lines and payment.
func (m *MemDB) Order(id int64) (order.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.orders[id]
	if !ok {
		return order.Order{}, false
	}
	for _, lid := range sortedKeys(m.state.orderLines) {
		if l := m.state.orderLines[lid]; l.OrderID == id {
			o.Lines = append(o.Lines, l)
		}
	}
	for _, p := range m.state.payments {
		if p.OrderID == id {
			pay := p
			o.Payment = &pay
		}
	}
	return o, true
}

// Views implementing the per-package store interfaces.

func (m *MemDB) Catalog() *CatalogStore   { return &CatalogStore{m} }
func (m *MemDB) Carts() *CartStore        { return &CartStore{m} }
func (m *MemDB) Identity() *IdentityStore { return &IdentityStore{m} }
func (m *MemDB) Orders() *OrderStore      { return &OrderStore{m} }
func (m *MemDB) Payments() *PaymentStore  { return &PaymentStore{m} }

type CatalogStore struct{ m *MemDB }

func (s *CatalogStore) GetTx(ctx context.Context, q db.Querier, id int64) (catalog.Product, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.state.products[id]
	if !ok {
		return catalog.Product{}, apperr.NotFound("product")
	}
	return p, nil
}

func (s *CatalogStore) LockTx(ctx context.Context, q db.Querier, ids []int64) (map[int64]catalog.Product, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := make(map[int64]catalog.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.m.state.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *CatalogStore) DecrementStockTx(ctx context.Context, q db.Querier, id int64, qty int) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.injected("stock.decrement"); err != nil {
		return err
	}
	p, ok := s.m.state.products[id]
	if !ok || p.Stock < qty {
		return fmt.Errorf("decrement stock for product %d: %w", id, apperr.ErrInsufficientStock)
	}
	p.Stock -= qty
	s.m.state.products[id] = p
	return nil
}

type CartStore struct{ m *MemDB }

func (s *CartStore) LockTx(ctx context.Context, q db.Querier, userID int64) (cart.Cart, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.state.users[userID]; !ok {
		return cart.Cart{}, apperr.NotFound("user")
	}
	for _, c := range s.m.state.carts {
		if c.UserID == userID {
			return cart.Cart{ID: c.ID, UserID: userID, UpdatedAt: c.UpdatedAt}, nil
		}
	}
	c := cartRow{ID: s.m.id(), UserID: userID, Total: decimal.Zero, UpdatedAt: s.m.tick()}
	s.m.state.carts[c.ID] = c
	return cart.Cart{ID: c.ID, UserID: userID, UpdatedAt: c.UpdatedAt}, nil
}

func (s *CartStore) LinesTx(ctx context.Context, q db.Querier, cartID int64) ([]cart.Line, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var lines []cart.Line
	for _, id := range sortedKeys(s.m.state.cartLines) {
		l := s.m.state.cartLines[id]
		if l.CartID != cartID {
			continue
		}
		lines = append(lines, cart.Line{
			ID:          l.ID,
			ProductID:   l.ProductID,
			ProductName: s.m.state.products[l.ProductID].Name,
			Quantity:    l.Quantity,
			Price:       l.Price,
		})
	}
	return lines, nil
}

func (s *CartStore) InsertLineTx(ctx context.Context, q db.Querier, cartID, productID int64, qty int, price decimal.Decimal) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, l := range s.m.state.cartLines {
		if l.CartID == cartID && l.ProductID == productID {
			return errors.New("insert cart line: duplicate (cart_id, product_id)")
		}
	}
	l := cartLineRow{ID: s.m.id(), CartID: cartID, ProductID: productID, Quantity: qty, Price: price}
	s.m.state.cartLines[l.ID] = l
	return nil
}

func (s *CartStore) SetQuantityTx(ctx context.Context, q db.Querier, lineID int64, qty int) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	l, ok := s.m.state.cartLines[lineID]
	if !ok {
		return nil
	}
	l.Quantity = qty
	s.m.state.cartLines[lineID] = l
	return nil
}

func (s *CartStore) DeleteLineTx(ctx context.Context, q db.Querier, lineID int64) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	delete(s.m.state.cartLines, lineID)
	return nil
}

func (s *CartStore) ClearTx(ctx context.Context, q db.Querier, cartID int64) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.injected("cart.clear"); err != nil {
		return err
	}
	for id, l := range s.m.state.cartLines {
		if l.CartID == cartID {
			delete(s.m.state.cartLines, id)
		}
	}
	return nil
}

func (s *CartStore) SaveTotalTx(ctx context.Context, q db.Querier, cartID int64, total decimal.Decimal) (time.Time, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c := s.m.state.carts[cartID]
	c.Total = total
	c.UpdatedAt = s.m.tick()
	s.m.state.carts[cartID] = c
	return c.UpdatedAt, nil
}

type IdentityStore struct{ m *MemDB }

func (s *IdentityStore) GetUserTx(ctx context.Context, q db.Querier, id int64) (identity.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.state.users[id]
	if !ok {
		return identity.User{}, apperr.NotFound("user")
	}
	return u, nil
}

func (s *IdentityStore) GetAddressTx(ctx context.Context, q db.Querier, userID, id int64) (identity.Address, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a, ok := s.m.state.addresses[id]
	if !ok || a.UserID != userID {
		return identity.Address{}, apperr.NotFound("address")
	}
	return a, nil
}

type OrderStore struct{ m *MemDB }

func (s *OrderStore) CreateTx(ctx context.Context, q db.Querier, o *order.Order) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	o.ID = s.m.id()
	o.CreatedAt = s.m.tick()
	o.UpdatedAt = o.CreatedAt
	stored := *o
	stored.Lines = nil
	stored.Payment = nil
	s.m.state.orders[o.ID] = stored
	return nil
}

func (s *OrderStore) AddLineTx(ctx context.Context, q db.Querier, l *order.Line) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.injected("order.addLine"); err != nil {
		return err
	}
	l.ID = s.m.id()
	s.m.state.orderLines[l.ID] = *l
	return nil
}

type PaymentStore struct{ m *MemDB }

func (s *PaymentStore) InsertTx(ctx context.Context, q db.Querier, p *payment.Payment) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.injected("payment.insert"); err != nil {
		return err
	}
	for _, existing := range s.m.state.payments {
		if existing.OrderID == p.OrderID || existing.TransactionID == p.TransactionID {
			return errors.New("insert payment: duplicate key")
		}
	}
	p.ID = s.m.id()
	p.CreatedAt = s.m.tick()
	s.m.state.payments[p.ID] = *p
	return nil
}

// mapValues returns the values of m in unspecified order (Go 1.21 stand-in
// for slices.Collect(maps.Values(m))).
func mapValues[K comparable, V any](m map[K]V) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

// sortedKeys returns the keys of m in ascending order (Go 1.21 stand-in for
// slices.Sorted(maps.Keys(m))).
func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	out := make([]K, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"perfume-storefront/internal/domain"
	"perfume-storefront/internal/events"
	"perfume-storefront/internal/history"
	"perfume-storefront/internal/infrastructure/payment"
)

// fakeStore backs every fake repo. fakeTx restores a snapshot of it when the
// unit of work fails, which is enough to observe rollbacks.
type fakeStore struct {
	mu        sync.Mutex
	products  map[uuid.UUID]domain.Product
	customers map[uuid.UUID]domain.Customer
	addresses map[uuid.UUID]domain.Address
	carts     map[uuid.UUID][]domain.CartItem
	orders    map[uuid.UUID]domain.Order
	events    []domain.PaymentEvent

	replaceErr error
	attachErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products:  make(map[uuid.UUID]domain.Product),
		customers: make(map[uuid.UUID]domain.Customer),
		addresses: make(map[uuid.UUID]domain.Address),
		carts:     make(map[uuid.UUID][]domain.CartItem),
		orders:    make(map[uuid.UUID]domain.Order),
	}
}

type storeSnapshot struct {
	products map[uuid.UUID]domain.Product
	carts    map[uuid.UUID][]domain.CartItem
	orders   map[uuid.UUID]domain.Order
	events   []domain.PaymentEvent
}

func (s *fakeStore) snapshot() storeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := storeSnapshot{
		products: make(map[uuid.UUID]domain.Product, len(s.products)),
		carts:    make(map[uuid.UUID][]domain.CartItem, len(s.carts)),
		orders:   make(map[uuid.UUID]domain.Order, len(s.orders)),
		events:   append([]domain.PaymentEvent(nil), s.events...),
	}
	for k, v := range s.products {
		snap.products[k] = v
	}
	for k, v := range s.carts {
		snap.carts[k] = v
	}
	for k, v := range s.orders {
		snap.orders[k] = v
	}
	return snap
}

func (s *fakeStore) restore(snap storeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = snap.products
	s.carts = snap.carts
	s.orders = snap.orders
	s.events = snap.events
}

func (s *fakeStore) stock(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func (s *fakeStore) setStock(id uuid.UUID, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[id]
	p.Stock = stock
	s.products[id] = p
}

func (s *fakeStore) order(id uuid.UUID) domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id]
}

func (s *fakeStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *fakeStore) cartLines(customerID uuid.UUID) []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CartItem(nil), s.carts[customerID]...)
}

type fakeTx struct {
	store *fakeStore
}

// WithinTx fails on a done context the way BeginTx does.
func (f fakeTx) WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	snap := f.store.snapshot()
	if err := fn(nil); err != nil {
		f.store.restore(snap)
		return err
	}
	return nil
}

type fakeProductRepo struct{ s *fakeStore }

func (r fakeProductRepo) FindById(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r fakeProductRepo) CreateProduct(_ context.Context, _ *sql.Tx, p *domain.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.products[p.ID] = *p
	return nil
}

func (r fakeProductRepo) DecrementStock(_ context.Context, _ *sql.Tx, id uuid.UUID, qty int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	if p.Stock < qty {
		return fmt.Errorf("%w: %s", domain.ErrInsufficientStock, id)
	}
	p.Stock -= qty
	r.s.products[id] = p
	return nil
}

func (r fakeProductRepo) IncrementStock(_ context.Context, _ *sql.Tx, id uuid.UUID, qty int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	p.Stock += qty
	r.s.products[id] = p
	return nil
}

type fakeCustomerRepo struct{ s *fakeStore }

func (r fakeCustomerRepo) FindById(_ context.Context, id uuid.UUID) (*domain.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r fakeCustomerRepo) FindAddress(_ context.Context, id uuid.UUID) (*domain.Address, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.addresses[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r fakeCustomerRepo) CreateCustomer(_ context.Context, _ *sql.Tx, c *domain.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.customers[c.ID] = *c
	return nil
}

func (r fakeCustomerRepo) CreateAddress(_ context.Context, _ *sql.Tx, a *domain.Address) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.addresses[a.ID] = *a
	return nil
}

type fakeCartRepo struct{ s *fakeStore }

func (r fakeCartRepo) ListItems(ctx context.Context, customerID uuid.UUID) ([]domain.CartItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]domain.CartItem(nil), r.s.carts[customerID]...), nil
}

func (r fakeCartRepo) ReplaceItems(_ context.Context, _ *sql.Tx, customerID uuid.UUID, items []domain.CartItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.replaceErr != nil {
		return r.s.replaceErr
	}
	r.s.carts[customerID] = append([]domain.CartItem(nil), items...)
	return nil
}

func (r fakeCartRepo) ClearCart(_ context.Context, _ *sql.Tx, customerID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.carts, customerID)
	return nil
}

type fakeOrderRepo struct{ s *fakeStore }

func (r fakeOrderRepo) FindById(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (r fakeOrderRepo) FindByPaymentId(_ context.Context, paymentID string) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.orders {
		if o.PaymentID != "" && o.PaymentID == paymentID {
			return &o, nil
		}
	}
	return nil, nil
}

func (r fakeOrderRepo) LockByPaymentId(ctx context.Context, _ *sql.Tx, paymentID string) (*domain.Order, error) {
	return r.FindByPaymentId(ctx, paymentID)
}

func (r fakeOrderRepo) LockById(ctx context.Context, _ *sql.Tx, id uuid.UUID) (*domain.Order, error) {
	return r.FindById(ctx, id)
}

func (r fakeOrderRepo) ListByCustomer(_ context.Context, customerID uuid.UUID) ([]domain.Order, error) {
	return r.filter(func(o domain.Order) bool { return o.CustomerID == customerID }), nil
}

func (r fakeOrderRepo) ListAll(_ context.Context) ([]domain.Order, error) {
	return r.filter(func(domain.Order) bool { return true }), nil
}

func (r fakeOrderRepo) filter(keep func(domain.Order) bool) []domain.Order {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Order
	for _, o := range r.s.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r fakeOrderRepo) CreateOrder(_ context.Context, _ *sql.Tx, o *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.orders[o.ID] = *o
	return nil
}

func (r fakeOrderRepo) UpdateOrderStatus(_ context.Context, _ *sql.Tx, o *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur := r.s.orders[o.ID]
	cur.Status = o.Status
	cur.PaymentStatus = o.PaymentStatus
	cur.UpdatedAt = o.UpdatedAt
	r.s.orders[o.ID] = cur
	return nil
}

func (r fakeOrderRepo) AttachPayment(_ context.Context, _ *sql.Tx, o *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.attachErr != nil {
		return r.s.attachErr
	}
	cur := r.s.orders[o.ID]
	cur.PaymentID = o.PaymentID
	cur.CheckoutURL = o.CheckoutURL
	cur.PaymentMethod = o.PaymentMethod
	cur.UpdatedAt = o.UpdatedAt
	r.s.orders[o.ID] = cur
	return nil
}

func (r fakeOrderRepo) FindStuckOrders(_ context.Context, olderThan time.Duration, limit int) ([]domain.Order, error) {
	cutoff := time.Now().Add(-olderThan)
	out := r.filter(func(o domain.Order) bool {
		return o.PaymentStatus == domain.PaymentPending && o.PaymentID != "" && o.UpdatedAt.Before(cutoff)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakePaymentEventRepo struct{ s *fakeStore }

func (r fakePaymentEventRepo) RecordEvent(_ context.Context, _ *sql.Tx, e *domain.PaymentEvent) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.events {
		if existing.PaymentID == e.PaymentID && existing.Type == e.Type {
			return false, nil
		}
	}
	r.s.events = append(r.s.events, *e)
	return true, nil
}

func (r fakePaymentEventRepo) ListByOrder(_ context.Context, orderID uuid.UUID) ([]domain.PaymentEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.PaymentEvent
	for _, e := range r.s.events {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type testEnv struct {
	store     *fakeStore
	histories *history.MemoryStore
	gateway   *payment.MockGateway
	publisher *recordingPublisher
	carts     CartService
	orders    OrderService
	payments  PaymentService
	locks     *CustomerLocks

	customer domain.Customer
	perfume  domain.Product
}

func newTestEnv() *testEnv {
	store := newFakeStore()
	env := &testEnv{
		store:     store,
		histories: history.NewMemoryStore(time.Hour),
		gateway:   payment.NewMockGateway(),
		publisher: &recordingPublisher{},
	}

	env.locks = NewCustomerLocks()
	env.carts = NewCartService(fakeTx{store: store}, fakeProductRepo{s: store}, fakeCartRepo{s: store},
		env.histories, env.locks, domain.DefaultHistoryCapacity, zap.NewNop())
	env.orders = env.orderServiceWith(env.gateway)
	env.payments = env.paymentServiceWith(env.gateway)

	env.customer = domain.Customer{ID: uuid.New(), FirstName: "Ana", LastName: "Gómez", Email: "ana@example.com"}
	store.customers[env.customer.ID] = env.customer
	env.perfume = env.addProduct("Chanel No. 5", "85.00", 10)
	return env
}

// orderServiceWith builds an order service over the env's store with a
// different gateway in front of it.
func (e *testEnv) orderServiceWith(gw payment.PaymentGateway) OrderService {
	return NewOrderService(fakeTx{store: e.store}, fakeProductRepo{s: e.store}, fakeCustomerRepo{s: e.store},
		fakeCartRepo{s: e.store}, fakeOrderRepo{s: e.store}, e.histories, gw, e.publisher, e.locks,
		CheckoutConfig{
			Currency:       "COP",
			StoreName:      "JyJ Essence",
			FrontendURL:    "http://shop.test/",
			PaymentMethod:  "mock",
			GatewayTimeout: time.Second,
		}, zap.NewNop())
}

func (e *testEnv) paymentServiceWith(gw payment.PaymentGateway) PaymentService {
	return NewPaymentService(fakeTx{store: e.store}, fakeProductRepo{s: e.store}, fakeCartRepo{s: e.store},
		fakeOrderRepo{s: e.store}, fakePaymentEventRepo{s: e.store}, e.histories, gw, e.publisher, e.locks,
		time.Second, zap.NewNop())
}

func (e *testEnv) addProduct(name, price string, stock int) domain.Product {
	p := domain.Product{ID: uuid.New(), Name: name, Price: decimal.RequireFromString(price), Stock: stock}
	e.store.mu.Lock()
	e.store.products[p.ID] = p
	e.store.mu.Unlock()
	return p
}

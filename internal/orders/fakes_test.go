package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront/internal/audit"
	"github.com/ariefcatur/go-storefront/internal/notify"
	"github.com/ariefcatur/go-storefront/internal/payment"
	"github.com/ariefcatur/go-storefront/internal/users"
)

// memStore is an in-memory Store whose InTx restores a snapshot on error.
type memStore struct {
	mu       sync.Mutex
	products map[string]ProductSnapshot
	orders   map[string]Order
	carts    map[string]int
	audits   []audit.Entry

	// failDecrementFor makes DecrementStock fail for one product.
	failDecrementFor string
}

func newMemStore() *memStore {
	return &memStore{
		products: map[string]ProductSnapshot{},
		orders:   map[string]Order{},
		carts:    map[string]int{},
	}
}

func (m *memStore) addProduct(name string, price string, stock int) ProductSnapshot {
	p := ProductSnapshot{ID: uuid.NewString(), Name: name, Price: decimal.RequireFromString(price), Stock: stock}
	m.products[p.ID] = p
	return p
}

func (m *memStore) stock(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

func cloneOrder(o Order) Order {
	c := o
	c.Items = append([]LineItem(nil), o.Items...)
	return c
}

func (m *memStore) InTx(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	products := make(map[string]ProductSnapshot, len(m.products))
	for k, v := range m.products {
		products[k] = v
	}
	orders := make(map[string]Order, len(m.orders))
	for k, v := range m.orders {
		orders[k] = cloneOrder(v)
	}
	carts := make(map[string]int, len(m.carts))
	for k, v := range m.carts {
		carts[k] = v
	}
	audits := append([]audit.Entry(nil), m.audits...)

	if err := fn(&memTx{m: m}); err != nil {
		m.products, m.orders, m.carts, m.audits = products, orders, carts, audits
		return err
	}
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (m *memStore) ListByUser(_ context.Context, userID string) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Order{}
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

func (m *memStore) ListAll(_ context.Context) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Order{}
	for _, o := range m.orders {
		out = append(out, cloneOrder(o))
	}
	return out, nil
}

type memTx struct{ m *memStore }

func (t *memTx) LockProducts(_ context.Context, ids []string) (map[string]ProductSnapshot, error) {
	out := map[string]ProductSnapshot{}
	for _, id := range ids {
		if p, ok := t.m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (t *memTx) InsertOrder(_ context.Context, o Order) error {
	t.m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (t *memTx) DecrementStock(_ context.Context, productID string, qty int) error {
	if productID == t.m.failDecrementFor {
		return ErrInsufficientStock
	}
	p := t.m.products[productID]
	if p.Stock < qty {
		return ErrInsufficientStock
	}
	p.Stock -= qty
	t.m.products[productID] = p
	return nil
}

func (t *memTx) IncrementStock(_ context.Context, productID string, qty int) error {
	p := t.m.products[productID]
	p.Stock += qty
	t.m.products[productID] = p
	return nil
}

func (t *memTx) ClearCart(_ context.Context, userID string) error {
	delete(t.m.carts, userID)
	return nil
}

func (t *memTx) LockOrder(_ context.Context, id string) (Order, error) {
	o, ok := t.m.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (t *memTx) UpdateOrder(_ context.Context, o Order) error {
	if _, ok := t.m.orders[o.ID]; !ok {
		return ErrOrderNotFound
	}
	t.m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (t *memTx) AppendAudit(_ context.Context, e audit.Entry) error {
	t.m.audits = append(t.m.audits, e)
	return nil
}

type recordingEvents struct {
	mu        sync.Mutex
	created   []string
	changed   []Status
	cancelled []string
}

func (r *recordingEvents) OrderCreated(_ context.Context, o Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, o.ID)
}

func (r *recordingEvents) StatusChanged(_ context.Context, o Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, o.Status)
}

func (r *recordingEvents) OrderCancelled(_ context.Context, o Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, o.ID)
}

type recordingNotifier struct {
	mu   sync.Mutex
	reqs []notify.Request
}

func (r *recordingNotifier) Dispatch(_ context.Context, req notify.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
}

func (r *recordingNotifier) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.reqs))
	for _, q := range r.reqs {
		out = append(out, q.Type)
	}
	return out
}

type stubGateway struct {
	id  string
	err error
}

func (g *stubGateway) CreateOrder(_ context.Context, receipt string, amount decimal.Decimal) (payment.GatewayOrder, error) {
	if g.err != nil {
		return payment.GatewayOrder{}, g.err
	}
	return payment.GatewayOrder{ID: g.id, Amount: payment.MinorUnits(amount), Currency: "INR", Receipt: receipt}, nil
}

const testSecret = "gateway-secret"

type harness struct {
	svc      *Service
	store    *memStore
	events   *recordingEvents
	notifier *recordingNotifier
	gateway  *stubGateway
	verifier *payment.Verifier
	clock    time.Time
	customer users.Identity
	admin    users.Identity
}

func newHarness(t *testing.T, cache Cache) *harness {
	t.Helper()
	h := &harness{
		store:    newMemStore(),
		events:   &recordingEvents{},
		notifier: &recordingNotifier{},
		gateway:  &stubGateway{id: "order_GW1"},
		verifier: payment.NewVerifier(testSecret),
		clock:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		customer: users.Identity{UserID: uuid.NewString(), Role: users.RoleCustomer},
		admin:    users.Identity{UserID: uuid.NewString(), Role: users.RoleAdmin},
	}
	h.svc = NewService(Deps{
		Store:    h.store,
		Cache:    cache,
		Events:   h.events,
		Notifier: h.notifier,
		Gateway:  h.gateway,
		Verifier: h.verifier,
		Log:      zerolog.Nop(),
	})
	h.svc.now = func() time.Time { return h.clock }
	return h
}

func testAddress() ShippingAddress {
	return ShippingAddress{
		FullName:     "Ana Lima",
		AddressLine1: "1 Main St",
		City:         "Pune",
		State:        "MH",
		PostalCode:   "411001",
		Country:      "IN",
		PhoneNumber:  "+919999999999",
	}
}

func (h *harness) place(t *testing.T, items ...ItemInput) Order {
	t.Helper()
	o, _, err := h.svc.Create(context.Background(), h.customer, CreateInput{
		Items:           items,
		ShippingAddress: testAddress(),
		PaymentMethod:   "razorpay",
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	return o
}

func (h *harness) pay(t *testing.T, o Order) Order {
	t.Helper()
	paid, err := h.svc.Pay(context.Background(), h.customer, o.ID, PayInput{
		GatewayOrderID: "order_GW1",
		PaymentID:      "pay_1",
		Signature:      h.verifier.Sign("order_GW1", "pay_1"),
	})
	if err != nil {
		t.Fatalf("pay order: %v", err)
	}
	return paid
}

var errBoom = errors.New("boom")

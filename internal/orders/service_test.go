package orders

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/audit"
	"github.com/ariefcatur/go-storefront/internal/notify"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/users"
)

func setupTestCache(t *testing.T) (*miniredis.Miniredis, *redisx.OrderCache) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, redisx.NewOrderCache(rdb)
}

func TestCreateScenarioAtThreshold(t *testing.T) {
	h := newHarness(t, nil)
	p := h.store.addProduct("Lamp", "500", 10)
	h.store.carts[h.customer.UserID] = 3

	o := h.place(t, ItemInput{ProductID: p.ID, Quantity: 2})

	assert.Equal(t, StatusCreated, o.Status)
	assert.True(t, o.ItemsPrice.Equal(d("1000")))
	assert.True(t, o.TaxPrice.Equal(d("180")))
	assert.True(t, o.ShippingPrice.Equal(d("100")))
	assert.True(t, o.TotalPrice.Equal(d("1280")))

	assert.Equal(t, 8, h.store.stock(p.ID))
	assert.NotContains(t, h.store.carts, h.customer.UserID)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Lamp", o.Items[0].Name)
	assert.True(t, o.Items[0].Price.Equal(d("500")))

	require.Len(t, h.store.audits, 1)
	assert.Equal(t, audit.ActionOrderCreated, h.store.audits[0].Action)
	assert.Equal(t, []string{o.ID}, h.events.created)
	assert.Equal(t, []string{notify.TypeOrderConfirmation}, h.notifier.types())
}

func TestCreateScenarioFreeShipping(t *testing.T) {
	h := newHarness(t, nil)
	p := h.store.addProduct("Desk", "600", 2)

	o := h.place(t, ItemInput{ProductID: p.ID, Quantity: 2})

	assert.True(t, o.ItemsPrice.Equal(d("1200")))
	assert.True(t, o.TaxPrice.Equal(d("216")))
	assert.True(t, o.ShippingPrice.IsZero())
	assert.True(t, o.TotalPrice.Equal(d("1416")))
	assert.Equal(t, 0, h.store.stock(p.ID))
}

func TestCreateMergesRepeatedProducts(t *testing.T) {
	h := newHarness(t, nil)
	p := h.store.addProduct("Pen", "10", 5)

	o := h.place(t, ItemInput{ProductID: p.ID, Quantity: 2}, ItemInput{ProductID: p.ID, Quantity: 3})

	require.Len(t, o.Items, 1)
	assert.Equal(t, 5, o.Items[0].Quantity)
	assert.Equal(t, 0, h.store.stock(p.ID))
}

func TestCreateIsAllOrNothing(t *testing.T) {
	h := newHarness(t, nil)
	ok := h.store.addProduct("Plenty", "10", 100)
	short := h.store.addProduct("Scarce", "10", 1)
	h.store.carts[h.customer.UserID] = 2
	ctx := context.Background()

	_, _, err := h.svc.Create(ctx, h.customer, CreateInput{
		Items:           []ItemInput{{ProductID: ok.ID, Quantity: 5}, {ProductID: short.ID, Quantity: 2}},
		ShippingAddress: testAddress(),
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	assert.Empty(t, h.store.orders)
	assert.Equal(t, 100, h.store.stock(ok.ID))
	assert.Equal(t, 1, h.store.stock(short.ID))
	assert.Equal(t, 2, h.store.carts[h.customer.UserID])
	assert.Empty(t, h.store.audits)
	assert.Empty(t, h.events.created)
	assert.Empty(t, h.notifier.types())
}

func TestCreateRollsBackWhenConditionalDecrementLoses(t *testing.T) {
	h := newHarness(t, nil)
	a := h.store.addProduct("A", "10", 5)
	b := h.store.addProduct("B", "10", 5)
	h.store.failDecrementFor = b.ID

	_, _, err := h.svc.Create(context.Background(), h.customer, CreateInput{
		Items:           []ItemInput{{ProductID: a.ID, Quantity: 1}, {ProductID: b.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 5, h.store.stock(a.ID))
	assert.Empty(t, h.store.orders)
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t, nil)
	p := h.store.addProduct("A", "10", 5)
	ctx := context.Background()

	_, _, err := h.svc.Create(ctx, h.customer, CreateInput{ShippingAddress: testAddress()})
	assert.ErrorIs(t, err, ErrEmptyOrder)

	_, _, err = h.svc.Create(ctx, h.customer, CreateInput{
		Items: []ItemInput{{ProductID: p.ID, Quantity: 0}}, ShippingAddress: testAddress(),
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, _, err = h.svc.Create(ctx, h.customer, CreateInput{
		Items: []ItemInput{{ProductID: "xyz", Quantity: 1}}, ShippingAddress: testAddress(),
	})
	assert.Equal(t, "invalid product id", apperr.Message(err))

	addr := testAddress()
	addr.City = " "
	_, _, err = h.svc.Create(ctx, h.customer, CreateInput{
		Items: []ItemInput{{ProductID: p.ID, Quantity: 1}}, ShippingAddress: addr,
	})
	assert.Equal(t, "shipping address city is required", apperr.Message(err))

	_, _, err = h.svc.Create(ctx, h.customer, CreateInput{
		Items: []ItemInput{{ProductID: uuid.NewString(), Quantity: 1}}, ShippingAddress: testAddress(),
	})
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Equal(t, 5, h.store.stock(p.ID))
}

func TestCreateIdempotencyKeyReplays(t *testing.T) {
	_, cache := setupTestCache(t)
	h := newHarness(t, cache)
	p := h.store.addProduct("A", "10", 5)
	ctx := context.Background()
	in := CreateInput{
		Items:           []ItemInput{{ProductID: p.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
		IdempotencyKey:  "retry-1",
	}

	first, replayed, err := h.svc.Create(ctx, h.customer, in)
	require.NoError(t, err)
	assert.False(t, replayed)

	second, replayed, err := h.svc.Create(ctx, h.customer, in)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 4, h.store.stock(p.ID))
	assert.Len(t, h.store.orders, 1)

	other := users.Identity{UserID: uuid.NewString(), Role: users.RoleCustomer}
	third, replayed, err := h.svc.Create(ctx, other, in)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestCreateConcurrentDuplicatesPlaceOneOrder(t *testing.T) {
	_, cache := setupTestCache(t)
	h := newHarness(t, cache)
	p := h.store.addProduct("A", "10", 50)
	in := CreateInput{
		Items:           []ItemInput{{ProductID: p.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
		IdempotencyKey:  "double-click",
	}

	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		placed   []string
		inFlight int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, replayed, err := h.svc.Create(context.Background(), h.customer, in)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				assert.ErrorIs(t, err, ErrRequestInFlight)
				inFlight++
			case !replayed:
				placed = append(placed, o.ID)
			}
		}()
	}
	wg.Wait()

	require.Len(t, placed, 1)
	assert.Len(t, h.store.orders, 1)
	assert.Equal(t, 49, h.store.stock(p.ID))
	assert.LessOrEqual(t, inFlight, n-1)
}

func TestCreateInFlightKeyIsRejected(t *testing.T) {
	_, cache := setupTestCache(t)
	h := newHarness(t, cache)
	p := h.store.addProduct("A", "10", 5)
	ctx := context.Background()

	_, reserved, err := cache.ReserveOrder(ctx, h.customer.UserID, "k-1")
	require.NoError(t, err)
	require.True(t, reserved)

	_, _, err = h.svc.Create(ctx, h.customer, CreateInput{
		Items:           []ItemInput{{ProductID: p.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
		IdempotencyKey:  "k-1",
	})
	assert.ErrorIs(t, err, ErrRequestInFlight)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Empty(t, h.store.orders)
}

func TestCreateFailureReleasesIdempotencyKey(t *testing.T) {
	_, cache := setupTestCache(t)
	h := newHarness(t, cache)
	p := h.store.addProduct("A", "10", 5)
	ctx := context.Background()
	in := CreateInput{
		Items:           []ItemInput{{ProductID: p.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
		IdempotencyKey:  "retry-after-failure",
	}

	h.store.failDecrementFor = p.ID
	_, _, err := h.svc.Create(ctx, h.customer, in)
	require.Error(t, err)

	h.store.failDecrementFor = ""
	o, replayed, err := h.svc.Create(ctx, h.customer, in)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, 4, h.store.stock(o.Items[0].ProductID))
}

func TestGetEnforcesOwnership(t *testing.T) {
	h := newHarness(t, nil)
	p := h.store.addProduct("A", "10", 5)
	o := h.place(t, ItemInput{ProductID: p.ID, Quantity: 1})
	ctx := context.Background()

	_, err := h.svc.Get(ctx, h.customer, o.ID)
	require.NoError(t, err)
	_, err = h.svc.Get(ctx, h.admin, o.ID)
	require.NoError(t, err)

	stranger := users.Identity{UserID: uuid.NewString(), Role: users.RoleCustomer}
	_, err = h.svc.Get(ctx, stranger, o.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = h.svc.Get(ctx, h.customer, uuid.NewString())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = h.svc.Get(ctx, h.customer, "1")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestListMineAndAll(t *testing.T) {
	h := newHarness(t, nil)
	p := h.store.addProduct("A", "10", 5)
	h.place(t, ItemInput{ProductID: p.ID, Quantity: 1})
	ctx := context.Background()

	mine, err := h.svc.ListMine(ctx, h.customer)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = h.svc.ListAll(ctx, h.customer)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	all, err := h.svc.ListAll(ctx, h.admin)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStatusUsesCache(t *testing.T) {
	mr, cache := setupTestCache(t)
	h := newHarness(t, cache)
	p := h.store.addProduct("A", "10", 5)
	o := h.place(t, ItemInput{ProductID: p.ID, Quantity: 1})
	ctx := context.Background()

	v, err := h.svc.Status(ctx, h.customer, o.ID)
	require.NoError(t, err)
	assert.True(t, v.Cached)
	assert.Equal(t, StatusCreated, v.Status)

	mr.FlushAll()
	v, err = h.svc.Status(ctx, h.customer, o.ID)
	require.NoError(t, err)
	assert.False(t, v.Cached)

	h.pay(t, o)
	v, err = h.svc.Status(ctx, h.customer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, v.Status)
	assert.True(t, v.Cached)
}

// slowReadStore runs onFirstGet after the first read and before returning it,
// modelling a writer that commits while a status read is in flight.
type slowReadStore struct {
	*memStore
	onFirstGet func()
}

func (s *slowReadStore) Get(ctx context.Context, id string) (Order, error) {
	o, err := s.memStore.Get(ctx, id)
	if f := s.onFirstGet; f != nil {
		s.onFirstGet = nil
		f()
	}
	return o, err
}

func TestStatusReadDoesNotOverwriteNewerWrite(t *testing.T) {
	mr, cache := setupTestCache(t)
	h := newHarness(t, cache)
	p := h.store.addProduct("A", "10", 5)
	o := h.place(t, ItemInput{ProductID: p.ID, Quantity: 1})
	ctx := context.Background()
	mr.FlushAll()

	h.svc.store = &slowReadStore{memStore: h.store, onFirstGet: func() { h.pay(t, o) }}

	v, err := h.svc.Status(ctx, h.admin, o.ID)
	require.NoError(t, err)
	assert.False(t, v.Cached)
	assert.Equal(t, StatusCreated, v.Status, "the read reports what it loaded")

	e, ok, err := cache.GetStatus(ctx, o.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, string(StatusPaid), e.Status)

	v, err = h.svc.Status(ctx, h.admin, o.ID)
	require.NoError(t, err)
	assert.True(t, v.Cached)
	assert.Equal(t, StatusPaid, v.Status)
}

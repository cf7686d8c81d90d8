package seed

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/subscriptions"
	"github.com/ariefcatur/go-storefront/internal/users"
)

type fakeUsers struct{ byEmail map[string]users.User }

func (f *fakeUsers) Register(_ context.Context, in users.RegisterInput) (users.User, error) {
	if _, ok := f.byEmail[in.Email]; ok {
		return users.User{}, users.ErrEmailTaken.WithOp("users.Register")
	}
	u := users.User{ID: in.Email, Email: in.Email, Role: in.Role}
	f.byEmail[in.Email] = u
	return u, nil
}

type fakePlans map[string]subscriptions.Plan

func (f fakePlans) InsertPlan(_ context.Context, p subscriptions.Plan) error {
	if _, ok := f[p.Name]; ok {
		return subscriptions.ErrPlanExists
	}
	f[p.Name] = p
	return nil
}

type fakeProducts struct{ items []catalog.Product }

func (f *fakeProducts) List(context.Context, catalog.Filter) ([]catalog.Product, error) {
	return f.items, nil
}

func (f *fakeProducts) Insert(_ context.Context, p catalog.Product) error {
	f.items = append(f.items, p)
	return nil
}

func TestRepoSeedFileParses(t *testing.T) {
	b, err := os.ReadFile("../../seed.yaml")
	require.NoError(t, err)

	f, err := Parse(b)
	require.NoError(t, err)
	assert.NotEmpty(t, f.Admins)
	assert.Len(t, f.Plans, 3)
	assert.NotEmpty(t, f.Products)
	for _, p := range f.Products {
		_, err := decimal.NewFromString(p.Price)
		assert.NoError(t, err, p.Name)
	}
}

func TestApplyIsRerunnable(t *testing.T) {
	f, err := Parse([]byte(`
admins:
  - {name: Root, email: root@x.io, password: secret1}
plans:
  - {name: basic, price: "100.00", services: [A], durationDays: 30}
products:
  - {name: Tee, price: "499.50", countInStock: 3}
`))
	require.NoError(t, err)

	u := &fakeUsers{byEmail: map[string]users.User{}}
	plans := fakePlans{}
	products := &fakeProducts{}
	s := &Seeder{Users: u, Plans: plans, Products: products, Log: zerolog.Nop()}

	require.NoError(t, s.Apply(context.Background(), f))
	require.NoError(t, s.Apply(context.Background(), f))

	assert.Equal(t, users.RoleAdmin, u.byEmail["root@x.io"].Role)
	require.Contains(t, plans, "basic")
	assert.True(t, decimal.NewFromInt(100).Equal(plans["basic"].Price))
	require.Len(t, products.items, 1)
	assert.Equal(t, "499.5", products.items[0].Price.String())
}

func TestApplyRejectsBadPrice(t *testing.T) {
	s := &Seeder{Users: &fakeUsers{byEmail: map[string]users.User{}}, Plans: fakePlans{}, Products: &fakeProducts{}, Log: zerolog.Nop()}
	err := s.Apply(context.Background(), File{Plans: []Plan{{Name: "x", Price: "cheap"}}})
	assert.Error(t, err)
}

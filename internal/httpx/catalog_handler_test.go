package httpx

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/users"
)

type fakeCatalog struct {
	CatalogService
	stockCalls []int
	updates    []catalog.UpdateInput
	deleted    []string
}

func (f *fakeCatalog) Update(_ context.Context, _ users.Identity, id string, in catalog.UpdateInput) (catalog.Product, error) {
	f.updates = append(f.updates, in)
	p := catalog.Product{ID: id, Name: "unchanged"}
	if in.Name != nil {
		p.Name = *in.Name
	}
	return p, nil
}

func (f *fakeCatalog) Delete(_ context.Context, _ users.Identity, id string) error {
	if id == "in-orders" {
		return catalog.ErrProductOrdered
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeCatalog) UpdateStock(_ context.Context, _ users.Identity, id string, stock int) (catalog.Product, error) {
	f.stockCalls = append(f.stockCalls, stock)
	return catalog.Product{ID: id, Stock: stock}, nil
}

func TestUpdateStockRequiresCount(t *testing.T) {
	log := zerolog.Nop()
	svc := &fakeCatalog{}
	r := NewRouter(log, &Auth{Tokens: tokens, Log: log}, []Registrar{&CatalogHandler{Svc: svc, Log: log}})
	path := "/inventory/" + uuid.NewString()

	for _, body := range []string{`{}`, `{"stock": 7}`, `{"countInStock": null}`} {
		rec := do(t, r, http.MethodPut, path, "admin", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "countInStock must be a number", errorOf(t, rec), body)
	}
	assert.Empty(t, svc.stockCalls)

	rec := do(t, r, http.MethodPut, path, "admin", `{"countInStock": 0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, r, http.MethodPut, path, "admin", `{"countInStock": 12}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{0, 12}, svc.stockCalls)

	rec = do(t, r, http.MethodPut, path, "cust", `{"countInStock": 3}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateAndDeleteProductRoutes(t *testing.T) {
	log := zerolog.Nop()
	svc := &fakeCatalog{}
	r := NewRouter(log, &Auth{Tokens: tokens, Log: log}, []Registrar{&CatalogHandler{Svc: svc, Log: log}})
	id := uuid.NewString()

	rec := do(t, r, http.MethodPut, "/products/"+id, "admin", `{"name":"Desk Lamp"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.updates, 1)
	assert.Nil(t, svc.updates[0].Price)
	assert.Nil(t, svc.updates[0].Stock)
	assert.Contains(t, rec.Body.String(), `"name":"Desk Lamp"`)

	rec = do(t, r, http.MethodPut, "/products/"+id, "cust", `{"name":"x"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = do(t, r, http.MethodDelete, "/products/"+id, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, r, http.MethodDelete, "/products/"+id, "admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{id}, svc.deleted)

	rec = do(t, r, http.MethodDelete, "/products/in-orders", "admin", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "product appears in orders and cannot be deleted", errorOf(t, rec))
}

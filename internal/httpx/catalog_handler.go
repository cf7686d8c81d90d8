package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/users"
)

type CatalogService interface {
	List(ctx context.Context, f catalog.Filter) ([]catalog.Product, error)
	Get(ctx context.Context, id string) (catalog.Product, error)
	Create(ctx context.Context, actor users.Identity, in catalog.CreateInput) (catalog.Product, error)
	UpdateStock(ctx context.Context, actor users.Identity, id string, stock int) (catalog.Product, error)
	Update(ctx context.Context, actor users.Identity, id string, in catalog.UpdateInput) (catalog.Product, error)
	Delete(ctx context.Context, actor users.Identity, id string) error
	AddReview(ctx context.Context, actor users.Identity, productID string, in catalog.ReviewInput) (catalog.Product, error)
}

type CatalogHandler struct {
	Svc CatalogService
	Log zerolog.Logger
}

type stockReq struct {
	Stock *int `json:"countInStock"`
}

func (h *CatalogHandler) Register(r chi.Router, auth *Auth) {
	r.Get("/products", h.list)
	r.Get("/products/{id}", h.get)
	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Post("/products/{id}/reviews", h.review)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(users.RoleAdmin, users.RoleBrand))
			r.Post("/products", h.create)
			r.Put("/products/{id}", h.update)
			r.Delete("/products/{id}", h.delete)
		})
		r.With(auth.RequireRole(users.RoleAdmin)).Put("/inventory/{id}", h.updateStock)
	})
}

func (h *CatalogHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ps, err := h.Svc.List(r.Context(), catalog.Filter{Category: q.Get("category"), Keyword: q.Get("keyword")})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *CatalogHandler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) create(w http.ResponseWriter, r *http.Request) {
	var in catalog.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	p, err := h.Svc.Create(r.Context(), identity(r), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *CatalogHandler) update(w http.ResponseWriter, r *http.Request) {
	var in catalog.UpdateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	p, err := h.Svc.Update(r.Context(), identity(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Delete(r.Context(), identity(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "product removed"})
}

func (h *CatalogHandler) updateStock(w http.ResponseWriter, r *http.Request) {
	var in stockReq
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if in.Stock == nil {
		writeError(w, r, h.Log, apperr.Validation("httpx.updateStock", "countInStock must be a number"))
		return
	}
	p, err := h.Svc.UpdateStock(r.Context(), identity(r), chi.URLParam(r, "id"), *in.Stock)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) review(w http.ResponseWriter, r *http.Request) {
	var in catalog.ReviewInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	p, err := h.Svc.AddReview(r.Context(), identity(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

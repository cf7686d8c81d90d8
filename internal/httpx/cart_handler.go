package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/users"
)

type CartService interface {
	Get(ctx context.Context, actor users.Identity) (cart.Cart, error)
	Add(ctx context.Context, actor users.Identity, productID string, qty int) (cart.Cart, error)
	SetQuantity(ctx context.Context, actor users.Identity, productID string, qty int) (cart.Cart, error)
	Remove(ctx context.Context, actor users.Identity, productID string) (cart.Cart, error)
	Clear(ctx context.Context, actor users.Identity) error
}

type CartHandler struct {
	Svc CartService
	Log zerolog.Logger
}

type cartItemReq struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *CartHandler) Register(r chi.Router, auth *Auth) {
	r.Route("/cart", func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Get("/", h.get)
		r.Post("/", h.add)
		r.Delete("/", h.clear)
		r.Put("/{productID}", h.setQuantity)
		r.Delete("/{productID}", h.remove)
	})
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.Get(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) add(w http.ResponseWriter, r *http.Request) {
	var in cartItemReq
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	c, err := h.Svc.Add(r.Context(), identity(r), in.ProductID, in.Quantity)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) setQuantity(w http.ResponseWriter, r *http.Request) {
	var in cartItemReq
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	c, err := h.Svc.SetQuantity(r.Context(), identity(r), chi.URLParam(r, "productID"), in.Quantity)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.Remove(r.Context(), identity(r), chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Clear(r.Context(), identity(r)); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "cart cleared"})
}

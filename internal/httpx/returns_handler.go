package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-storefront/internal/returns"
	"github.com/ariefcatur/go-storefront/internal/users"
)

type ReturnService interface {
	Create(ctx context.Context, actor users.Identity, in returns.CreateInput) (returns.Request, error)
	UpdateStatus(ctx context.Context, actor users.Identity, id string, st returns.Status) (returns.Request, error)
	ListAll(ctx context.Context, actor users.Identity) ([]returns.Request, error)
	ListMine(ctx context.Context, actor users.Identity) ([]returns.Request, error)
}

type ReturnsHandler struct {
	Svc ReturnService
	Log zerolog.Logger
}

func (h *ReturnsHandler) Register(r chi.Router, auth *Auth) {
	r.Route("/returns", func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Post("/", h.create)
		r.Get("/mine", h.listMine)
		r.With(auth.RequireRole(users.RoleAdmin)).Get("/", h.listAll)
		r.With(auth.RequireRole(users.RoleAdmin)).Put("/{id}", h.updateStatus)
	})
}

func (h *ReturnsHandler) create(w http.ResponseWriter, r *http.Request) {
	var in returns.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	rr, err := h.Svc.Create(r.Context(), identity(r), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, rr)
}

func (h *ReturnsHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var in statusReq
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	rr, err := h.Svc.UpdateStatus(r.Context(), identity(r), chi.URLParam(r, "id"), returns.Status(in.Status))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, rr)
}

func (h *ReturnsHandler) listAll(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.ListAll(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ReturnsHandler) listMine(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.ListMine(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

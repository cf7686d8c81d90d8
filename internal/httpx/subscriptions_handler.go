package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-storefront/internal/subscriptions"
	"github.com/ariefcatur/go-storefront/internal/users"
)

type SubscriptionService interface {
	ListPlans(ctx context.Context) ([]subscriptions.Plan, error)
	AddPlan(ctx context.Context, actor users.Identity, p subscriptions.Plan) (subscriptions.Plan, error)
	Subscribe(ctx context.Context, actor users.Identity, planName string) (subscriptions.Subscription, error)
	ChangePlan(ctx context.Context, actor users.Identity, id, planName string) (subscriptions.Subscription, error)
	Mine(ctx context.Context, actor users.Identity) (*subscriptions.Subscription, error)
	History(ctx context.Context, actor users.Identity) ([]subscriptions.Subscription, error)
	Cancel(ctx context.Context, actor users.Identity, id string) (subscriptions.Subscription, error)
}

type SubscriptionsHandler struct {
	Svc SubscriptionService
	Log zerolog.Logger
}

type subscribeReq struct {
	Plan string `json:"plan"`
}

type changePlanReq struct {
	PlanName string `json:"planName"`
}

func (h *SubscriptionsHandler) Register(r chi.Router, auth *Auth) {
	r.Route("/subscriptions", func(r chi.Router) {
		r.Get("/plans", h.listPlans)
		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.With(auth.RequireRole(users.RoleAdmin)).Post("/plans", h.addPlan)
			r.Post("/plans/subscribe", h.subscribe)
			r.Get("/my", h.mine)
			r.Get("/history", h.history)
			r.Put("/{id}/change", h.changePlan)
			r.Put("/{id}/cancel", h.cancel)
		})
	})
}

func (h *SubscriptionsHandler) listPlans(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.ListPlans(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *SubscriptionsHandler) addPlan(w http.ResponseWriter, r *http.Request) {
	var p subscriptions.Plan
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	out, err := h.Svc.AddPlan(r.Context(), identity(r), p)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *SubscriptionsHandler) subscribe(w http.ResponseWriter, r *http.Request) {
	var in subscribeReq
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	sub, err := h.Svc.Subscribe(r.Context(), identity(r), in.Plan)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *SubscriptionsHandler) mine(w http.ResponseWriter, r *http.Request) {
	sub, err := h.Svc.Mine(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *SubscriptionsHandler) history(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.History(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *SubscriptionsHandler) changePlan(w http.ResponseWriter, r *http.Request) {
	var in changePlanReq
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	sub, err := h.Svc.ChangePlan(r.Context(), identity(r), chi.URLParam(r, "id"), in.PlanName)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *SubscriptionsHandler) cancel(w http.ResponseWriter, r *http.Request) {
	sub, err := h.Svc.Cancel(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/audit"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/payment"
	"github.com/ariefcatur/go-storefront/internal/users"
)

type OrderService interface {
	Create(ctx context.Context, actor users.Identity, in orders.CreateInput) (orders.Order, bool, error)
	Get(ctx context.Context, actor users.Identity, id string) (orders.Order, error)
	ListMine(ctx context.Context, actor users.Identity) ([]orders.Order, error)
	ListAll(ctx context.Context, actor users.Identity) ([]orders.Order, error)
	Status(ctx context.Context, actor users.Identity, id string) (orders.StatusView, error)
	StartPayment(ctx context.Context, actor users.Identity, id string) (payment.GatewayOrder, error)
	Pay(ctx context.Context, actor users.Identity, id string, in orders.PayInput) (orders.Order, error)
	UpdateStatus(ctx context.Context, actor users.Identity, id string, target orders.Status) (orders.Order, error)
	Cancel(ctx context.Context, actor users.Identity, id string) (orders.Order, error)
	AddTracking(ctx context.Context, actor users.Identity, id string, info orders.TrackingInfo) (orders.Order, error)
	GetTracking(ctx context.Context, actor users.Identity, id string) (orders.TrackingInfo, error)
}

type AuditReader interface {
	ListByOrder(ctx context.Context, orderID string) ([]audit.Entry, error)
}

const (
	// HeaderIdempotencyKey lets clients retry order placement safely.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderReplayed is set when the response is an earlier placement.
	HeaderReplayed = "Idempotent-Replayed"
)

type OrdersHandler struct {
	Svc   OrderService
	Audit AuditReader
	// KeyID is the public gateway key handed to checkout clients.
	KeyID string
	Log   zerolog.Logger
}

type statusReq struct {
	Status string `json:"status"`
}

type createPaymentReq struct {
	OrderID string `json:"orderId"`
}

type createPaymentResp struct {
	OrderID        string `json:"orderId"`
	GatewayOrderID string `json:"razorpayOrderId"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	KeyID          string `json:"keyId"`
}

type verifyPaymentReq struct {
	OrderID string `json:"orderId"`
	orders.PayInput
}

func (h *OrdersHandler) Register(r chi.Router, auth *Auth) {
	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate)

		r.Post("/orders", h.create)
		r.Get("/orders/mine", h.listMine)
		r.Get("/orders/{id}", h.get)
		r.Get("/orders/{id}/status", h.status)
		r.Put("/orders/{id}/pay", h.pay)
		r.Delete("/orders/{id}", h.cancel)
		r.Get("/orders/{id}/tracking", h.getTracking)

		r.Post("/payments/create-order", h.createPayment)
		r.Post("/payments/verify", h.verifyPayment)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(users.RoleAdmin))
			r.Get("/orders", h.listAll)
			r.Put("/orders/admin/{id}/status", h.updateStatus)
			r.Put("/orders/{id}/tracking", h.addTracking)
			r.Get("/orders/{id}/audit", h.audit)
		})
	})
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	var in orders.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	in.IdempotencyKey = r.Header.Get(HeaderIdempotencyKey)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, replayed, err := h.Svc.Create(ctx, identity(r), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if replayed {
		w.Header().Set(HeaderReplayed, "true")
		writeJSON(w, http.StatusOK, o)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	o, err := h.Svc.Get(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) listMine(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.ListMine(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) listAll(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.ListAll(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	v, err := h.Svc.Status(ctx, identity(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *OrdersHandler) pay(w http.ResponseWriter, r *http.Request) {
	var in orders.PayInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	o, err := h.Svc.Pay(r.Context(), identity(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) createPayment(w http.ResponseWriter, r *http.Request) {
	var in createPaymentReq
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	g, err := h.Svc.StartPayment(r.Context(), identity(r), in.OrderID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, createPaymentResp{
		OrderID:        in.OrderID,
		GatewayOrderID: g.ID,
		Amount:         g.Amount,
		Currency:       g.Currency,
		KeyID:          h.KeyID,
	})
}

func (h *OrdersHandler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var in verifyPaymentReq
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	o, err := h.Svc.Pay(r.Context(), identity(r), in.OrderID, in.PayInput)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var in statusReq
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	o, err := h.Svc.UpdateStatus(r.Context(), identity(r), chi.URLParam(r, "id"), orders.Status(in.Status))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	o, err := h.Svc.Cancel(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) addTracking(w http.ResponseWriter, r *http.Request) {
	var in orders.TrackingInfo
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	o, err := h.Svc.AddTracking(r.Context(), identity(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) getTracking(w http.ResponseWriter, r *http.Request) {
	t, err := h.Svc.GetTracking(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *OrdersHandler) audit(w http.ResponseWriter, r *http.Request) {
	const op = "httpx.audit"
	id := chi.URLParam(r, "id")
	if err := apperr.CheckID(op, "order id", id); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	out, err := h.Audit.ListByOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, h.Log, apperr.Internal(op, err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

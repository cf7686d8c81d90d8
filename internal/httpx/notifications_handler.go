package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-storefront/internal/notify"
	"github.com/ariefcatur/go-storefront/internal/users"
)

type NotificationService interface {
	List(ctx context.Context, actor users.Identity) ([]notify.Notification, error)
	MarkRead(ctx context.Context, actor users.Identity, id string) error
}

type NotificationsHandler struct {
	Svc NotificationService
	Log zerolog.Logger
}

func (h *NotificationsHandler) Register(r chi.Router, auth *Auth) {
	r.Route("/notifications", func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Get("/", h.list)
		r.Put("/{id}/read", h.markRead)
	})
}

func (h *NotificationsHandler) list(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.List(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *NotificationsHandler) markRead(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.MarkRead(r.Context(), identity(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "notification marked as read"})
}

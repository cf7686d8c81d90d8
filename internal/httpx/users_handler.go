package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-storefront/internal/users"
)

type UserService interface {
	Register(ctx context.Context, in users.RegisterInput) (users.User, error)
	Login(ctx context.Context, email, password string) (string, users.User, error)
	Me(ctx context.Context, id users.Identity) (users.User, error)
	UpdatePreferences(ctx context.Context, id users.Identity, p users.Preferences) (users.User, error)
	UpdateProfile(ctx context.Context, id users.Identity, in users.ProfileInput) (users.User, error)
	ChangePassword(ctx context.Context, id users.Identity, current, next string) error
	Addresses(ctx context.Context, id users.Identity) ([]users.Address, error)
	AddAddress(ctx context.Context, id users.Identity, a users.Address) (users.Address, error)
	UpdateAddress(ctx context.Context, id users.Identity, addrID string, a users.Address) (users.Address, error)
	DeleteAddress(ctx context.Context, id users.Identity, addrID string) error
}

type UsersHandler struct {
	Svc UserService
	Log zerolog.Logger
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type passwordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type sessionResp struct {
	Token string     `json:"token"`
	User  users.User `json:"user"`
}

func (h *UsersHandler) Register(r chi.Router, auth *Auth) {
	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)
	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Get("/users/me", h.me)
		r.Put("/users/me", h.updateProfile)
		r.Put("/users/me/password", h.changePassword)
		r.Put("/users/me/preferences", h.preferences)
		r.Get("/users/me/addresses", h.addresses)
		r.Post("/users/me/addresses", h.addAddress)
		r.Put("/users/me/addresses/{id}", h.updateAddress)
		r.Delete("/users/me/addresses/{id}", h.deleteAddress)
	})
}

func (h *UsersHandler) register(w http.ResponseWriter, r *http.Request) {
	var in users.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	u, err := h.Svc.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *UsersHandler) login(w http.ResponseWriter, r *http.Request) {
	var in loginReq
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	tok, u, err := h.Svc.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResp{Token: tok, User: u})
}

func (h *UsersHandler) me(w http.ResponseWriter, r *http.Request) {
	u, err := h.Svc.Me(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UsersHandler) preferences(w http.ResponseWriter, r *http.Request) {
	var p users.Preferences
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	u, err := h.Svc.UpdatePreferences(r.Context(), identity(r), p)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UsersHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var in users.ProfileInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	u, err := h.Svc.UpdateProfile(r.Context(), identity(r), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UsersHandler) changePassword(w http.ResponseWriter, r *http.Request) {
	var in passwordReq
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if err := h.Svc.ChangePassword(r.Context(), identity(r), in.CurrentPassword, in.NewPassword); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "password updated"})
}

func (h *UsersHandler) addresses(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.Addresses(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *UsersHandler) addAddress(w http.ResponseWriter, r *http.Request) {
	var in users.Address
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	a, err := h.Svc.AddAddress(r.Context(), identity(r), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *UsersHandler) updateAddress(w http.ResponseWriter, r *http.Request) {
	var in users.Address
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	a, err := h.Svc.UpdateAddress(r.Context(), identity(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *UsersHandler) deleteAddress(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.DeleteAddress(r.Context(), identity(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "address deleted"})
}

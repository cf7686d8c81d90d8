package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront/internal/users"
)

type fakeUsers struct {
	UserService
	addrs     map[string][]users.Address
	passwords map[string]string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{addrs: map[string][]users.Address{}, passwords: map[string]string{}}
}

func (f *fakeUsers) UpdateProfile(_ context.Context, id users.Identity, in users.ProfileInput) (users.User, error) {
	return users.User{ID: id.UserID, Name: in.Name, Email: in.Email, Role: id.Role}, nil
}

func (f *fakeUsers) ChangePassword(_ context.Context, id users.Identity, current, next string) error {
	if current != "old-pass" {
		return users.ErrCurrentPassword
	}
	f.passwords[id.UserID] = next
	return nil
}

func (f *fakeUsers) Addresses(_ context.Context, id users.Identity) ([]users.Address, error) {
	return append([]users.Address{}, f.addrs[id.UserID]...), nil
}

func (f *fakeUsers) AddAddress(_ context.Context, id users.Identity, a users.Address) (users.Address, error) {
	a.ID = uuid.NewString()
	f.addrs[id.UserID] = append(f.addrs[id.UserID], a)
	return a, nil
}

func (f *fakeUsers) UpdateAddress(_ context.Context, id users.Identity, addrID string, a users.Address) (users.Address, error) {
	for i, x := range f.addrs[id.UserID] {
		if x.ID == addrID {
			a.ID = addrID
			f.addrs[id.UserID][i] = a
			return a, nil
		}
	}
	return users.Address{}, users.ErrNoAddress
}

func (f *fakeUsers) DeleteAddress(_ context.Context, id users.Identity, addrID string) error {
	for i, x := range f.addrs[id.UserID] {
		if x.ID == addrID {
			f.addrs[id.UserID] = append(f.addrs[id.UserID][:i], f.addrs[id.UserID][i+1:]...)
			return nil
		}
	}
	return users.ErrNoAddress
}

func newUsersRouter(svc UserService) http.Handler {
	log := zerolog.Nop()
	return NewRouter(log, &Auth{Tokens: tokens, Log: log}, []Registrar{&UsersHandler{Svc: svc, Log: log}})
}

func TestProfileAndPasswordRoutes(t *testing.T) {
	svc := newFakeUsers()
	r := newUsersRouter(svc)

	rec := do(t, r, http.MethodPut, "/users/me", "cust", `{"name":"Ana Lima","email":"ana@x.io"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var u users.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	assert.Equal(t, customer.UserID, u.ID)
	assert.Equal(t, "Ana Lima", u.Name)

	rec = do(t, r, http.MethodPut, "/users/me/password", "cust", `{"currentPassword":"guess","newPassword":"secret2"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "current password is incorrect", errorOf(t, rec))

	rec = do(t, r, http.MethodPut, "/users/me/password", "cust", `{"currentPassword":"old-pass","newPassword":"secret2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "secret2", svc.passwords[customer.UserID])

	rec = do(t, r, http.MethodPut, "/users/me", "", `{"name":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAddressRoutesAreScopedToCaller(t *testing.T) {
	svc := newFakeUsers()
	r := newUsersRouter(svc)
	body := `{"fullName":"Ana","addressLine1":"1 Main St","city":"Pune","state":"MH","postalCode":"411001","country":"IN","phoneNumber":"+91"}`

	rec := do(t, r, http.MethodPost, "/users/me/addresses", "cust", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	var a users.Address
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	require.NotEmpty(t, a.ID)
	assert.Equal(t, "Pune", a.City)

	rec = do(t, r, http.MethodGet, "/users/me/addresses", "admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, r, http.MethodPut, "/users/me/addresses/"+a.ID, "admin", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, r, http.MethodPut, "/users/me/addresses/"+a.ID, "cust", `{"fullName":"Ana","city":"Mumbai"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Mumbai", svc.addrs[customer.UserID][0].City)

	rec = do(t, r, http.MethodDelete, "/users/me/addresses/"+a.ID, "cust", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, r, http.MethodGet, "/users/me/addresses", "cust", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

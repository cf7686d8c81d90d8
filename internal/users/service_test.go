package users

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ariefcatur/go-storefront/internal/apperr"
)

type memStore struct {
	mu        sync.Mutex
	users     map[string]User
	addresses map[string][]Address
}

func newMemStore() *memStore {
	return &memStore{users: map[string]User{}, addresses: map[string][]Address{}}
}

func (m *memStore) Insert(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.users {
		if x.Email == u.Email {
			return ErrEmailTaken
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *memStore) ByID(_ context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *memStore) ByEmail(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (m *memStore) UpdatePreferences(_ context.Context, id string, p Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.Preferences = p
	m.users[id] = u
	return nil
}

func (m *memStore) UpdateProfile(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[u.ID]
	if !ok {
		return ErrUserNotFound
	}
	for _, x := range m.users {
		if x.ID != u.ID && x.Email == u.Email {
			return ErrEmailTaken
		}
	}
	cur.Name, cur.Email, cur.Phone = u.Name, u.Email, u.Phone
	m.users[u.ID] = cur
	return nil
}

func (m *memStore) UpdatePassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	m.users[id] = u
	return nil
}

func (m *memStore) ListAddresses(_ context.Context, userID string) ([]Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Address{}, m.addresses[userID]...), nil
}

func (m *memStore) clearDefault(userID string) {
	for i := range m.addresses[userID] {
		m.addresses[userID][i].IsDefault = false
	}
}

func (m *memStore) InsertAddress(_ context.Context, userID string, a Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.IsDefault {
		m.clearDefault(userID)
	}
	m.addresses[userID] = append(m.addresses[userID], a)
	return nil
}

func (m *memStore) UpdateAddress(_ context.Context, userID string, a Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, x := range m.addresses[userID] {
		if x.ID == a.ID {
			if a.IsDefault {
				m.clearDefault(userID)
			}
			m.addresses[userID][i] = a
			return nil
		}
	}
	return ErrNoAddress
}

func (m *memStore) DeleteAddress(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.addresses[userID]
	for i, x := range list {
		if x.ID == id {
			m.addresses[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNoAddress
}

func (m *memStore) ListByRole(_ context.Context, role Role) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []User
	for _, u := range m.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func newTestService(store Store) *Service {
	s := NewService(store, "test-secret", time.Hour)
	s.cost = bcrypt.MinCost
	return s
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemStore())

	u, err := svc.Register(ctx, RegisterInput{Name: "Ana", Email: " Ana@Example.com ", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.Equal(t, RoleCustomer, u.Role)
	assert.Equal(t, DefaultPreferences(), u.Preferences)
	assert.NotEqual(t, "secret1", u.PasswordHash)

	tok, logged, err := svc.Login(ctx, "ANA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, logged.ID)

	id, err := svc.ParseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: u.ID, Role: RoleCustomer}, id)
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(newMemStore())
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Name: "A", Email: "a@x.io"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Register(ctx, RegisterInput{Name: "A", Email: "nope", Password: "secret1"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Register(ctx, RegisterInput{Name: "A", Email: "a@x.io", Password: "123"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	svc := newTestService(newMemStore())
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Name: "A", Email: "a@x.io", Password: "secret1"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Name: "B", Email: "A@x.io", Password: "secret2"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestService(newMemStore())
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterInput{Name: "A", Email: "a@x.io", Password: "secret1"})
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "a@x.io", "wrong!!")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, _, err = svc.Login(ctx, "ghost@x.io", "secret1")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestParseTokenRejectsExpiredAndForeign(t *testing.T) {
	svc := newTestService(newMemStore())
	u := User{ID: "0b5c9c3e-1a7d-4b8e-9f41-6d1c2a9e7b10", Role: RoleAdmin}

	tok, err := svc.IssueToken(u)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.ParseToken(tok)
	assert.ErrorIs(t, err, ErrBadToken)

	other := newTestService(newMemStore())
	other.secret = []byte("another")
	foreign, err := other.IssueToken(u)
	require.NoError(t, err)
	svc.now = time.Now
	_, err = svc.ParseToken(foreign)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestUpdatePreferencesAndAdmins(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Name: "A", Email: "a@x.io", Password: "secret1"})
	require.NoError(t, err)

	got, err := svc.UpdatePreferences(ctx, Identity{UserID: u.ID}, Preferences{Email: false, SMS: true, InApp: true})
	require.NoError(t, err)
	assert.True(t, got.Preferences.SMS)
	assert.False(t, got.Preferences.Email)

	require.NoError(t, store.Insert(ctx, User{ID: "admin-1", Email: "root@x.io", Role: RoleAdmin}))
	admins, err := svc.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "admin-1", admins[0].ID)

	_, err = svc.Get(ctx, "missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestIdentityAccess(t *testing.T) {
	owner := Identity{UserID: "u1", Role: RoleCustomer}
	assert.True(t, owner.CanAccess("u1"))
	assert.False(t, owner.CanAccess("u2"))
	assert.True(t, Identity{UserID: "a", Role: RoleAdmin}.CanAccess("u2"))

	ctx := WithIdentity(context.Background(), owner)
	got, ok := IdentityFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, owner, got)
}

func TestRegisterWithTrustedRole(t *testing.T) {
	svc := newTestService(newMemStore())
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Name: "Root", Email: "root@x.io", Password: "secret1", Role: RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, u.Role)

	u, err = svc.Register(ctx, RegisterInput{Name: "B", Email: "b@x.io", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, RoleCustomer, u.Role)
}

func TestEmptySecretRejectsSelfSignedAdmin(t *testing.T) {
	svc := NewService(newMemStore(), "", time.Hour)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		Role:             RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "attacker", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte(""))
	require.NoError(t, err)

	_, err = svc.ParseToken(forged)
	assert.ErrorIs(t, err, ErrBadToken)

	_, err = svc.IssueToken(User{ID: "u1", Role: RoleCustomer})
	assert.Error(t, err)
}

func TestUpdateProfileKeepsBlankFields(t *testing.T) {
	svc := newTestService(newMemStore())
	ctx := context.Background()
	u, err := svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@x.io", Password: "secret1", Phone: "+911"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Name: "Bo", Email: "bo@x.io", Password: "secret1"})
	require.NoError(t, err)
	me := Identity{UserID: u.ID, Role: RoleCustomer}

	got, err := svc.UpdateProfile(ctx, me, ProfileInput{Name: " Ana Lima ", Email: " ANA.LIMA@x.io"})
	require.NoError(t, err)
	assert.Equal(t, "Ana Lima", got.Name)
	assert.Equal(t, "ana.lima@x.io", got.Email)
	assert.Equal(t, "+911", got.Phone)

	_, err = svc.UpdateProfile(ctx, me, ProfileInput{Email: "bo@x.io"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	_, err = svc.UpdateProfile(ctx, me, ProfileInput{Email: "not-an-email"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = svc.UpdateProfile(ctx, Identity{UserID: "ghost"}, ProfileInput{Name: "x"})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, _, err = svc.Login(ctx, "ana.lima@x.io", "secret1")
	assert.NoError(t, err)
}

func TestChangePassword(t *testing.T) {
	svc := newTestService(newMemStore())
	ctx := context.Background()
	u, err := svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@x.io", Password: "secret1"})
	require.NoError(t, err)
	me := Identity{UserID: u.ID, Role: RoleCustomer}

	err = svc.ChangePassword(ctx, me, "wrong!!", "secret2")
	assert.ErrorIs(t, err, ErrCurrentPassword)
	err = svc.ChangePassword(ctx, me, "secret1", "123")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	err = svc.ChangePassword(ctx, me, "", "secret2")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	require.NoError(t, svc.ChangePassword(ctx, me, "secret1", "secret2"))
	_, _, err = svc.Login(ctx, "ana@x.io", "secret1")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, _, err = svc.Login(ctx, "ana@x.io", "secret2")
	assert.NoError(t, err)
}

func testAddress() Address {
	return Address{
		FullName:     "Ana Lima",
		AddressLine1: "1 Main St",
		City:         "Pune",
		State:        "MH",
		PostalCode:   "411001",
		Country:      "IN",
		PhoneNumber:  "+919999999999",
	}
}

func TestAddressBook(t *testing.T) {
	svc := newTestService(newMemStore())
	ctx := context.Background()
	me := Identity{UserID: "u-1", Role: RoleCustomer}
	other := Identity{UserID: "u-2", Role: RoleCustomer}

	home := testAddress()
	home.IsDefault = true
	home, err := svc.AddAddress(ctx, me, home)
	require.NoError(t, err)
	assert.NotEmpty(t, home.ID)

	work := testAddress()
	work.AddressLine1 = " 9 Office Park "
	work.IsDefault = true
	work, err = svc.AddAddress(ctx, me, work)
	require.NoError(t, err)
	assert.Equal(t, "9 Office Park", work.AddressLine1)

	list, err := svc.Addresses(ctx, me)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.False(t, list[0].IsDefault, "adding a new default unsets the old one")
	assert.True(t, list[1].IsDefault)

	bad := testAddress()
	bad.City = " "
	_, err = svc.AddAddress(ctx, me, bad)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	moved := testAddress()
	moved.City = "Mumbai"
	got, err := svc.UpdateAddress(ctx, me, home.ID, moved)
	require.NoError(t, err)
	assert.Equal(t, "Mumbai", got.City)
	assert.Equal(t, home.ID, got.ID)

	_, err = svc.UpdateAddress(ctx, other, home.ID, moved)
	assert.ErrorIs(t, err, ErrNoAddress)
	_, err = svc.UpdateAddress(ctx, me, "nope", moved)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	err = svc.DeleteAddress(ctx, other, work.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	require.NoError(t, svc.DeleteAddress(ctx, me, work.ID))
	list, err = svc.Addresses(ctx, me)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, home.ID, list[0].ID)

	none, err := svc.Addresses(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, none)
}

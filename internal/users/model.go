package users

import (
	"context"
	"time"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
	RoleBrand    Role = "brand"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAdmin, RoleBrand:
		return true
	}
	return false
}

// Preferences select the outbound channels a user accepts.
type Preferences struct {
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
	InApp bool `json:"inApp"`
}

func DefaultPreferences() Preferences {
	return Preferences{Email: true, SMS: false, InApp: true}
}

type User struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	Phone        string      `json:"phone,omitempty"`
	Role         Role        `json:"role"`
	Preferences  Preferences `json:"notificationPreferences"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// Identity is the authenticated caller of an operation.
type Identity struct {
	UserID string
	Role   Role
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// CanAccess reports whether i may act on a resource owned by ownerID.
func (i Identity) CanAccess(ownerID string) bool {
	return i.IsAdmin() || i.UserID == ownerID
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

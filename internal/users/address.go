package users

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-storefront/internal/apperr"
)

// Address is an entry of a user's address book.
type Address struct {
	ID           string `json:"id"`
	FullName     string `json:"fullName"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country"`
	PhoneNumber  string `json:"phoneNumber"`
	IsDefault    bool   `json:"isDefault"`
}

func (a *Address) normalize() *apperr.Error {
	fields := []struct {
		name string
		val  *string
	}{
		{"fullName", &a.FullName},
		{"addressLine1", &a.AddressLine1},
		{"city", &a.City},
		{"state", &a.State},
		{"postalCode", &a.PostalCode},
		{"country", &a.Country},
		{"phoneNumber", &a.PhoneNumber},
	}
	for _, f := range fields {
		*f.val = strings.TrimSpace(*f.val)
		if *f.val == "" {
			return apperr.Validation("", f.name+" is required")
		}
	}
	a.AddressLine2 = strings.TrimSpace(a.AddressLine2)
	return nil
}

func (s *Service) Addresses(ctx context.Context, id Identity) ([]Address, error) {
	out, err := s.store.ListAddresses(ctx, id.UserID)
	if err != nil {
		return nil, wrap("users.Addresses", err)
	}
	return out, nil
}

// AddAddress stores a new address. Marking it default unsets the old default.
func (s *Service) AddAddress(ctx context.Context, id Identity, a Address) (Address, error) {
	const op = "users.AddAddress"
	if err := a.normalize(); err != nil {
		return Address{}, err.WithOp(op)
	}
	a.ID = uuid.NewString()
	if err := s.store.InsertAddress(ctx, id.UserID, a); err != nil {
		return Address{}, wrap(op, err)
	}
	return a, nil
}

// UpdateAddress replaces the address addrID of the caller.
func (s *Service) UpdateAddress(ctx context.Context, id Identity, addrID string, a Address) (Address, error) {
	const op = "users.UpdateAddress"
	if err := apperr.CheckID(op, "address id", addrID); err != nil {
		return Address{}, err
	}
	if err := a.normalize(); err != nil {
		return Address{}, err.WithOp(op)
	}
	a.ID = addrID
	if err := s.store.UpdateAddress(ctx, id.UserID, a); err != nil {
		return Address{}, wrap(op, err)
	}
	return a, nil
}

func (s *Service) DeleteAddress(ctx context.Context, id Identity, addrID string) error {
	const op = "users.DeleteAddress"
	if err := apperr.CheckID(op, "address id", addrID); err != nil {
		return err
	}
	if err := s.store.DeleteAddress(ctx, id.UserID, addrID); err != nil {
		return wrap(op, err)
	}
	return nil
}

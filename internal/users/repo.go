package users

import (
	"context"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/postgres"
)

// Store persists users.
type Store interface {
	Insert(ctx context.Context, u User) error
	ByID(ctx context.Context, id string) (User, error)
	ByEmail(ctx context.Context, email string) (User, error)
	UpdatePreferences(ctx context.Context, id string, p Preferences) error
	// UpdateProfile writes name, email and phone of u.
	UpdateProfile(ctx context.Context, u User) error
	UpdatePassword(ctx context.Context, id, hash string) error
	ListByRole(ctx context.Context, role Role) ([]User, error)
	AddressStore
}

// AddressStore persists a user's address book. Every call is scoped to the
// owning user, so an address of another user reads as missing.
type AddressStore interface {
	ListAddresses(ctx context.Context, userID string) ([]Address, error)
	InsertAddress(ctx context.Context, userID string, a Address) error
	UpdateAddress(ctx context.Context, userID string, a Address) error
	DeleteAddress(ctx context.Context, userID, id string) error
}

var (
	ErrUserNotFound = apperr.NotFound("", "user not found")
	ErrEmailTaken   = apperr.Conflict("", "email already registered")
	ErrNoAddress    = apperr.NotFound("", "address not found")
)

type Repo struct{ DB postgres.Querier }

const userColumns = `id, name, email, password_hash, phone, role, pref_email, pref_sms, pref_in_app, created_at`

func (r *Repo) Insert(ctx context.Context, u User) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO users(id, name, email, password_hash, phone, role, pref_email, pref_sms, pref_in_app)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Phone, string(u.Role),
		u.Preferences.Email, u.Preferences.SMS, u.Preferences.InApp,
	)
	if postgres.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *Repo) ByID(ctx context.Context, id string) (User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

func (r *Repo) ByEmail(ctx context.Context, email string) (User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
}

func (r *Repo) one(ctx context.Context, sql string, arg any) (User, error) {
	var u User
	var role string
	err := r.DB.QueryRow(ctx, sql, arg).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &role,
		&u.Preferences.Email, &u.Preferences.SMS, &u.Preferences.InApp, &u.CreatedAt,
	)
	if postgres.IsNoRows(err) {
		return User{}, ErrUserNotFound
	}
	u.Role = Role(role)
	return u, err
}

func (r *Repo) UpdatePreferences(ctx context.Context, id string, p Preferences) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE users SET pref_email=$2, pref_sms=$3, pref_in_app=$4, updated_at=now()
		WHERE id=$1`, id, p.Email, p.SMS, p.InApp)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *Repo) ListByRole(ctx context.Context, role Role) ([]User, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+userColumns+` FROM users WHERE role=$1 ORDER BY created_at`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		var rl string
		if err := rows.Scan(
			&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &rl,
			&u.Preferences.Email, &u.Preferences.SMS, &u.Preferences.InApp, &u.CreatedAt,
		); err != nil {
			return nil, err
		}
		u.Role = Role(rl)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateProfile(ctx context.Context, u User) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE users SET name=$2, email=$3, phone=$4, updated_at=now()
		WHERE id=$1`, u.ID, u.Name, u.Email, u.Phone)
	if postgres.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *Repo) UpdatePassword(ctx context.Context, id, hash string) error {
	ct, err := r.DB.Exec(ctx, `UPDATE users SET password_hash=$2, updated_at=now() WHERE id=$1`, id, hash)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

const addressColumns = `id, full_name, address_line1, address_line2, city, state, postal_code, country, phone_number, is_default`

func (r *Repo) ListAddresses(ctx context.Context, userID string) ([]Address, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+addressColumns+` FROM addresses WHERE user_id=$1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Address{}
	for rows.Next() {
		var a Address
		if err := rows.Scan(&a.ID, &a.FullName, &a.AddressLine1, &a.AddressLine2, &a.City, &a.State,
			&a.PostalCode, &a.Country, &a.PhoneNumber, &a.IsDefault); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// InsertAddress clears the previous default in the same statement when a is
// the new default.
func (r *Repo) InsertAddress(ctx context.Context, userID string, a Address) error {
	_, err := r.DB.Exec(ctx, `
		WITH cleared AS (
			UPDATE addresses SET is_default=false WHERE user_id=$2 AND $11 AND is_default
		)
		INSERT INTO addresses(id, user_id, full_name, address_line1, address_line2, city, state,
			postal_code, country, phone_number, is_default)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		a.ID, userID, a.FullName, a.AddressLine1, a.AddressLine2, a.City, a.State,
		a.PostalCode, a.Country, a.PhoneNumber, a.IsDefault)
	return err
}

func (r *Repo) UpdateAddress(ctx context.Context, userID string, a Address) error {
	ct, err := r.DB.Exec(ctx, `
		WITH cleared AS (
			UPDATE addresses SET is_default=false
			WHERE user_id=$2 AND $11 AND is_default AND id<>$1
		)
		UPDATE addresses SET full_name=$3, address_line1=$4, address_line2=$5, city=$6, state=$7,
			postal_code=$8, country=$9, phone_number=$10, is_default=$11, updated_at=now()
		WHERE id=$1 AND user_id=$2`,
		a.ID, userID, a.FullName, a.AddressLine1, a.AddressLine2, a.City, a.State,
		a.PostalCode, a.Country, a.PhoneNumber, a.IsDefault)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNoAddress
	}
	return nil
}

func (r *Repo) DeleteAddress(ctx context.Context, userID, id string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM addresses WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNoAddress
	}
	return nil
}

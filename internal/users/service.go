package users

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ariefcatur/go-storefront/internal/apperr"
)

var (
	ErrBadCredentials  = apperr.Unauthorized("", "invalid email or password")
	ErrBadToken        = apperr.Unauthorized("", "invalid or expired token")
	ErrCurrentPassword = apperr.Unauthorized("", "current password is incorrect")
)

const minPasswordLen = 6

type Service struct {
	store  Store
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

func NewService(store Store, secret string, ttl time.Duration) *Service {
	return &Service{store: store, secret: []byte(secret), ttl: ttl, cost: bcrypt.DefaultCost, now: time.Now}
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	// Role is only set by trusted callers such as the seeder.
	Role Role `json:"-"`
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	const op = "users.Register"
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return User{}, apperr.Validation(op, "name, email and password are required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return User{}, apperr.Validation(op, "invalid email")
	}
	if len(in.Password) < minPasswordLen {
		return User{}, apperr.Validation(op, "password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, apperr.Internal(op, err)
	}
	u := User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Phone:        strings.TrimSpace(in.Phone),
		Role:         RoleCustomer,
		Preferences:  DefaultPreferences(),
		CreatedAt:    s.now().UTC(),
	}
	if in.Role.Valid() {
		u.Role = in.Role
	}
	if err := s.store.Insert(ctx, u); err != nil {
		return User{}, wrap(op, err)
	}
	return u, nil
}

// Login checks the credentials and issues a signed session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, User, error) {
	const op = "users.Login"
	u, err := s.store.ByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrUserNotFound) {
		return "", User{}, ErrBadCredentials.WithOp(op)
	}
	if err != nil {
		return "", User{}, apperr.Internal(op, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", User{}, ErrBadCredentials.WithOp(op)
	}
	tok, err := s.IssueToken(u)
	if err != nil {
		return "", User{}, apperr.Internal(op, err)
	}
	return tok, u, nil
}

func (s *Service) Me(ctx context.Context, id Identity) (User, error) {
	return s.Get(ctx, id.UserID)
}

func (s *Service) Get(ctx context.Context, userID string) (User, error) {
	u, err := s.store.ByID(ctx, userID)
	if err != nil {
		return User{}, wrap("users.Get", err)
	}
	return u, nil
}

func (s *Service) UpdatePreferences(ctx context.Context, id Identity, p Preferences) (User, error) {
	const op = "users.UpdatePreferences"
	if err := s.store.UpdatePreferences(ctx, id.UserID, p); err != nil {
		return User{}, wrap(op, err)
	}
	return s.Get(ctx, id.UserID)
}

// ProfileInput changes the fields that are non-empty.
type ProfileInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (s *Service) UpdateProfile(ctx context.Context, id Identity, in ProfileInput) (User, error) {
	const op = "users.UpdateProfile"
	u, err := s.store.ByID(ctx, id.UserID)
	if err != nil {
		return User{}, wrap(op, err)
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		u.Name = name
	}
	if email := strings.ToLower(strings.TrimSpace(in.Email)); email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return User{}, apperr.Validation(op, "invalid email")
		}
		u.Email = email
	}
	if phone := strings.TrimSpace(in.Phone); phone != "" {
		u.Phone = phone
	}
	if err := s.store.UpdateProfile(ctx, u); err != nil {
		return User{}, wrap(op, err)
	}
	return u, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, id Identity, current, next string) error {
	const op = "users.ChangePassword"
	if current == "" || next == "" {
		return apperr.Validation(op, "current and new passwords are required")
	}
	if len(next) < minPasswordLen {
		return apperr.Validation(op, "password must be at least 6 characters")
	}
	u, err := s.store.ByID(ctx, id.UserID)
	if err != nil {
		return wrap(op, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)); err != nil {
		return ErrCurrentPassword.WithOp(op)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return apperr.Internal(op, err)
	}
	if err := s.store.UpdatePassword(ctx, u.ID, string(hash)); err != nil {
		return wrap(op, err)
	}
	return nil
}

func (s *Service) ListAdmins(ctx context.Context) ([]User, error) {
	admins, err := s.store.ListByRole(ctx, RoleAdmin)
	if err != nil {
		return nil, wrap("users.ListAdmins", err)
	}
	return admins, nil
}

func wrap(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.WithOp(op)
	}
	return apperr.Internal(op, err)
}

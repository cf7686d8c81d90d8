package users

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ariefcatur/go-storefront/internal/apperr"
)

var errNoSecret = errors.New("session secret is not configured")

type sessionClaims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 session token for u.
func (s *Service) IssueToken(u User) (string, error) {
	if len(s.secret) == 0 {
		return "", apperr.Internal("users.IssueToken", errNoSecret)
	}
	now := s.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	return t.SignedString(s.secret)
}

// ParseToken validates a session token and returns the caller identity.
func (s *Service) ParseToken(token string) (Identity, error) {
	var c sessionClaims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if len(s.secret) == 0 {
			return nil, errNoSecret
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || c.Subject == "" || !c.Role.Valid() {
		return Identity{}, ErrBadToken.WithOp("users.ParseToken")
	}
	return Identity{UserID: c.Subject, Role: c.Role}, nil
}

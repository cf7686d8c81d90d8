package httpx

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/users"
)

type TokenParser interface {
	ParseToken(token string) (users.Identity, error)
}

type Auth struct {
	Tokens TokenParser
	Log    zerolog.Logger
}

// Authenticate requires a valid "Authorization: Bearer <token>" header and
// stores the caller identity in the request context.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fields := strings.Fields(r.Header.Get("Authorization"))
		if len(fields) != 2 || !strings.EqualFold(fields[0], "bearer") {
			writeError(w, r, a.Log, apperr.Unauthorized("httpx.Authenticate", "not authorized, no token"))
			return
		}
		id, err := a.Tokens.ParseToken(fields[1])
		if err != nil {
			writeError(w, r, a.Log, err)
			return
		}
		zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("user_id", id.UserID)
		})
		next.ServeHTTP(w, r.WithContext(users.WithIdentity(r.Context(), id)))
	})
}

// RequireRole rejects callers whose role is not listed. It must run after Authenticate.
func (a *Auth) RequireRole(roles ...users.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := users.IdentityFrom(r.Context())
			if !ok {
				writeError(w, r, a.Log, apperr.Unauthorized("httpx.RequireRole", "not authorized"))
				return
			}
			for _, role := range roles {
				if id.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, r, a.Log, apperr.Forbidden("httpx.RequireRole", "not authorized for this resource"))
		})
	}
}

func identity(r *http.Request) users.Identity {
	id, _ := users.IdentityFrom(r.Context())
	return id
}

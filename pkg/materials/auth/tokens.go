package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/tendant/simple-portal/pkg/materials"
)

const roleClaim = "role"

// Tokens issues and verifies HS256 session tokens.
type Tokens struct {
	ja  *jwtauth.JWTAuth
	ttl time.Duration
}

// NewTokens creates a token issuer. ttl defaults to 12 hours.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Tokens{ja: jwtauth.New("HS256", []byte(secret), nil), ttl: ttl}
}

// Issue returns a signed token for username carrying role.
func (t *Tokens) Issue(username string, role materials.Role) (string, error) {
	claims := map[string]interface{}{
		"sub":     username,
		roleClaim: string(role),
	}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiry(claims, time.Now().Add(t.ttl))
	_, token, err := t.ja.Encode(claims)
	return token, err
}

// Verifier finds a token in the Authorization header, the jwt cookie or
// the jwt query parameter and stores the verification result in the
// request context. It never rejects a request on its own.
func (t *Tokens) Verifier() func(http.Handler) http.Handler {
	return jwtauth.Verify(t.ja, jwtauth.TokenFromHeader, jwtauth.TokenFromCookie, jwtauth.TokenFromQuery)
}

// RoleFromContext returns the role of a verified token.
func RoleFromContext(ctx context.Context) (materials.Role, bool) {
	token, claims, err := jwtauth.FromContext(ctx)
	if err != nil || token == nil {
		return "", false
	}
	label, _ := claims[roleClaim].(string)
	role, err := materials.ParseRole(label)
	if err != nil {
		return "", false
	}
	return role, true
}

// Require rejects requests without a verified token (401) and, when roles
// are given, requests whose role is not among them (403). It must run
// after Verifier.
func Require(roles ...materials.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := RoleFromContext(r.Context())
			if !ok {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"error": "authentication required"})
				return
			}
			if len(roles) > 0 && !hasRole(roles, role) {
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, map[string]string{"error": "insufficient permissions"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasRole(roles []materials.Role, role materials.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// TTL is the lifetime of issued tokens.
func (t *Tokens) TTL() time.Duration {
	return t.ttl
}

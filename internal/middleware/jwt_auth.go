package middleware

import (
	"net/http"
	"strings"

	"github.com/cyclopcam/logs"

	"github.com/technosupport/ts-vms-es/internal/auth"
	"github.com/technosupport/ts-vms-es/internal/tokens"
)

type TokenValidator interface {
	ValidateToken(tokenString string) (*tokens.Claims, error)
}

type JWTAuth struct {
	tokens  TokenValidator
	revoked auth.Revocations
	log     logs.Log
}

// NewJWTAuth builds the bearer token check. revoked may be nil, in which
// case revocation is not consulted.
func NewJWTAuth(t TokenValidator, revoked auth.Revocations, log logs.Log) *JWTAuth {
	return &JWTAuth{tokens: t, revoked: revoked, log: log}
}

// Middleware verifies the bearer token and injects AuthContext
func (m *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := m.tokens.ValidateToken(parts[1])
		if err != nil {
			m.log.Debugf("Rejected token from %s: %v", r.RemoteAddr, err)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if m.revoked != nil {
			revoked, err := m.revoked.IsRevoked(r.Context(), claims.ID)
			if err != nil {
				// Fail Closed.
				m.log.Warnf("Revocation check failed for %s: %v", claims.ID, err)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if revoked {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}

		ac := &AuthContext{
			Subject:   claims.Subject,
			TokenID:   claims.ID,
			TokenType: claims.TokenType,
			Scopes:    claims.Scopes,
		}

		ctx := WithAuthContext(r.Context(), ac)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireScope rejects callers whose token lacks scope. It must run after
// Middleware; a request with no AuthContext is treated as unauthenticated.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := GetAuthContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if !ac.Can(scope) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

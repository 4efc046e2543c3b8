package middleware

import (
	"context"
	"slices"

	"github.com/technosupport/ts-vms-es/internal/tokens"
)

type contextKey string

const (
	AuthContextKey contextKey = "auth_context"
)

// AuthContext holds the caller identity taken from a verified token.
type AuthContext struct {
	Subject   string
	TokenID   string // jti
	TokenType tokens.TokenType
	Scopes    []string
}

// Can reports whether the caller was granted scope.
func (a *AuthContext) Can(scope string) bool {
	return a.TokenType == tokens.Service || slices.Contains(a.Scopes, scope)
}

// GetAuthContext retrieves the AuthContext from the context
func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	val, ok := ctx.Value(AuthContextKey).(*AuthContext)
	return val, ok
}

// WithAuthContext attaches the AuthContext to the context
func WithAuthContext(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, AuthContextKey, auth)
}

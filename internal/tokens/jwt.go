package tokens

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

const Issuer = "ts-vms-es"

type TokenType string

const (
	Access  TokenType = "access"
	Service TokenType = "service"
)

// Scopes carried by camera API tokens.
const (
	ScopeRead   = "cameras:read"
	ScopeWrite  = "cameras:write"
	ScopeIngest = "cameras:events"
)

type Claims struct {
	TokenType TokenType `json:"token_type"`
	Scopes    []string  `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// HasScope reports whether c grants scope. Service tokens grant everything.
func (c *Claims) HasScope(scope string) bool {
	return c.TokenType == Service || slices.Contains(c.Scopes, scope)
}

type Manager struct {
	signingKey []byte
	now        func() time.Time
}

func NewManager(signingKey string) *Manager {
	return &Manager{signingKey: []byte(signingKey), now: time.Now}
}

// Issue signs a token for subject valid for ttl.
func (m *Manager) Issue(subject string, tokenType TokenType, ttl time.Duration, scopes ...string) (string, error) {
	now := m.now().UTC()
	claims := Claims{
		TokenType: tokenType,
		Scopes:    scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = "v1"

	return token.SignedString(m.signingKey)
}

func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.signingKey, nil
	}, jwt.WithIssuer(Issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	switch claims.TokenType {
	case Access, Service:
	default:
		return nil, fmt.Errorf("%w: token type %q", ErrInvalidToken, claims.TokenType)
	}
	return claims, nil
}

// Package auth validates the HS256 bearer tokens issued by the identity provider.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config holds signer verification parameters.
type Config struct {
	Secret string
	Issuer string
}

// Claims is the verified caller identity. Subject is the dog owner id.
type Claims struct {
	Subject   string
	Scopes    map[string]struct{}
	ExpiresAt time.Time
}

var (
	// ErrMissingToken is returned when no bearer token was presented.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken wraps signature, issuer, expiry and subject failures.
	ErrInvalidToken = errors.New("invalid bearer token")
)

// scopeList decodes the "scopes" claim, which identity providers emit either as a JSON array or
// as a space-delimited string.
type scopeList []string

func (s *scopeList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return fmt.Errorf("scopes: %w", err)
	}
	*s = strings.Fields(joined)
	return nil
}

type tokenClaims struct {
	Scopes scopeList `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// Parse validates a JWT and returns normalized claims.
func Parse(token string, cfg Config) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	var tc tokenClaims
	_, err := jwt.ParseWithClaims(token, &tc,
		func(*jwt.Token) (any, error) { return []byte(cfg.Secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if strings.TrimSpace(tc.Subject) == "" {
		return nil, fmt.Errorf("%w: subject is required", ErrInvalidToken)
	}

	claims := &Claims{
		Subject:   tc.Subject,
		Scopes:    make(map[string]struct{}, len(tc.Scopes)),
		ExpiresAt: tc.ExpiresAt.Time,
	}
	for _, scope := range tc.Scopes {
		if scope != "" {
			claims.Scopes[scope] = struct{}{}
		}
	}
	return claims, nil
}

// Sign mints a token for subject. Production tokens come from the identity provider; this backs
// enrichctl and tests.
func Sign(cfg Config, subject string, scopes []string, ttl time.Duration) (string, error) {
	now := time.Now()
	tc := tokenClaims{
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString([]byte(cfg.Secret))
}

// HasScope reports whether the claim set includes scope.
func (c *Claims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	_, ok := c.Scopes[scope]
	return ok
}

package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Middleware rejects requests without a valid bearer token, except for the public paths.
type Middleware struct {
	cfg    Config
	public map[string]struct{}
}

// NewMiddleware constructs Middleware. Health and metrics probes stay unauthenticated.
func NewMiddleware(cfg Config, publicPaths ...string) Middleware {
	public := map[string]struct{}{"/healthz": {}, "/metrics": {}}
	for _, p := range publicPaths {
		public[p] = struct{}{}
	}
	return Middleware{cfg: cfg, public: public}
}

// Wrap wraps next with authentication.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := m.public[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := Parse(bearerToken(r.Header.Get("Authorization")), m.cfg)
		if err != nil {
			unauthorized(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// bearerToken strips the case-insensitive "Bearer " prefix. Other schemes yield an empty token.
func bearerToken(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return token
}

func unauthorized(w http.ResponseWriter, err error) {
	detail := "invalid bearer token"
	if errors.Is(err, ErrMissingToken) {
		detail = "missing bearer token"
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="enrichment"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"type": "unauthorized", "detail": detail})
}

package auth

import (
	"net/http"
	"strings"

	"github.com/gildgarde/backend-boutique/internal/common"
)

// Middleware guards routes that require an authenticated user.
type Middleware struct {
	Service *Service
}

// RequireAuth validates the bearer token and stores the user identity on the context.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Service == nil {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "auth service not configured", nil)
			return
		}
		token := bearerToken(r)
		if token == "" {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		id, email, err := m.Service.ParseToken(token)
		if err != nil || id == "" {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithUser(r.Context(), id, email)))
	})
}

// OptionalAuth attaches the user identity when a valid token is presented and
// lets anonymous requests through untouched. Guest checkout relies on this.
func (m Middleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Service != nil {
			if token := bearerToken(r); token != "" {
				if id, email, err := m.Service.ParseToken(token); err == nil && id != "" {
					r = r.WithContext(common.WithUser(r.Context(), id, email))
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

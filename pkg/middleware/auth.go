package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/verenigingen/chapterkit/pkg/contextkeys"
)

// AdminAuth guards the admin API with a static bearer token. The acting
// user for audit attribution is taken from the X-Acting-User header.
type AdminAuth struct {
	token string
}

// NewAdminAuth creates admin authentication middleware. An empty token
// rejects every request, so the admin surface stays closed until it is
// configured.
func NewAdminAuth(token string) *AdminAuth {
	return &AdminAuth{token: token}
}

// Handler wraps an HTTP handler with admin token authentication
func (m *AdminAuth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.unauthorizedResponse(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.unauthorizedResponse(w, "invalid authorization header format")
			return
		}

		if m.token == "" || subtle.ConstantTimeCompare([]byte(parts[1]), []byte(m.token)) != 1 {
			m.unauthorizedResponse(w, "invalid admin token")
			return
		}

		actor := r.Header.Get("X-Acting-User")
		if actor == "" {
			actor = "admin"
		}
		next.ServeHTTP(w, r.WithContext(contextkeys.WithActor(r.Context(), actor)))
	})
}

func (m *AdminAuth) unauthorizedResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

// Actor returns the acting user recorded by AdminAuth, or "admin" when
// the request reached the handler without one.
func Actor(r *http.Request) string {
	if actor := contextkeys.Actor(r.Context()); actor != "" {
		return actor
	}
	return "admin"
}

package middleware

import (
	"net/http"
	"strings"
)

// TokenValidator resolves a bearer token to a user ID.
type TokenValidator interface {
	UserIDFromToken(token string) (int64, error)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// OptionalAuth stores the user ID in the context when the request carries a
// valid bearer token. Missing or invalid tokens leave the request anonymous.
func OptionalAuth(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" {
				if userID, err := v.UserIDFromToken(token); err == nil {
					r = r.WithContext(SetUserID(r.Context(), userID))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth rejects requests without an authenticated user with 401
// auth_failed. It expects OptionalAuth earlier in the chain.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUserID(r.Context()); !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="metricshour"`)
			writeError(w, r, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

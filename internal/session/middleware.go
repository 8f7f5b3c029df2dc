package session

import (
	"errors"
	"net/http"
	"strings"
)

// Middleware is a chi-compatible HTTP middleware that resolves the Bearer token
// into a Session and stores it in the request context.
// Requests without a valid session receive a 401 JSON response.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			writeUnauthorized(w, "unauthorized")
			return
		}
		s, err := m.Resolve(token)
		if err != nil {
			if errors.Is(err, ErrSessionExpired) {
				writeUnauthorized(w, "session expired")
				return
			}
			if !errors.Is(err, ErrInvalidSession) {
				m.log.WithError(err).Error("session lookup failed")
			}
			writeUnauthorized(w, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), s)))
	})
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + message + `"}`))
}

package handlers

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// RequireAdminKey guards staff endpoints. The configured value is a bcrypt
// hash of the shared admin key, so the plaintext never lives in config.
func RequireAdminKey(keyHash string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if keyHash == "" {
			http.Error(w, "admin access not configured", http.StatusServiceUnavailable)
			return
		}
		key := strings.TrimSpace(r.Header.Get("X-Admin-Key"))
		if key == "" {
			http.Error(w, "missing admin key", http.StatusUnauthorized)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)); err != nil {
			http.Error(w, "invalid admin key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

package httpapi

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// authKeyHash is the bcrypt hash of the API key. Empty disables auth.
var authKeyHash string

// SetAuthKeyHash installs the bcrypt hash the Authorization bearer key is
// compared against. An empty hash turns authentication off.
func SetAuthKeyHash(hash string) { authKeyHash = hash }

// authExempt paths stay reachable without a key so probes and scrapers work.
func authExempt(path string) bool {
	switch path {
	case "/healthz", "/readyz", "/metrics":
		return true
	}
	return false
}

// authMiddleware enforces a bearer API key when one is configured.
func authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authKeyHash == "" || authExempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		if header == "" {
			writeJSONError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			writeJSONError(w, http.StatusUnauthorized, "invalid Authorization header format")
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(authKeyHash), []byte(parts[1])); err != nil {
			writeJSONError(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

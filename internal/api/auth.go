package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/FocuswithJustin/termdoc/internal/config"
	"github.com/FocuswithJustin/termdoc/internal/logging"
)

// AuthMiddleware checks for API key authentication when enabled.
// Requests must carry the key in X-API-Key. Public endpoints bypass it.
func AuthMiddleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || isPublicEndpoint(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if reason := checkAPIKey(cfg, r.Header.Get("X-API-Key")); reason != "" {
				logging.SecurityEvent("unauthorized_request", "auth",
					"path", r.URL.Path,
					"reason", reason)
				respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", reason)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// checkAPIKey returns "" when key is accepted, otherwise the reason.
func checkAPIKey(cfg config.AuthConfig, key string) string {
	switch {
	case !cfg.Enabled:
		return ""
	case key == "":
		return "missing API key"
	case !constantTimeCompare(key, cfg.APIKey):
		return "invalid API key"
	}
	return ""
}

// isPublicEndpoint reports whether path is reachable without a key.
func isPublicEndpoint(path string) bool {
	switch path {
	case "/", "/health", "/metrics", "/session": // /session checks the key itself
		return true
	}
	return false
}

func constantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

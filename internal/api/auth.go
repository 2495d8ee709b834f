package api

import (
	"crypto/subtle"
	"net/http"

	"go.uber.org/zap"

	"github.com/audy/taxonomy/core/errors"
)

// authMiddleware checks for API key authentication when enabled.
// Requests must include an X-API-Key header with the correct key.
// The root and health endpoints always bypass authentication.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.Auth.Enabled || isPublicEndpoint(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			s.log.Warn("unauthorized request",
				zap.String("path", r.URL.Path),
				zap.String("reason", "missing API key"))
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing X-API-Key header")
			return
		}

		// Constant-time comparison to prevent timing attacks.
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(s.cfg.Auth.APIKey)) != 1 {
			s.log.Warn("unauthorized request",
				zap.String("path", r.URL.Path),
				zap.String("reason", "invalid API key"))
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isPublicEndpoint(path string) bool {
	return path == "/" || path == "/health"
}

func validateAuthConfig(cfg AuthConfig) error {
	if cfg.Enabled && cfg.APIKey == "" {
		return errors.NewValidation("api_key", "API key is required when authentication is enabled")
	}
	if cfg.Enabled && len(cfg.APIKey) < 16 {
		return errors.NewValidation("api_key", "API key must be at least 16 characters")
	}
	return nil
}

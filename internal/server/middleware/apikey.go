package middleware

import (
	"net/http"
	"strings"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/ecoguard/ecoguard/internal/core/security"
	"github.com/ecoguard/ecoguard/internal/observability"
)

// APIKeyHeader carries the caller's API key.
const APIKeyHeader = "X-API-Key"

// RequireAPIKey rejects requests whose X-API-Key is missing or unknown with 401.
// A bearer Authorization header is accepted as a fallback.
func RequireAPIKey(keys *security.KeyRing) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := apiKeyFromRequest(r)
			if key == "" {
				rejectAPIKey(w, r, "API key required")
				return
			}
			if !keys.Valid(key) {
				rejectAPIKey(w, r, "Invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func apiKeyFromRequest(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
		return key
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) > len("Bearer ") && strings.EqualFold(auth[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(auth[len("Bearer "):])
	}
	return ""
}

func rejectAPIKey(w http.ResponseWriter, r *http.Request, message string) {
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("API key rejected",
			zap.String("path", r.URL.Path),
			zap.String("reason", message),
			zap.String("request_id", GetRequestID(r.Context())),
		)
	}
	respondError(w, r, errors.NewErrorEnvelope("UNAUTHORIZED", message), http.StatusUnauthorized)
}

package middleware

import (
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/ecoguard/ecoguard/internal/core/security"
	"github.com/ecoguard/ecoguard/internal/metrics"
	"github.com/ecoguard/ecoguard/internal/observability"
)

// SecureAPIRoute screens requests through gate. Bots and suspicious paths get
// 403, preflights are answered with 200 and the CORS header set, and
// everything else continues with CORS origin headers attached.
func SecureAPIRoute(gate *security.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := gate.Screen(r)
			if decision.Continue {
				copyHeaders(w.Header(), gate.CORSHeaders(r.Header.Get("Origin")))
				next.ServeHTTP(w, r)
				return
			}

			copyHeaders(w.Header(), decision.Headers)
			if decision.Reason == security.ReasonPreflight {
				w.WriteHeader(decision.Status)
				return
			}

			metrics.RecordSecurityRejection(decision.Reason)
			if observability.ServerLogger != nil {
				observability.ServerLogger.Warn("Request rejected by security gate",
					zap.String("reason", decision.Reason),
					zap.String("path", r.URL.Path),
					zap.String("user_agent", r.UserAgent()),
					zap.String("remote_addr", r.RemoteAddr),
					zap.String("request_id", GetRequestID(r.Context())),
				)
			}

			envelope := errors.NewErrorEnvelope(decision.Code, decision.Message).
				WithDetails(map[string]interface{}{"reason": decision.Reason})
			respondError(w, r, envelope, decision.Status)
		})
	}
}

// SecurityHeaders stamps the gate's static security headers on every response.
func SecurityHeaders(gate *security.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gate.ApplySecurityHeaders(w.Header())
			next.ServeHTTP(w, r)
		})
	}
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		dst[key] = append([]string(nil), values...)
	}
}

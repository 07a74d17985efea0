package middleware

import (
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"golang.org/x/time/rate"
)

// Throttle sheds load with 503 once the shared token bucket runs dry. It caps
// total throughput and is independent of the per-caller fixed windows. A
// non-positive rps disables it.
func Throttle(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set(HeaderRetryAfter, "1")
				envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "Service is busy, please retry shortly.")
				respondError(w, r, envelope, http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/ecoguard/ecoguard/internal/core/ratelimit"
	"github.com/ecoguard/ecoguard/internal/metrics"
	"github.com/ecoguard/ecoguard/internal/observability"
)

// Rate limit response headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// RateLimitedMessage is returned to callers that exhausted their quota.
const RateLimitedMessage = "Too many requests, please try again later."

// RateLimit enforces the limiter's route policy for every request.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !CheckRateLimit(w, r, limiter, limiter.Policies.For(r.URL.Path)) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CheckRateLimit records one hit for the caller on this path under limit. It
// writes the X-RateLimit headers and, when the quota is spent, a 429 response,
// returning false so the caller stops. Store failures let the request through.
func CheckRateLimit(w http.ResponseWriter, r *http.Request, limiter *ratelimit.Limiter, limit ratelimit.Limit) bool {
	route := EndpointLabel(r)
	key := ratelimit.Key(ClientIP(r), r.URL.Path)

	decision, err := limiter.Check(r.Context(), key, limit)
	if err != nil {
		metrics.RecordRateLimitStoreError(route)
		if observability.ServerLogger != nil {
			observability.ServerLogger.Error("Rate limit check failed, allowing request",
				zap.String("key", key),
				zap.String("request_id", GetRequestID(r.Context())),
				zap.Error(err),
			)
		}
		return true
	}

	metrics.RecordRateLimitDecision(route, decision.Allowed)

	h := w.Header()
	h.Set(HeaderRateLimitLimit, strconv.Itoa(decision.Limit))
	h.Set(HeaderRateLimitRemaining, strconv.Itoa(decision.Remaining))
	h.Set(HeaderRateLimitReset, strconv.FormatInt(decision.ResetAt.Unix(), 10))

	if decision.Allowed {
		return true
	}

	retryAfter := int64(decision.RetryAfter(limiter.Now()).Seconds())
	h.Set(HeaderRetryAfter, strconv.FormatInt(retryAfter, 10))

	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Rate limit exceeded",
			zap.String("key", key),
			zap.Int("limit", decision.Limit),
			zap.Int64("retry_after", retryAfter),
			zap.String("request_id", GetRequestID(r.Context())),
		)
	}

	envelope := errors.NewErrorEnvelope("RATE_LIMITED", RateLimitedMessage).
		WithDetails(map[string]interface{}{
			"limit":       decision.Limit,
			"retry_after": retryAfter,
		})
	respondError(w, r, envelope, http.StatusTooManyRequests)
	return false
}

// ClientIP returns the caller address without its port. Behind chi's RealIP
// middleware this is the forwarded client address.
func ClientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	if addr == "" {
		return "unknown"
	}
	return addr
}

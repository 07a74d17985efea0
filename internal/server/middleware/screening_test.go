package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoguard/ecoguard/internal/core/ratelimit"
	"github.com/ecoguard/ecoguard/internal/core/security"
	"github.com/ecoguard/ecoguard/internal/core/validate"
)

const browserUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func newAPIRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("User-Agent", browserUA)
	req.RemoteAddr = "203.0.113.7:51234"
	return req
}

type failingStore struct{}

func (failingStore) Hit(context.Context, string, ratelimit.Limit, time.Time) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("connection refused")
}

func (failingStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

func newTestLimiter(t *testing.T, store ratelimit.Store, now time.Time) *ratelimit.Limiter {
	t.Helper()
	limiter, err := ratelimit.NewLimiter(store, ratelimit.Policies{
		Default: ratelimit.Limit{Max: 3, Window: time.Minute},
		Routes: map[string]ratelimit.Limit{
			"/api/alerts": {Max: 1, Window: time.Minute},
		},
	})
	require.NoError(t, err)
	limiter.Clock = func() time.Time { return now }
	return limiter
}

func TestSecureAPIRoute(t *testing.T) {
	collector := setupTelemetry(t)
	gate := security.NewGate(security.Config{AllowedOrigins: []string{"https://app.example"}})
	handler := SecureAPIRoute(gate)(okHandler)

	t.Run("BotUserAgent", func(t *testing.T) {
		req := newAPIRequest(http.MethodGet, "/api/sensors/readings")
		req.Header.Set("User-Agent", "curl/7.68.0")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusForbidden, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, "FORBIDDEN", body.Code)
		assert.Equal(t, security.ReasonBotUserAgent, body.Details["reason"])
	})

	t.Run("SuspiciousPath", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newAPIRequest(http.MethodGet, "/api/.git/config"))

		require.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, security.ReasonSuspiciousPath, decodeError(t, rec).Details["reason"])
	})

	t.Run("Preflight", func(t *testing.T) {
		req := newAPIRequest(http.MethodOptions, "/api/alerts")
		req.Header.Set("Origin", "https://app.example")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.String())
		assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, security.AllowedMethods, rec.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("PassThroughAddsCORS", func(t *testing.T) {
		req := newAPIRequest(http.MethodGet, "/api/sensors/readings")
		req.Header.Set("Origin", "https://app.example")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
		assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("UnknownOriginGetsNoCORS", func(t *testing.T) {
		req := newAPIRequest(http.MethodGet, "/api/sensors/readings")
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	assert.Greater(t, collector.CountMetricsByName("security_rejections_total"), 0)
}

func TestSecurityHeaders(t *testing.T) {
	gate := security.NewGate(security.Config{})
	rec := httptest.NewRecorder()

	SecurityHeaders(gate)(okHandler).ServeHTTP(rec, newAPIRequest(http.MethodGet, "/health"))

	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
	assert.Contains(t, rec.Header().Get("Permissions-Policy"), "camera=()")
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestRateLimitMiddleware(t *testing.T) {
	collector := setupTelemetry(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := newTestLimiter(t, ratelimit.NewMemoryStore(), now)
	handler := RateLimit(limiter)(okHandler)

	for i := 1; i <= 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newAPIRequest(http.MethodGet, "/api/sensors/readings"))
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
		assert.Equal(t, "3", rec.Header().Get(HeaderRateLimitLimit))
		assert.Equal(t, strconv.Itoa(3-i), rec.Header().Get(HeaderRateLimitRemaining))
		assert.Equal(t, strconv.FormatInt(now.Add(time.Minute).Unix(), 10), rec.Header().Get(HeaderRateLimitReset))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newAPIRequest(http.MethodGet, "/api/sensors/readings"))

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get(HeaderRetryAfter))
	assert.Equal(t, "0", rec.Header().Get(HeaderRateLimitRemaining))
	body := decodeError(t, rec)
	assert.Equal(t, "RATE_LIMITED", body.Code)
	assert.Equal(t, RateLimitedMessage, body.Message)

	// Another caller keeps its own window.
	other := newAPIRequest(http.MethodGet, "/api/sensors/readings")
	other.RemoteAddr = "198.51.100.2:4000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Greater(t, collector.CountMetricsByName("ratelimit_decisions_total"), 0)
}

func TestRateLimitRoutePolicy(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := newTestLimiter(t, ratelimit.NewMemoryStore(), now)
	handler := RateLimit(limiter)(okHandler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newAPIRequest(http.MethodPost, "/api/alerts"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get(HeaderRateLimitLimit))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, newAPIRequest(http.MethodPost, "/api/alerts"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimitRetryAfterBounds(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	now := start
	limiter, err := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), ratelimit.Policies{})
	require.NoError(t, err)
	limiter.Clock = func() time.Time { return now }
	handler := RateLimit(limiter)(okHandler)

	for i := 0; i < ratelimit.DefaultLimit.Max; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newAPIRequest(http.MethodGet, "/api/sensors/readings"))
		require.Equal(t, http.StatusOK, rec.Code)
		now = now.Add(time.Second)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newAPIRequest(http.MethodGet, "/api/sensors/readings"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	retryAfter, err := strconv.Atoi(rec.Header().Get(HeaderRetryAfter))
	require.NoError(t, err)
	assert.Greater(t, retryAfter, 0)
	assert.LessOrEqual(t, retryAfter, 900)
}

func TestRateLimitFailsOpen(t *testing.T) {
	collector := setupTelemetry(t)
	limiter := newTestLimiter(t, failingStore{}, time.Now())

	rec := httptest.NewRecorder()
	RateLimit(limiter)(okHandler).ServeHTTP(rec, newAPIRequest(http.MethodGet, "/api/sensors/readings"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(HeaderRateLimitLimit))
	assert.Greater(t, collector.CountMetricsByName("ratelimit_store_errors_total"), 0)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", ClientIP(req))

	req.RemoteAddr = "192.0.2.9"
	assert.Equal(t, "192.0.2.9", ClientIP(req))

	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", ClientIP(req))

	req.RemoteAddr = ""
	assert.Equal(t, "unknown", ClientIP(req))
}

func TestRequireAPIKey(t *testing.T) {
	handler := RequireAPIKey(security.NewKeyRing("secret-1", "secret-2"))(okHandler)

	tests := []struct {
		name    string
		header  string
		value   string
		status  int
		message string
	}{
		{name: "Missing", status: http.StatusUnauthorized, message: "API key required"},
		{name: "Wrong", header: APIKeyHeader, value: "nope", status: http.StatusUnauthorized, message: "Invalid API key"},
		{name: "Valid", header: APIKeyHeader, value: "secret-2", status: http.StatusOK},
		{name: "Bearer", header: "Authorization", value: "Bearer secret-1", status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newAPIRequest(http.MethodPost, "/api/alerts")
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code)
			if tt.status != http.StatusOK {
				body := decodeError(t, rec)
				assert.Equal(t, "UNAUTHORIZED", body.Code)
				assert.Equal(t, tt.message, body.Message)
			}
		})
	}
}

func TestRequireAPIKeyWithEmptyRing(t *testing.T) {
	req := newAPIRequest(http.MethodPost, "/api/alerts")
	req.Header.Set(APIKeyHeader, "anything")
	rec := httptest.NewRecorder()

	RequireAPIKey(security.NewKeyRing())(okHandler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestThrottle(t *testing.T) {
	handler := Throttle(1, 2)(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newAPIRequest(http.MethodGet, "/api/sensors/readings"))
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusServiceUnavailable}, codes)

	disabled := Throttle(0, 0)(okHandler)
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		disabled.ServeHTTP(rec, newAPIRequest(http.MethodGet, "/"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestValidateRequestData(t *testing.T) {
	collector := setupTelemetry(t)

	req := newAPIRequest(http.MethodPost, "/api/alerts")
	rec := httptest.NewRecorder()
	ok := ValidateRequestData(rec, req, map[string]any{"type": "fire", "title": "hi"}, validate.AlertRules())

	require.False(t, ok)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_FAILED", body.Code)

	violations, isList := body.Details["errors"].([]interface{})
	require.True(t, isList)
	assert.GreaterOrEqual(t, len(violations), 4)
	assert.Greater(t, collector.CountMetricsByName("validation_failures_total"), 0)

	rec = httptest.NewRecorder()
	ok = ValidateRequestData(rec, req, map[string]any{
		"type":     "air",
		"severity": "high",
		"title":    "Smog warning",
		"message":  "PM2.5 levels are above the daily limit.",
	}, validate.AlertRules())
	assert.True(t, ok)
	assert.Equal(t, 0, rec.Body.Len())
}

func TestRecoveryWritesEnvelope(t *testing.T) {
	collector := setupTelemetry(t)
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	RequestID(Recovery(panicking)).ServeHTTP(rec, newAPIRequest(http.MethodGet, "/api/alerts"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", body.Code)
	assert.NotContains(t, body.Message, "boom")
	assert.Equal(t, rec.Header().Get(RequestIDHeader), body.RequestID)
	assert.Greater(t, collector.CountMetricsByName("panics_total"), 0)
}

func TestErrorResponderOverride(t *testing.T) {
	var seen string
	SetErrorResponder(func(w http.ResponseWriter, r *http.Request, envelope *gferrors.ErrorEnvelope) {
		seen = envelope.Code
		w.WriteHeader(http.StatusTeapot)
	})
	t.Cleanup(func() { SetErrorResponder(nil) })

	rec := httptest.NewRecorder()
	RequireAPIKey(security.NewKeyRing("k"))(okHandler).ServeHTTP(rec, newAPIRequest(http.MethodGet, "/api/ratelimit/records"))

	assert.Equal(t, "UNAUTHORIZED", seen)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestRequestIDRejectsUnsafeValues(t *testing.T) {
	handler := RequestID(okHandler)

	req := newAPIRequest(http.MethodGet, "/")
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	req = newAPIRequest(http.MethodGet, "/")
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
}

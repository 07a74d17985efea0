package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoguard/ecoguard/internal/server/middleware"
)

func TestHTTPStatusFromCode(t *testing.T) {
	cases := map[string]int{
		CodeInvalidInput:       http.StatusBadRequest,
		CodeValidationFailed:   http.StatusBadRequest,
		CodeUnauthorized:       http.StatusUnauthorized,
		CodeForbidden:          http.StatusForbidden,
		CodeRateLimited:        http.StatusTooManyRequests,
		CodeServiceUnavailable: http.StatusServiceUnavailable,
		CodeDatabase:           http.StatusInternalServerError,
		"SOMETHING_NEW":        http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, HTTPStatusFromCode(code), code)
	}
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusFromEnvelope(nil))
}

func TestEnsureEnvelope(t *testing.T) {
	env := NewInvalidInputError("limit must be positive")
	assert.Same(t, env, EnsureEnvelope(env))

	plain := EnsureEnvelope(fmt.Errorf("dial tcp 10.0.0.5:6379: connection refused"))
	assert.Equal(t, CodeInternal, plain.Code)
	assert.Empty(t, ResponseDetails(plain), "wrapped errors stay out of the response body")

	assert.Equal(t, CodeInternal, EnsureEnvelope(nil).Code)
}

func TestWrapUsesRequestID(t *testing.T) {
	var env *gferrors.ErrorEnvelope
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env = WrapDatabaseError(r.Context(), fmt.Errorf("database is locked"), "rate limit lookup failed")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/ratelimit/records", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-7f3a")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, env)
	assert.Equal(t, CodeDatabase, env.Code)
	assert.Equal(t, "req-7f3a", env.CorrelationID)

	orphan := WrapInternal(context.Background(), fmt.Errorf("boom"), "x")
	assert.NotEmpty(t, orphan.CorrelationID)
}

func TestRespondWithEnvelope(t *testing.T) {
	env := NewServiceUnavailableError("rate limit store unreachable").
		WithDetails(map[string]interface{}{"backend": "redis"}).
		WithCorrelationID("req-42")

	rec := httptest.NewRecorder()
	RespondWithEnvelope(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil), env)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeServiceUnavailable, body.Error.Code)
	assert.Equal(t, "req-42", body.Error.RequestID)
	assert.Equal(t, "redis", body.Error.Details["backend"])
}

func TestRespondWithErrorPlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithError(rec, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("unexpected"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeInternal, body.Error.Code)
	assert.NotEmpty(t, body.Error.RequestID)
}

func TestLogSeverity(t *testing.T) {
	env := New(CodeRateLimited, "slow down")
	assert.Equal(t, "info", logSeverity(env, http.StatusTooManyRequests))
	assert.Equal(t, string(gferrors.SeverityMedium), logSeverity(New(CodeForbidden, "no"), http.StatusForbidden))
	assert.Equal(t, string(gferrors.SeverityHigh), logSeverity(New(CodeInternal, "boom"), http.StatusInternalServerError))

	critical, err := New(CodeInternal, "panic").WithSeverity(gferrors.SeverityCritical)
	require.NoError(t, err)
	assert.Equal(t, string(gferrors.SeverityCritical), logSeverity(critical, http.StatusBadRequest))
}

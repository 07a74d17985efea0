package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	err error
}

func (s stubChecker) CheckHealth(ctx context.Context) error {
	return s.err
}

type errorBody struct {
	Error struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

func TestHealthHandlerReturnsHealthyStatus(t *testing.T) {
	manager := NewHealthManager("1.2.3")
	manager.RegisterChecker("ok", stubChecker{err: nil})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	manager.HealthHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, StatusHealthy, resp.Checks["ok"])
}

func TestHealthHandlerReturnsServiceUnavailableWhenUnhealthy(t *testing.T) {
	manager := NewHealthManager("1.2.3")
	manager.RegisterChecker("store", stubChecker{err: errors.New("down")})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	manager.HealthHandler(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "SERVICE_UNAVAILABLE", resp.Error.Code)

	checks, ok := resp.Error.Details["checks"].(map[string]interface{})
	require.True(t, ok, "expected checks in error details")
	assert.Equal(t, StatusUnhealthy, checks["store"])
}

func TestProbeHandlers(t *testing.T) {
	tests := []struct {
		name    string
		handler func(*HealthManager) http.HandlerFunc
		probe   string
		message string
	}{
		{"live", func(m *HealthManager) http.HandlerFunc { return m.LivenessHandler }, "live", "liveness probe failed"},
		{"ready", func(m *HealthManager) http.HandlerFunc { return m.ReadinessHandler }, "ready", "readiness probe failed"},
		{"startup", func(m *HealthManager) http.HandlerFunc { return m.StartupHandler }, "startup", "startup probe failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			healthy := NewHealthManager("dev")
			healthy.RegisterChecker("memory", CheckerFunc(func(context.Context) error { return nil }))

			rec := httptest.NewRecorder()
			tt.handler(healthy)(rec, httptest.NewRequest(http.MethodGet, "/health/"+tt.probe, nil))
			require.Equal(t, http.StatusOK, rec.Code)

			var probe ProbeResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&probe))
			assert.Equal(t, StatusHealthy, probe.Status)

			failing := NewHealthManager("dev")
			failing.RegisterChecker("store", stubChecker{err: errors.New("closed")})

			rec = httptest.NewRecorder()
			tt.handler(failing)(rec, httptest.NewRequest(http.MethodGet, "/health/"+tt.probe, nil))
			require.Equal(t, http.StatusServiceUnavailable, rec.Code)

			var resp errorBody
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.message, resp.Error.Message)
			assert.Equal(t, tt.probe, resp.Error.Details["probe"])
		})
	}
}

func TestCheckerTimeoutIsDegraded(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("slow", CheckerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	checks := manager.runHealthChecks(ctx)
	assert.Equal(t, StatusTimeout, checks["slow"])
	assert.Equal(t, StatusDegraded, determineOverallStatus(checks))
}

func TestDetermineOverallStatus(t *testing.T) {
	assert.Equal(t, StatusHealthy, determineOverallStatus(nil))
	assert.Equal(t, StatusDegraded, determineOverallStatus(map[string]string{"store": StatusTimeout}))
	assert.Equal(t, StatusUnhealthy, determineOverallStatus(map[string]string{
		"store":  StatusTimeout,
		"memory": StatusUnhealthy,
	}))
}

func TestGlobalHandlersWithoutManager(t *testing.T) {
	previous := globalHealthManager
	globalHealthManager = nil
	t.Cleanup(func() { globalHealthManager = previous })

	rec := httptest.NewRecorder()
	HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

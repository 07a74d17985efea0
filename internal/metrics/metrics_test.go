package metrics

import (
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoguard/ecoguard/internal/observability"
)

func setupTelemetry(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{
		Enabled: true,
		Emitter: collector,
	})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() {
		observability.TelemetrySystem = original
	})

	return collector
}

func TestScreeningMetrics(t *testing.T) {
	collector := setupTelemetry(t)

	RecordRateLimitDecision("/api/alerts", true)
	RecordRateLimitDecision("/api/alerts", false)
	RecordRateLimitStoreError("/api/alerts")
	RecordSweep(3, true)
	RecordSweep(0, false)
	SetTrackedKeys(12)
	RecordSecurityRejection("bot_user_agent")
	RecordValidationFailure("/api/sensors/readings")

	assert.Greater(t, collector.CountMetricsByName(RateLimitDecisionsTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(RateLimitStoreErrorsTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(RateLimitSweepsTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(RateLimitSweepRemoved), 0)
	assert.Greater(t, collector.CountMetricsByName(RateLimitTrackedKeys), 0)
	assert.Greater(t, collector.CountMetricsByName(SecurityRejectionsTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(ValidationFailuresTotal), 0)
}

func TestAppAndErrorMetrics(t *testing.T) {
	collector := setupTelemetry(t)

	RecordOperation("ratelimit_reset", true)
	RecordHealthCheck("ratelimit_store", true, 3*time.Millisecond)
	SetServerStartTime(time.Now().Unix())
	RecordError("RATE_LIMITED", 429)
	RecordErrorByEndpoint("/api/alerts", "RATE_LIMITED")
	RecordPanic()

	assert.Greater(t, collector.CountMetricsByName(OperationsTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(HealthCheckTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(ServerStartTime), 0)
	assert.Greater(t, collector.CountMetricsByName(ErrorsTotalName), 0)
	assert.Greater(t, collector.CountMetricsByName(ErrorsByEndpointName), 0)
	assert.Greater(t, collector.CountMetricsByName(PanicsTotalName), 0)
}

func TestMetricsWithTelemetryDisabled(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() {
		observability.TelemetrySystem = original
	})

	assert.NotPanics(t, func() {
		RecordRateLimitDecision("/api", true)
		RecordSweep(1, true)
		SetTrackedKeys(1)
		RecordSecurityRejection("suspicious_path")
		RecordValidationFailure("/api")
	})
}

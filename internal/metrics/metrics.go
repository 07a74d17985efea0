// Package metrics names and emits the service's telemetry series. Every
// helper is a no-op until observability.TelemetrySystem is installed.
package metrics

import (
	"time"

	"github.com/ecoguard/ecoguard/internal/observability"
)

// Series names.
const (
	OperationsTotal     = "app_operations_total"
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"
	ServerStartTime     = "app_server_start_time_seconds"

	ErrorsTotalName      = "errors_total"
	PanicsTotalName      = "panics_total"
	ErrorsByEndpointName = "errors_by_endpoint"

	RateLimitDecisionsTotal   = "ratelimit_decisions_total"
	RateLimitStoreErrorsTotal = "ratelimit_store_errors_total"
	RateLimitSweepRemoved     = "ratelimit_sweep_removed_total"
	RateLimitSweepsTotal      = "ratelimit_sweeps_total"
	RateLimitTrackedKeys      = "ratelimit_tracked_keys"
	SecurityRejectionsTotal   = "security_rejections_total"
	ValidationFailuresTotal   = "validation_failures_total"
)

func count(name string, value float64, labels map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Counter(name, value, labels)
	}
}

func gauge(name string, value float64, labels map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Gauge(name, value, labels)
	}
}

func observe(name string, d time.Duration, labels map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Histogram(name, d, labels)
	}
}

func outcome(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

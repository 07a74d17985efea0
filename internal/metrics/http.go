package metrics

import (
	"strconv"
	"time"
)

// HTTP series names.
const (
	HTTPRequestsTotal   = "http_requests_total"
	HTTPRequestDuration = "http_request_duration_ms"
	HTTPRequestSize     = "http_request_size_bytes"
	HTTPResponseSize    = "http_response_size_bytes"
	HTTPErrorsTotal     = "http_errors_total"
)

// HTTPRequest describes one completed request. Endpoint must be a route
// pattern, never a raw path.
type HTTPRequest struct {
	Method       string
	Endpoint     string
	Status       int
	Duration     time.Duration
	RequestSize  int64
	ResponseSize int64
}

// RecordHTTPRequest emits the request counter, latency and sizes, plus an
// error counter for 4xx and 5xx responses.
func RecordHTTPRequest(req HTTPRequest) {
	status := strconv.Itoa(req.Status)
	labels := map[string]string{
		"method":   req.Method,
		"endpoint": req.Endpoint,
		"status":   status,
	}
	count(HTTPRequestsTotal, 1, labels)
	observe(HTTPRequestDuration, req.Duration, labels)

	sized := map[string]string{"method": req.Method, "endpoint": req.Endpoint}
	gauge(HTTPRequestSize, float64(req.RequestSize), sized)
	gauge(HTTPResponseSize, float64(req.ResponseSize), sized)

	if req.Status < 400 {
		return
	}
	count(HTTPErrorsTotal, 1, map[string]string{
		"method":     req.Method,
		"endpoint":   req.Endpoint,
		"status":     status,
		"error_type": outcome(req.Status < 500, "client_error", "server_error"),
	})
}

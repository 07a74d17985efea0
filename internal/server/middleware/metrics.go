package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ecoguard/ecoguard/internal/metrics"
	"github.com/ecoguard/ecoguard/internal/observability"
)

// statusRecorder captures the status code and body size a handler wrote.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// EndpointLabel returns the chi route pattern. Unmatched paths, which include
// every scanner probe, fold into a handful of fixed labels.
func EndpointLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	path := r.URL.Path
	switch {
	case path == "/health" || strings.HasPrefix(path, "/health/"):
		return "/health/*"
	case path == "/version", path == "/metrics", path == "/":
		return path
	case strings.HasPrefix(path, "/api/"):
		return "/api/*"
	default:
		return "/unknown"
	}
}

// RequestMetrics records one metrics sample and one completion log line per
// request.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		sample := metrics.HTTPRequest{
			Method:       r.Method,
			Endpoint:     EndpointLabel(r),
			Status:       rec.status,
			Duration:     time.Since(start),
			RequestSize:  max(r.ContentLength, 0),
			ResponseSize: rec.written,
		}
		metrics.RecordHTTPRequest(sample)

		if observability.ServerLogger != nil {
			observability.ServerLogger.Info("HTTP request completed",
				zap.String("method", sample.Method),
				zap.String("path", r.URL.Path),
				zap.String("endpoint", sample.Endpoint),
				zap.Int("status", sample.Status),
				zap.Duration("duration", sample.Duration),
				zap.Int64("request_size", sample.RequestSize),
				zap.Int64("response_size", sample.ResponseSize),
				zap.String("request_id", GetRequestID(r.Context())),
			)
		}
	})
}

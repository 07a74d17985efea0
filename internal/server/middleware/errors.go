package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/ecoguard/ecoguard/internal/metrics"
)

// ErrorResponder writes an error envelope, choosing the status from its code.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, envelope *errors.ErrorEnvelope)

var errorResponder ErrorResponder

// SetErrorResponder routes middleware rejections through the server's shared
// error writer so they are logged and counted like handler errors.
func SetErrorResponder(fn ErrorResponder) {
	errorResponder = fn
}

// Recovery turns a handler panic into a 500 envelope and counts it.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				metrics.RecordPanic()
				respondError(w, r, panicEnvelope(r, recovered), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func panicEnvelope(r *http.Request, recovered any) *errors.ErrorEnvelope {
	env := errors.NewErrorEnvelope("INTERNAL_ERROR", "internal server error").
		WithCorrelationID(GetRequestID(r.Context()))
	env, _ = env.WithContext(map[string]interface{}{
		"panic":       fmt.Sprint(recovered),
		"stack_trace": string(debug.Stack()),
	})
	env, _ = env.WithSeverity(errors.SeverityCritical)
	return env
}

// ErrorResponse is the body written when no ErrorResponder is installed.
// It matches the shape of the server's error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// respondError uses the installed responder, which resolves the status from
// the envelope code. status applies only to the local fallback.
func respondError(w http.ResponseWriter, r *http.Request, envelope *errors.ErrorEnvelope, status int) {
	if errorResponder != nil {
		errorResponder(w, r, envelope)
		return
	}
	if envelope.CorrelationID == "" {
		envelope = envelope.WithCorrelationID(GetRequestID(r.Context()))
	}

	body := ErrorResponse{Error: ErrorDetail{
		Code:      envelope.Code,
		Message:   envelope.Message,
		RequestID: envelope.CorrelationID,
	}}
	if len(envelope.Details) > 0 {
		body.Error.Details = envelope.Details
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

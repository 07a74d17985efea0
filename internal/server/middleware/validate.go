package middleware

import (
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/ecoguard/ecoguard/internal/core/validate"
	"github.com/ecoguard/ecoguard/internal/metrics"
	"github.com/ecoguard/ecoguard/internal/observability"
)

// ValidationFailedMessage heads every 400 produced by ValidateRequestData.
const ValidationFailedMessage = "Validation failed"

// ValidateRequestData checks data against rules. On failure it writes a 400
// listing every violation under details.errors and returns false.
func ValidateRequestData(w http.ResponseWriter, r *http.Request, data map[string]any, rules validate.Rules) bool {
	violations := validate.Validate(data, rules)
	if len(violations) == 0 {
		return true
	}

	RejectInvalid(w, r, violations)
	return false
}

// RejectInvalid writes the 400 validation envelope for violations.
func RejectInvalid(w http.ResponseWriter, r *http.Request, violations []string) {
	metrics.RecordValidationFailure(EndpointLabel(r))
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Request payload rejected",
			zap.String("path", r.URL.Path),
			zap.Strings("violations", violations),
			zap.String("request_id", GetRequestID(r.Context())),
		)
	}

	envelope := errors.NewErrorEnvelope("VALIDATION_FAILED", ValidationFailedMessage).
		WithDetails(map[string]interface{}{"errors": violations})
	respondError(w, r, envelope, http.StatusBadRequest)
}

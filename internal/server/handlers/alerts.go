package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecoguard/ecoguard/internal/core/validate"
	apperrors "github.com/ecoguard/ecoguard/internal/errors"
	"github.com/ecoguard/ecoguard/internal/metrics"
	"github.com/ecoguard/ecoguard/internal/observability"
	"github.com/ecoguard/ecoguard/internal/server/middleware"
)

// Alert buffer sizing.
const (
	DefaultAlertCapacity = 500
	DefaultAlertPage     = 50
)

// Alert is an accepted pollution alert with sanitized text.
type Alert struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Severity  string    `json:"severity"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Location  string    `json:"location,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AlertHandler accepts alerts from authenticated publishers.
type AlertHandler struct {
	alerts *RingBuffer[Alert]
	now    func() time.Time
}

// NewAlertHandler creates a handler retaining up to capacity alerts.
func NewAlertHandler(capacity int) *AlertHandler {
	if capacity <= 0 {
		capacity = DefaultAlertCapacity
	}
	return &AlertHandler{
		alerts: NewRingBuffer[Alert](capacity),
		now:    time.Now,
	}
}

// Create handles POST /api/alerts.
func (h *AlertHandler) Create(w http.ResponseWriter, r *http.Request) {
	data, err := decodeJSONObject(w, r)
	if err != nil {
		respondInvalidJSON(w, r, err)
		return
	}

	if !middleware.ValidateRequestData(w, r, data, validate.AlertRules()) {
		return
	}
	if !validate.IsValidAlertData(data) {
		middleware.RejectInvalid(w, r, []string{"alert payload is invalid"})
		return
	}

	var violations []string
	alert := Alert{
		ID:        uuid.NewString(),
		Type:      data["type"].(string),
		Severity:  data["severity"].(string),
		Title:     validate.AlertTitle.Read(data, &violations),
		Message:   validate.AlertMessage.Read(data, &violations),
		Location:  validate.AlertLocation.Read(data, &violations),
		CreatedAt: h.now().UTC(),
	}
	if len(violations) > 0 {
		middleware.RejectInvalid(w, r, violations)
		return
	}
	h.alerts.Add(alert)
	metrics.RecordOperation("alert_published", true)

	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Alert published",
			zap.String("alert_id", alert.ID),
			zap.String("type", alert.Type),
			zap.String("severity", alert.Severity),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
		)
	}

	writeJSON(w, http.StatusCreated, alert)
}

// AlertList is the GET response body.
type AlertList struct {
	Alerts []Alert `json:"alerts"`
	Count  int     `json:"count"`
}

// List handles GET /api/alerts, newest first.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := pageLimit(r, DefaultAlertPage, h.alerts.Cap())
	if !ok {
		respondWithError(w, r, apperrors.NewInvalidInputError(limitError(h.alerts.Cap())))
		return
	}

	alerts := h.alerts.Latest(limit)
	writeJSON(w, http.StatusOK, AlertList{Alerts: alerts, Count: len(alerts)})
}

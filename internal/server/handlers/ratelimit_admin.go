package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ecoguard/ecoguard/internal/core/ratelimit"
	apperrors "github.com/ecoguard/ecoguard/internal/errors"
	"github.com/ecoguard/ecoguard/internal/metrics"
	"github.com/ecoguard/ecoguard/internal/observability"
	"github.com/ecoguard/ecoguard/internal/server/middleware"
)

// RecordList is the GET /api/ratelimit/records body.
type RecordList struct {
	Records []ratelimit.Record `json:"records"`
	Count   int                `json:"count"`
}

// ResetResult is the DELETE /api/ratelimit/records body.
type ResetResult struct {
	Deleted int64 `json:"deleted"`
}

// RateLimitAdmin exposes the limiter's store for inspection and reset.
type RateLimitAdmin struct {
	admin ratelimit.Admin
}

// NewRateLimitAdmin wraps an admin-capable store.
func NewRateLimitAdmin(admin ratelimit.Admin) *RateLimitAdmin {
	return &RateLimitAdmin{admin: admin}
}

// List handles GET /api/ratelimit/records?prefix=.
func (h *RateLimitAdmin) List(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")

	records, err := h.admin.List(r.Context(), prefix)
	if err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to list rate limit records"))
		return
	}
	if records == nil {
		records = []ratelimit.Record{}
	}

	writeJSON(w, http.StatusOK, RecordList{Records: records, Count: len(records)})
}

// Reset handles DELETE /api/ratelimit/records. Either prefix or all=true is
// required so an empty query cannot wipe every counter.
func (h *RateLimitAdmin) Reset(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	prefix := query.Get("prefix")
	all, _ := strconv.ParseBool(query.Get("all"))

	if prefix == "" && !all {
		respondWithError(w, r, apperrors.NewInvalidInputError("prefix or all=true is required"))
		return
	}
	if all {
		prefix = ""
	}

	deleted, err := h.admin.Reset(r.Context(), prefix)
	metrics.RecordOperation("ratelimit_reset", err == nil)
	if err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to reset rate limit records"))
		return
	}

	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Rate limit records reset",
			zap.String("prefix", prefix),
			zap.Bool("all", all),
			zap.Int64("deleted", deleted),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
		)
	}

	writeJSON(w, http.StatusOK, ResetResult{Deleted: deleted})
}

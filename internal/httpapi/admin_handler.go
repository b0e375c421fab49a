package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/queue"
	"ai_orchestrator/internal/storage"
	"ai_orchestrator/internal/utils"
)

// UpsertOverrideRequest is the body of PUT /admin/routing-overrides
type UpsertOverrideRequest struct {
	TaskType           string         `json:"task_type"`
	Priority           int            `json:"priority"`
	PrimaryModel       string         `json:"primary_model"`
	FallbackModel      *string        `json:"fallback_model,omitempty"`
	RateLimitPerMinute *int           `json:"rate_limit_per_minute,omitempty"`
	Params             map[string]any `json:"params,omitempty"`
	Enabled            *bool          `json:"enabled,omitempty"`
}

// handleListDeadLetters handles GET /admin/dead-letters?limit=N
func (d *Dependencies) handleListDeadLetters(w http.ResponseWriter, r *http.Request) {
	if d.DeadLetters == nil {
		utils.RespondWithError(w, http.StatusNotImplemented, "Dead letter queue not configured")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := d.DeadLetters.DeadLetterItems(r.Context(), limit)
	if err != nil {
		d.logger.Error("Failed to list dead letters", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list dead letters")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

// handleRetryDeadLetter handles POST /admin/dead-letters/{id}/retry
func (d *Dependencies) handleRetryDeadLetter(w http.ResponseWriter, r *http.Request) {
	if d.DeadLetters == nil {
		utils.RespondWithError(w, http.StatusNotImplemented, "Dead letter queue not configured")
		return
	}

	id := mux.Vars(r)["id"]
	if err := d.DeadLetters.RetryDeadLetter(r.Context(), id); err != nil {
		if errors.Is(err, queue.ErrItemNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Dead letter not found")
			return
		}
		d.logger.Error("Failed to retry dead letter", "id", id, "error", err)
		utils.RespondWithError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	utils.RespondWithJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "requeued"})
}

// handleListOverrides handles GET /admin/routing-overrides
func (d *Dependencies) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	if d.Overrides == nil {
		utils.RespondWithError(w, http.StatusNotImplemented, "Routing overrides require the postgres backend")
		return
	}

	overrides, err := d.Overrides.List(r.Context())
	if err != nil {
		d.logger.Error("Failed to list routing overrides", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list routing overrides")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"overrides": overrides})
}

// handleUpsertOverride handles PUT /admin/routing-overrides
func (d *Dependencies) handleUpsertOverride(w http.ResponseWriter, r *http.Request) {
	if d.Overrides == nil {
		utils.RespondWithError(w, http.StatusNotImplemented, "Routing overrides require the postgres backend")
		return
	}

	var req UpsertOverrideRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	req.TaskType = strings.TrimSpace(req.TaskType)
	req.PrimaryModel = strings.TrimSpace(req.PrimaryModel)
	if req.TaskType == "" || req.PrimaryModel == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "task_type and primary_model are required")
		return
	}
	if req.RateLimitPerMinute != nil && *req.RateLimitPerMinute < 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "rate_limit_per_minute must be non-negative")
		return
	}

	// routed models must stay priceable
	for _, model := range []*string{&req.PrimaryModel, req.FallbackModel} {
		if model == nil || *model == "" {
			continue
		}
		if _, ok := d.Catalog.Pricing(*model); !ok {
			utils.RespondWithError(w, http.StatusBadRequest, "No pricing configured for model "+*model)
			return
		}
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	override := &models.RoutingOverride{
		TaskType:           req.TaskType,
		Priority:           req.Priority,
		PrimaryModel:       req.PrimaryModel,
		FallbackModel:      req.FallbackModel,
		RateLimitPerMinute: req.RateLimitPerMinute,
		Params:             models.JSONB(req.Params),
		Enabled:            enabled,
	}
	if err := d.Overrides.Upsert(r.Context(), override); err != nil {
		d.logger.Error("Failed to upsert routing override", "task_type", req.TaskType, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to save routing override")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, override)
}

// handleSetOverrideEnabled handles PUT /admin/routing-overrides/{id}/enabled
func (d *Dependencies) handleSetOverrideEnabled(w http.ResponseWriter, r *http.Request) {
	if d.Overrides == nil {
		utils.RespondWithError(w, http.StatusNotImplemented, "Routing overrides require the postgres backend")
		return
	}

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid override id")
		return
	}
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := d.Overrides.SetEnabled(r.Context(), id, body.Enabled); err != nil {
		if errors.Is(err, storage.ErrRoutingOverrideNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Routing override not found")
			return
		}
		d.logger.Error("Failed to toggle routing override", "id", id, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update routing override")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"id": id, "enabled": body.Enabled})
}

package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"ai_orchestrator/internal/auth"
	"ai_orchestrator/internal/middleware"
	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/orchestrator"
	"ai_orchestrator/internal/parser"
	"ai_orchestrator/internal/router"
	"ai_orchestrator/internal/storage"
	"ai_orchestrator/internal/utils"
)

// OrchestrateRequest is the body of POST /v1/orchestrate
type OrchestrateRequest struct {
	TaskType  string         `json:"task_type"`
	Variables map[string]any `json:"variables"`
	Async     bool           `json:"async"`
	Params    map[string]any `json:"params,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// RecordResponse is a request record with its optionally parsed response
type RecordResponse struct {
	*models.RequestRecord
	Parsed *parser.Result `json:"parsed,omitempty"`
}

// handleOrchestrate handles POST /v1/orchestrate. Sync requests answer 200
// with the terminal record, async ones 202 with the pending record.
func (d *Dependencies) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	var body OrchestrateRequest
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	userID, _ := middleware.GetUserID(r.Context())
	rec, err := d.Orchestrator.Orchestrate(r.Context(), orchestrator.Request{
		TaskType:  body.TaskType,
		Variables: body.Variables,
		UserID:    userID,
		Async:     body.Async,
		Params:    body.Params,
		Metadata:  body.Metadata,
	})
	if err != nil {
		d.respondWithOrchestrationError(w, err)
		return
	}

	status := http.StatusOK
	if body.Async {
		status = http.StatusAccepted
	}
	utils.RespondWithJSON(w, status, RecordResponse{RequestRecord: rec})
}

// handleGetRequest handles GET /v1/requests/{id}?format=json|text|markdown
func (d *Dependencies) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request id")
		return
	}

	rec, err := d.Orchestrator.Get(r.Context(), id)
	if err != nil || !canRead(r, rec) {
		if err == nil || errors.Is(err, storage.ErrRequestNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Request not found")
			return
		}
		d.logger.Error("Failed to load request", "request_id", id, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to load request")
		return
	}

	resp := RecordResponse{RequestRecord: rec}
	format, wantParsed := r.URL.Query()["format"]
	if wantParsed && rec.Response != nil {
		parsed, err := d.Orchestrator.Parse(rec, format[0])
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		resp.Parsed = &parsed
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// handleListRequests handles GET /v1/requests?limit=N for the calling user
func (d *Dependencies) handleListRequests(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			utils.RespondWithError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	recs, err := d.Orchestrator.ListByUser(r.Context(), userID, limit)
	if err != nil {
		d.logger.Error("Failed to list requests", "user_id", userID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list requests")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"requests": recs, "count": len(recs)})
}

// handleTaskTypes handles GET /v1/task-types
func (d *Dependencies) handleTaskTypes(w http.ResponseWriter, r *http.Request) {
	types := d.Catalog.TaskTypes()
	routes := make([]models.RouteEntry, 0, len(types))
	for _, t := range types {
		route, err := d.Catalog.Route(r.Context(), t)
		if err != nil {
			continue
		}
		routes = append(routes, route)
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"task_types": routes})
}

// canRead lets callers see their own records; viewers and admins see all
func canRead(r *http.Request, rec *models.RequestRecord) bool {
	if middleware.HasRole(r.Context(), auth.RoleViewer) {
		return true
	}
	userID, _ := middleware.GetUserID(r.Context())
	return rec.UserID != nil && *rec.UserID == userID
}

func (d *Dependencies) respondWithOrchestrationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, router.ErrUnknownTaskType):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, orchestrator.ErrInvalidRequest):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, orchestrator.ErrAsyncUnavailable):
		utils.RespondWithError(w, http.StatusServiceUnavailable, err.Error())
	default:
		d.logger.Error("Orchestration failed", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to process request")
	}
}

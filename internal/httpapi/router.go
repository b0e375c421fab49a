package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"ai_orchestrator/internal/auth"
	"ai_orchestrator/internal/config"
	"ai_orchestrator/internal/cost"
	"ai_orchestrator/internal/middleware"
	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/orchestrator"
	"ai_orchestrator/internal/parser"
	"ai_orchestrator/internal/queue"
	"ai_orchestrator/internal/utils"
)

// Orchestrator runs and looks up request records
type Orchestrator interface {
	Orchestrate(ctx context.Context, req orchestrator.Request) (*models.RequestRecord, error)
	Get(ctx context.Context, id uuid.UUID) (*models.RequestRecord, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.RequestRecord, error)
	Parse(rec *models.RequestRecord, format string) (parser.Result, error)
}

// CostReporter answers spend queries
type CostReporter interface {
	DailyCost(ctx context.Context, date time.Time) (int64, error)
	MonthlyCost(ctx context.Context, month time.Time) (int64, error)
	CostByModel(ctx context.Context, p cost.Period) (map[string]int64, error)
	CostByUser(ctx context.Context, userID string, p cost.Period) (int64, error)
	CostPerUser(ctx context.Context, p cost.Period) (map[string]int64, error)
}

// DeadLetters manages discarded jobs
type DeadLetters interface {
	DeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem, error)
	RetryDeadLetter(ctx context.Context, id string) error
}

// OverrideAdmin manages dynamic routing rows
type OverrideAdmin interface {
	List(ctx context.Context) ([]*models.RoutingOverride, error)
	Upsert(ctx context.Context, o *models.RoutingOverride) error
	SetEnabled(ctx context.Context, id int64, enabled bool) error
}

// TaskCatalog lists the configured task types and model pricing
type TaskCatalog interface {
	TaskTypes() []string
	Route(ctx context.Context, taskType string) (models.RouteEntry, error)
	Pricing(model string) (models.ModelPricing, bool)
}

// Dependencies aggregates all services the HTTP layer needs.
// DeadLetters, Overrides and Metrics are optional.
type Dependencies struct {
	Orchestrator Orchestrator
	Costs        CostReporter
	Catalog      TaskCatalog
	DeadLetters  DeadLetters
	Overrides    OverrideAdmin
	Metrics      http.Handler

	// Health reports whether backing stores are reachable
	Health func(ctx context.Context) error

	logger *utils.Logger
}

// NewRouter registers every route on a gorilla/mux router
func NewRouter(deps *Dependencies, cfg *config.Config) *mux.Router {
	if deps.logger == nil {
		deps.logger = utils.NewLogger("httpapi")
	}

	r := mux.NewRouter()
	r.Use(middleware.RequestLogging)

	r.HandleFunc("/health", deps.handleHealth).Methods(http.MethodGet)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics).Methods(http.MethodGet)
	}

	costs := r.PathPrefix("/v1/costs").Subrouter()
	costs.Use(middleware.JWTMiddleware(cfg, auth.RoleViewer))
	costs.HandleFunc("/daily", deps.handleDailyCost).Methods(http.MethodGet)
	costs.HandleFunc("/monthly", deps.handleMonthlyCost).Methods(http.MethodGet)
	costs.HandleFunc("/models", deps.handleCostByModel).Methods(http.MethodGet)
	costs.HandleFunc("/users", deps.handleCostPerUser).Methods(http.MethodGet)
	costs.HandleFunc("/users/{id}", deps.handleCostByUser).Methods(http.MethodGet)

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.JWTMiddleware(cfg, auth.RoleAdmin))
	admin.HandleFunc("/dead-letters", deps.handleListDeadLetters).Methods(http.MethodGet)
	admin.HandleFunc("/dead-letters/{id}/retry", deps.handleRetryDeadLetter).Methods(http.MethodPost)
	admin.HandleFunc("/routing-overrides", deps.handleListOverrides).Methods(http.MethodGet)
	admin.HandleFunc("/routing-overrides", deps.handleUpsertOverride).Methods(http.MethodPut)
	admin.HandleFunc("/routing-overrides/{id}/enabled", deps.handleSetOverrideEnabled).Methods(http.MethodPut)

	// any authenticated caller; registered after /v1/costs so that prefix wins
	api := r.PathPrefix("/v1").Subrouter()
	api.Use(middleware.JWTMiddleware(cfg))
	api.HandleFunc("/orchestrate", deps.handleOrchestrate).Methods(http.MethodPost)
	api.HandleFunc("/requests", deps.handleListRequests).Methods(http.MethodGet)
	api.HandleFunc("/requests/{id}", deps.handleGetRequest).Methods(http.MethodGet)
	api.HandleFunc("/task-types", deps.handleTaskTypes).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondWithError(w, http.StatusNotFound, "Not found")
	})
	return r
}

func (d *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	if d.Health != nil {
		if err := d.Health(r.Context()); err != nil {
			d.logger.Warn("Health check failed", "error", err)
			utils.RespondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/parser"
	"ai_orchestrator/internal/utils"
)

var (
	// ErrInvalidRequest is returned for requests rejected before any record exists
	ErrInvalidRequest = errors.New("invalid request")

	// ErrAsyncUnavailable is returned for async requests when no queue is configured
	ErrAsyncUnavailable = errors.New("async execution is not configured")

	// ErrNotCompleted is returned when parsing a record that has no response
	ErrNotCompleted = errors.New("request has no response")
)

// formatKey is the record metadata key holding the expected response format
const formatKey = "format"

// Renderer builds prompts from task types and variables
type Renderer interface {
	Render(taskType string, vars map[string]any) (system, user string, err error)
	Format(taskType string) string
}

// ModelResolver resolves the primary model of a task type
type ModelResolver interface {
	ModelFor(ctx context.Context, taskType string) (string, error)
}

// RequestStore persists request records
type RequestStore interface {
	Create(ctx context.Context, rec *models.RequestRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.RequestRecord, error)
	Update(ctx context.Context, rec *models.RequestRecord) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.RequestRecord, error)
}

// Runner executes a job inline until its record is terminal
type Runner interface {
	Run(ctx context.Context, job *models.Job) (*models.RequestRecord, error)
}

// Enqueuer hands jobs to background workers
type Enqueuer interface {
	Enqueue(ctx context.Context, job *models.Job) error
}

// Request is one orchestration call
type Request struct {
	TaskType  string         `json:"task_type"`
	Variables map[string]any `json:"variables"`
	UserID    string         `json:"-"`
	Async     bool           `json:"async"`
	Params    map[string]any `json:"params,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Orchestrator is the entry point business logic calls to run AI requests
type Orchestrator struct {
	renderer Renderer
	models   ModelResolver
	store    RequestStore
	runner   Runner
	queue    Enqueuer
	logger   *utils.Logger
}

// New creates an orchestrator. queue may be nil, which disables async requests.
func New(renderer Renderer, resolver ModelResolver, store RequestStore, runner Runner, queue Enqueuer) *Orchestrator {
	return &Orchestrator{
		renderer: renderer,
		models:   resolver,
		store:    store,
		runner:   runner,
		queue:    queue,
		logger:   utils.NewLogger("orchestrator"),
	}
}

// Orchestrate renders the prompt, creates a pending record and either runs it
// inline, returning the terminal record, or enqueues it, returning the pending
// record. Unknown task types and render errors are returned before any record
// is created.
func (o *Orchestrator) Orchestrate(ctx context.Context, req Request) (*models.RequestRecord, error) {
	taskType := strings.TrimSpace(req.TaskType)
	if taskType == "" {
		return nil, fmt.Errorf("%w: task_type is required", ErrInvalidRequest)
	}
	if req.Async && o.queue == nil {
		return nil, ErrAsyncUnavailable
	}

	model, err := o.models.ModelFor(ctx, taskType)
	if err != nil {
		return nil, err
	}

	system, user, err := o.renderer.Render(taskType, req.Variables)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	metadata := models.JSONB{formatKey: o.renderer.Format(taskType)}.Merge(req.Metadata)
	var userID *string
	if req.UserID != "" {
		userID = utils.StringPtr(req.UserID)
	}
	rec := models.NewRequestRecord(taskType, model, system, user, userID, metadata)
	if err := o.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create request record: %w", err)
	}

	job := models.NewJob(rec, req.Params)

	if req.Async {
		if err := o.queue.Enqueue(ctx, job); err != nil {
			o.abandon(ctx, rec, err)
			return nil, fmt.Errorf("failed to enqueue request %s: %w", rec.ID, err)
		}
		o.logger.Debug("Request enqueued", "request_id", rec.ID, "task_type", taskType, "model", model)
		return rec, nil
	}

	// the caller going away must not strand the record in processing; the
	// execution deadline still bounds each attempt
	final, err := o.runner.Run(context.WithoutCancel(ctx), job)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", rec.ID, err)
	}
	return final, nil
}

// abandon fails a record whose job never reached a worker
func (o *Orchestrator) abandon(ctx context.Context, rec *models.RequestRecord, cause error) {
	failed := rec.Clone()
	if err := failed.MarkFailed("enqueue failed: "+cause.Error(), time.Now().UTC()); err != nil {
		return
	}
	if err := o.store.Update(context.WithoutCancel(ctx), failed); err != nil {
		o.logger.Error("Failed to mark unqueued request failed", "request_id", rec.ID, "error", err)
	}
}

// Get returns a request record by id
func (o *Orchestrator) Get(ctx context.Context, id uuid.UUID) (*models.RequestRecord, error) {
	return o.store.GetByID(ctx, id)
}

// ListByUser returns the most recent records of a user
func (o *Orchestrator) ListByUser(ctx context.Context, userID string, limit int) ([]*models.RequestRecord, error) {
	return o.store.ListByUser(ctx, userID, limit)
}

// Parse decodes a completed record's response. An empty format uses the
// format recorded when the request was created.
func (o *Orchestrator) Parse(rec *models.RequestRecord, format string) (parser.Result, error) {
	if rec.Response == nil {
		return parser.Result{}, fmt.Errorf("%w: status is %s", ErrNotCompleted, rec.Status)
	}
	if format == "" {
		format, _ = rec.Metadata[formatKey].(string)
	}
	f, err := parser.ParseFormat(format)
	if err != nil {
		return parser.Result{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return parser.Parse(*rec.Response, f), nil
}

package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ai_orchestrator/internal/metrics"
	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/notify"
	"ai_orchestrator/internal/providers"
	"ai_orchestrator/internal/router"
	"ai_orchestrator/internal/storage"
	"ai_orchestrator/internal/utils"
)

// DefaultDeadline bounds one attempt, measured from its start
const DefaultDeadline = 5 * time.Minute

// RequestStore loads and persists request records
type RequestStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.RequestRecord, error)
	Update(ctx context.Context, rec *models.RequestRecord) error
}

// CacheStore is the response cache consulted before routing
type CacheStore interface {
	Fetch(ctx context.Context, taskType, prompt, model string) (*models.CacheEntry, bool)
	Store(ctx context.Context, taskType, prompt, model, response string) error
	CacheKey(taskType, prompt, model string) string
}

// Router runs provider work under admission control and fallback
type Router interface {
	Execute(ctx context.Context, taskType string, user *router.UserContext, params map[string]any, work router.WorkFunc) (*router.Result, error)
}

// CostEstimator prices a completed call
type CostEstimator interface {
	EstimateCost(model string, inputTokens, outputTokens int) int64
}

// ChatClient performs a single provider call
type ChatClient interface {
	Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error)
}

// Options configures an Executor
type Options struct {
	Deadline time.Duration
	Policies Policies
	Notifier notify.Notifier
	Metrics  metrics.Recorder
	Now      func() time.Time

	// Sleep waits between retries; it returns early with ctx.Err() when ctx is done
	Sleep func(ctx context.Context, d time.Duration) error
}

// Executor drives a request record from pending to a terminal state
type Executor struct {
	store    RequestStore
	cache    CacheStore
	router   Router
	costs    CostEstimator
	client   ChatClient
	deadline time.Duration
	policies Policies
	notifier notify.Notifier
	metrics  metrics.Recorder
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *utils.Logger
}

// NewExecutor creates an executor. Zero options take defaults.
func NewExecutor(store RequestStore, cache CacheStore, rt Router, costs CostEstimator, client ChatClient, opts Options) *Executor {
	if opts.Deadline <= 0 {
		opts.Deadline = DefaultDeadline
	}
	if opts.Policies.Timeout.Retryable == nil && opts.Policies.Transient.Retryable == nil {
		opts.Policies = DefaultPolicies()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Noop{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop{}
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}

	return &Executor{
		store:    store,
		cache:    cache,
		router:   rt,
		costs:    costs,
		client:   client,
		deadline: opts.Deadline,
		policies: opts.Policies,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		now:      opts.Now,
		sleep:    opts.Sleep,
		logger:   utils.NewLogger("executor"),
	}
}

// Run executes the job, retrying failed attempts under the retry policies.
// It returns the record in its final state. An error is returned only for
// invalid jobs, a cancelled ctx, or when the record could not be marked failed.
func (e *Executor) Run(ctx context.Context, job *models.Job) (*models.RequestRecord, error) {
	failures := make(map[ErrorClass]int)

	for {
		job.Attempt++
		rec, err := e.Execute(ctx, job)
		if err == nil {
			return rec, nil
		}

		policy, class, retryable := e.policies.For(err)
		if !retryable {
			if class == ClassInvalid || ctx.Err() != nil {
				return rec, err
			}
			// terminal errors are written by Execute; anything else ends here
			return e.giveUp(ctx, job, err)
		}

		failures[class]++
		if failures[class] >= policy.MaxAttempts {
			e.logger.Warn("Retries exhausted",
				"request_id", job.RequestID, "class", class, "attempts", failures[class], "error", err)
			return e.giveUp(ctx, job, fmt.Errorf("failed after %d attempts: %w", failures[class], err))
		}

		delay := policy.Backoff(failures[class])
		e.logger.Info("Retrying request",
			"request_id", job.RequestID, "class", class, "attempt", job.Attempt, "delay", delay, "error", err)
		e.metrics.Retry(job.TaskType, string(class))

		if err := e.sleep(ctx, delay); err != nil {
			return rec, err
		}
	}
}

// giveUp marks the record failed after a non-recoverable attempt error
func (e *Executor) giveUp(ctx context.Context, job *models.Job, cause error) (*models.RequestRecord, error) {
	rec, err := e.store.GetByID(ctx, job.RequestID)
	if err != nil {
		return nil, fmt.Errorf("load request %s after failure: %w", job.RequestID, err)
	}
	if rec.Status.IsTerminal() {
		return rec, nil
	}
	if err := rec.MarkFailed(cause.Error(), e.now()); err != nil {
		return rec, err
	}
	return e.finish(ctx, rec, time.Time{})
}

// Execute performs a single attempt: load, guard, mark processing, cache
// lookup, routed provider call under the deadline, terminal write and notify.
// A nil error means the record is terminal. Errors are attempt failures for
// Run to classify.
func (e *Executor) Execute(ctx context.Context, job *models.Job) (*models.RequestRecord, error) {
	if err := job.Validate(); err != nil {
		return nil, &InvalidJobError{RequestID: job.RequestID, Err: err}
	}

	rec, err := e.store.GetByID(ctx, job.RequestID)
	if errors.Is(err, storage.ErrRequestNotFound) {
		return nil, &InvalidJobError{RequestID: job.RequestID, Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("load request %s: %w", job.RequestID, err)
	}

	// redelivered job for a finished record
	if rec.Status.IsTerminal() {
		e.logger.Debug("Request already terminal, skipping", "request_id", rec.ID, "status", rec.Status)
		return rec, nil
	}

	start := e.now()
	if err := rec.MarkProcessing(start); err != nil {
		return rec, &InvalidJobError{RequestID: rec.ID, Err: err}
	}
	if err := e.store.Update(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrInvalidTransition) {
			return e.reload(ctx, rec.ID)
		}
		return rec, fmt.Errorf("mark request %s processing: %w", rec.ID, err)
	}

	if entry, ok := e.cache.Fetch(ctx, rec.TaskType, rec.Prompt, rec.Model); ok {
		e.metrics.CacheLookup(rec.TaskType, true)
		key := e.cache.CacheKey(rec.TaskType, rec.Prompt, rec.Model)
		if err := rec.MarkCachedHit(entry.Content, key, e.now()); err != nil {
			return rec, err
		}
		return e.finish(ctx, rec, start)
	}
	e.metrics.CacheLookup(rec.TaskType, false)

	attemptCtx, cancel := context.WithTimeout(ctx, e.deadline)
	defer cancel()

	var user *router.UserContext
	if job.UserID != "" {
		user = &router.UserContext{UserID: job.UserID}
	}

	result, err := e.router.Execute(attemptCtx, rec.TaskType, user, job.Params, e.work(rec))
	if err != nil {
		return e.handleFailure(ctx, attemptCtx, rec, start, err)
	}

	resp := result.Response
	latency := resp.LatencyMS
	if latency <= 0 {
		latency = e.now().Sub(start).Milliseconds()
	}
	costCents := e.costs.EstimateCost(result.Model, resp.InputTokens, resp.OutputTokens)

	rec.Metadata = rec.Metadata.Merge(models.JSONB{
		"used_fallback":    result.UsedFallback,
		"attempted_models": result.Attempted,
	})
	if err := rec.MarkCompleted(result.Model, resp.Content, resp.InputTokens, resp.OutputTokens, costCents, latency, e.now()); err != nil {
		return rec, err
	}

	final, err := e.finish(ctx, rec, start)
	if err != nil {
		return final, err
	}

	if final.Status == models.StatusCompleted && !final.Cached {
		if err := e.cache.Store(ctx, rec.TaskType, rec.Prompt, result.Model, resp.Content); err != nil {
			e.logger.Warn("Failed to cache response", "request_id", rec.ID, "model", result.Model, "error", err)
		}
	}
	return final, nil
}

// work adapts the provider client to the router's work function
func (e *Executor) work(rec *models.RequestRecord) router.WorkFunc {
	return func(ctx context.Context, model string, params map[string]any) (*providers.ChatResponse, error) {
		return e.client.Chat(ctx, providers.ChatRequest{
			Model:        model,
			Prompt:       rec.Prompt,
			SystemPrompt: rec.SystemPrompt,
			Params:       params,
		})
	}
}

// handleFailure writes the terminal state an attempt error implies, or hands
// the error back for retry
func (e *Executor) handleFailure(ctx, attemptCtx context.Context, rec *models.RequestRecord, start time.Time, err error) (*models.RequestRecord, error) {
	if ctx.Err() != nil {
		return rec, ctx.Err()
	}

	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		msg := fmt.Sprintf("execution deadline of %s exceeded: %v", e.deadline, err)
		if markErr := rec.MarkTimedOut(msg, e.now()); markErr != nil {
			return rec, markErr
		}
		return e.finish(ctx, rec, start)
	}

	if Classify(err) == ClassTerminal {
		if router.IsAdmissionError(err) {
			e.logger.Warn("Request rejected by admission control", "request_id", rec.ID, "error", err)
		} else {
			e.logger.Error("Request failed", "request_id", rec.ID, "task_type", rec.TaskType, "error", err)
		}
		if markErr := rec.MarkFailed(err.Error(), e.now()); markErr != nil {
			return rec, markErr
		}
		return e.finish(ctx, rec, start)
	}

	return rec, err
}

// finish persists a terminal record and then notifies observers. When another
// writer already finished the record, the stored record wins and no event is sent.
func (e *Executor) finish(ctx context.Context, rec *models.RequestRecord, start time.Time) (*models.RequestRecord, error) {
	if err := e.store.Update(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrInvalidTransition) {
			e.logger.Warn("Request finished concurrently", "request_id", rec.ID)
			return e.reload(ctx, rec.ID)
		}
		return rec, fmt.Errorf("persist request %s: %w", rec.ID, err)
	}

	var elapsed time.Duration
	if !start.IsZero() {
		elapsed = e.now().Sub(start)
	}
	e.metrics.ObserveExecution(rec.TaskType, rec.Model, rec.Status.String(), elapsed)

	if err := e.notifier.Notify(ctx, notify.NewEvent(rec)); err != nil {
		e.logger.Warn("Failed to notify observers", "request_id", rec.ID, "error", err)
	}

	e.logger.Debug("Request persisted", "request_id", rec.ID, "status", rec.Status, "attempts", rec.Attempts)
	return rec, nil
}

func (e *Executor) reload(ctx context.Context, id uuid.UUID) (*models.RequestRecord, error) {
	rec, err := e.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload request %s: %w", id, err)
	}
	return rec, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

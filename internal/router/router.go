package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai_orchestrator/internal/metrics"
	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/providers"
	"ai_orchestrator/internal/ratelimit"
	"ai_orchestrator/internal/utils"
)

// RouteSource resolves routing entries and dynamic per-model parameters
type RouteSource interface {
	Route(ctx context.Context, taskType string) (models.RouteEntry, error)
	ModelParams(ctx context.Context, model string) map[string]any
}

// CostSource answers the budget queries used by admission control
type CostSource interface {
	DailyCost(ctx context.Context, date time.Time) (int64, error)
	UserDailyCost(ctx context.Context, userID string, date time.Time) (int64, error)
}

// Budget holds the daily cost ceilings. Zero disables a ceiling.
type Budget struct {
	DailyLimitCents     int64
	UserDailyLimitCents int64
}

// UserContext identifies the caller for per-user admission control
type UserContext struct {
	UserID string
}

// WorkFunc performs the provider call for one model
type WorkFunc func(ctx context.Context, model string, params map[string]any) (*providers.ChatResponse, error)

// Result is the outcome of a successful Execute
type Result struct {
	Model        string
	Response     *providers.ChatResponse
	UsedFallback bool
	Attempted    []string
}

// Options configures a Router
type Options struct {
	Budget  Budget
	Metrics metrics.Recorder
	Now     func() time.Time
}

// Router picks models for task types and runs work under admission control
// with a single fallback attempt
type Router struct {
	routes  RouteSource
	counter ratelimit.Counter
	costs   CostSource
	budget  Budget
	metrics metrics.Recorder
	now     func() time.Time
	logger  *utils.Logger
}

// New creates a router. costs may be nil when no budget is enforced.
func New(routes RouteSource, counter ratelimit.Counter, costs CostSource, opts Options) *Router {
	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Router{
		routes:  routes,
		counter: counter,
		costs:   costs,
		budget:  opts.Budget,
		metrics: opts.Metrics,
		now:     opts.Now,
		logger:  utils.NewLogger("router"),
	}
}

// ModelFor returns the primary model of a task type
func (r *Router) ModelFor(ctx context.Context, taskType string) (string, error) {
	route, err := r.routes.Route(ctx, taskType)
	if err != nil {
		return "", err
	}
	return route.PrimaryModel, nil
}

// FallbackFor returns the fallback model of a task type, false when none is configured
func (r *Router) FallbackFor(ctx context.Context, taskType string) (string, bool, error) {
	route, err := r.routes.Route(ctx, taskType)
	if err != nil {
		return "", false, err
	}
	if !route.HasFallback() {
		return "", false, nil
	}
	return route.FallbackModel, true, nil
}

// Execute admits and runs work against the primary model, then once against
// the fallback model if the primary attempt fails. An admission rejection of
// the primary is returned as is; any failure after falling back is reported
// as *AllModelsUnavailableError.
func (r *Router) Execute(ctx context.Context, taskType string, user *UserContext, params map[string]any, work WorkFunc) (*Result, error) {
	route, err := r.routes.Route(ctx, taskType)
	if err != nil {
		return nil, err
	}

	result := &Result{}

	if err := r.admit(ctx, route.PrimaryModel, route.RateLimitPerMinute, user); err != nil {
		return nil, err
	}
	resp, primaryErr := r.invoke(ctx, route, route.PrimaryModel, params, work, result)
	if primaryErr == nil {
		result.Model = route.PrimaryModel
		result.Response = resp
		return result, nil
	}

	// A cancelled or expired context would fail the fallback as well
	if ctx.Err() != nil {
		return nil, primaryErr
	}

	if !route.HasFallback() {
		return nil, &AllModelsUnavailableError{
			TaskType:   taskType,
			Primary:    route.PrimaryModel,
			PrimaryErr: primaryErr,
		}
	}

	r.logger.Warn("Primary model failed, falling back",
		"task_type", taskType, "primary", route.PrimaryModel, "fallback", route.FallbackModel, "error", primaryErr)
	r.metrics.Fallback(taskType)

	fallbackErr := r.admit(ctx, route.FallbackModel, route.RateLimitPerMinute, user)
	if fallbackErr == nil {
		resp, fallbackErr = r.invoke(ctx, route, route.FallbackModel, params, work, result)
	}
	if fallbackErr != nil {
		return nil, &AllModelsUnavailableError{
			TaskType:    taskType,
			Primary:     route.PrimaryModel,
			Fallback:    route.FallbackModel,
			PrimaryErr:  primaryErr,
			FallbackErr: fallbackErr,
		}
	}

	result.Model = route.FallbackModel
	result.Response = resp
	result.UsedFallback = true
	return result, nil
}

// invoke counts the call against the model's window and runs work
func (r *Router) invoke(ctx context.Context, route models.RouteEntry, model string, params map[string]any, work WorkFunc, result *Result) (*providers.ChatResponse, error) {
	if _, err := r.counter.Increment(ctx, model); err != nil {
		r.logger.Warn("Failed to increment rate counter", "model", model, "error", err)
	}

	result.Attempted = append(result.Attempted, model)
	resp, err := work(ctx, model, r.mergeParams(ctx, route, model, params))
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("model %s returned no response", model)
	}
	return resp, nil
}

// admit runs the rate and budget checks for one model. Store errors fail open.
func (r *Router) admit(ctx context.Context, model string, limit int, user *UserContext) error {
	if limit > 0 {
		count, err := r.counter.Count(ctx, model)
		if err != nil {
			r.logger.Warn("Rate counter unavailable, admitting", "model", model, "error", err)
		} else if count >= int64(limit) {
			return r.reject(&RateLimitError{Scope: ScopeModel, Model: model, Limit: int64(limit), Current: count})
		}
	}

	if r.costs == nil {
		return nil
	}
	today := r.now().UTC()

	if r.budget.DailyLimitCents > 0 {
		spent, err := r.costs.DailyCost(ctx, today)
		if err != nil {
			r.logger.Warn("Daily cost unavailable, admitting", "error", err)
		} else if spent >= r.budget.DailyLimitCents {
			return r.reject(&RateLimitError{Scope: ScopeGlobal, Model: model, Limit: r.budget.DailyLimitCents, Current: spent})
		}
	}

	if user != nil && user.UserID != "" && r.budget.UserDailyLimitCents > 0 {
		spent, err := r.costs.UserDailyCost(ctx, user.UserID, today)
		if err != nil {
			r.logger.Warn("User daily cost unavailable, admitting", "user_id", user.UserID, "error", err)
		} else if spent >= r.budget.UserDailyLimitCents {
			return r.reject(&RateLimitError{Scope: ScopeUser, Model: model, UserID: user.UserID, Limit: r.budget.UserDailyLimitCents, Current: spent})
		}
	}

	return nil
}

func (r *Router) reject(err *RateLimitError) error {
	r.logger.Warn("Admission rejected", "scope", err.Scope, "model", err.Model, "user_id", err.UserID, "current", err.Current, "limit", err.Limit)
	r.metrics.AdmissionRejected(string(err.Scope))
	return err
}

// mergeParams layers task defaults, dynamic model params and caller params
func (r *Router) mergeParams(ctx context.Context, route models.RouteEntry, model string, params map[string]any) map[string]any {
	merged := make(map[string]any, len(route.DefaultParams)+len(params))
	for k, v := range route.DefaultParams {
		merged[k] = v
	}
	for k, v := range r.routes.ModelParams(ctx, model) {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}
	return merged
}

// IsAdmissionError reports whether err is an admission control rejection
// that did not come from inside a fallback chain
func IsAdmissionError(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle) && !errors.Is(err, ErrAllModelsUnavailable)
}

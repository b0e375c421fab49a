package router

import (
	"errors"
	"fmt"

	"ai_orchestrator/internal/catalog"
)

var (
	// ErrUnknownTaskType is returned when no routing entry exists for a task type
	ErrUnknownTaskType = catalog.ErrUnknownTaskType

	// ErrRateLimitExceeded is returned when admission control rejects a call
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrAllModelsUnavailable is returned when primary and fallback both failed
	ErrAllModelsUnavailable = errors.New("all models unavailable")
)

// Scope identifies which admission check rejected a call
type Scope string

const (
	ScopeModel  Scope = "model"
	ScopeGlobal Scope = "global"
	ScopeUser   Scope = "user"
)

// RateLimitError is an admission control rejection
type RateLimitError struct {
	Scope   Scope
	Model   string
	UserID  string
	Limit   int64
	Current int64
}

func (e *RateLimitError) Error() string {
	switch e.Scope {
	case ScopeModel:
		return fmt.Sprintf("rate limit exceeded for model %s: %d/%d requests per minute", e.Model, e.Current, e.Limit)
	case ScopeUser:
		return fmt.Sprintf("daily cost limit exceeded for user %s: %d/%d cents", e.UserID, e.Current, e.Limit)
	default:
		return fmt.Sprintf("global daily cost limit exceeded: %d/%d cents", e.Current, e.Limit)
	}
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}

// AllModelsUnavailableError carries the primary and fallback failures
type AllModelsUnavailableError struct {
	TaskType    string
	Primary     string
	Fallback    string
	PrimaryErr  error
	FallbackErr error
}

func (e *AllModelsUnavailableError) Error() string {
	if e.Fallback == "" {
		return fmt.Sprintf("all models unavailable for %s: %s failed (%v), no fallback configured", e.TaskType, e.Primary, e.PrimaryErr)
	}
	return fmt.Sprintf("all models unavailable for %s: %s failed (%v); %s failed (%v)", e.TaskType, e.Primary, e.PrimaryErr, e.Fallback, e.FallbackErr)
}

func (e *AllModelsUnavailableError) Is(target error) bool {
	return target == ErrAllModelsUnavailable
}

func (e *AllModelsUnavailableError) Unwrap() []error {
	errs := []error{e.PrimaryErr}
	if e.FallbackErr != nil {
		errs = append(errs, e.FallbackErr)
	}
	return errs
}

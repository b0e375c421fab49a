package execution

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"ai_orchestrator/internal/providers"
	"ai_orchestrator/internal/router"
)

// InvalidJobError marks a job that can never succeed. It is discarded to the
// dead-letter queue and the record is left untouched.
type InvalidJobError struct {
	RequestID uuid.UUID
	Err       error
}

func (e *InvalidJobError) Error() string {
	return fmt.Sprintf("invalid job for request %s: %v", e.RequestID, e.Err)
}

func (e *InvalidJobError) Unwrap() error {
	return e.Err
}

// ErrorClass groups errors by how the execution loop reacts to them
type ErrorClass string

const (
	// ClassTimeout is a single provider call exceeding its own timeout
	ClassTimeout ErrorClass = "timeout"

	// ClassTransient is any other error that may resolve on retry
	ClassTransient ErrorClass = "transient"

	// ClassTerminal fails the record without retrying
	ClassTerminal ErrorClass = "terminal"

	// ClassInvalid discards the job
	ClassInvalid ErrorClass = "invalid"

	// ClassCancelled means the caller went away; nothing is retried or written
	ClassCancelled ErrorClass = "cancelled"
)

// Classify maps an attempt error to its class. Admission rejections, exhausted
// fallbacks and unknown task types are terminal; provider timeouts outside a
// fallback chain are timeouts; the rest is transient.
//
// The router reports every failed provider call as *AllModelsUnavailableError,
// so provider errors routed through it are always terminal. The timeout and
// transient classes apply to errors raised outside the router, such as a
// record store that is briefly unreachable.
func Classify(err error) ErrorClass {
	var invalid *InvalidJobError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &invalid):
		return ClassInvalid
	case errors.Is(err, router.ErrAllModelsUnavailable),
		errors.Is(err, router.ErrRateLimitExceeded),
		errors.Is(err, router.ErrUnknownTaskType):
		return ClassTerminal
	case errors.Is(err, context.Canceled):
		return ClassCancelled
	}

	var timeout *providers.TimeoutError
	if errors.As(err, &timeout) {
		return ClassTimeout
	}
	return ClassTransient
}

package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrNoProvider is returned when no registered provider serves a model
var ErrNoProvider = errors.New("no provider for model")

// TimeoutError reports that a single provider call exceeded its own timeout
type TimeoutError struct {
	Model   string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider call for %s timed out after %s", e.Model, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// RequestError reports a provider-side or transport failure
type RequestError struct {
	Model      string
	StatusCode int // 0 when no response was received
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider request for %s failed: status=%d: %s", e.Model, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider request for %s failed: %s", e.Model, e.Message)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// classifyTransportError maps an http.Client error to the provider error taxonomy
func classifyTransportError(model string, timeout time.Duration, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &TimeoutError{Model: model, Timeout: timeout, Err: err}
	}
	return &RequestError{Model: model, Message: err.Error(), Err: err}
}

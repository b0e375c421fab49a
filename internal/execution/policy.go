package execution

import (
	"time"

	"ai_orchestrator/internal/config"
)

// RetryPolicy bounds retries of one error class
type RetryPolicy struct {
	// MaxAttempts counts every attempt that failed with this class, the first included
	MaxAttempts int

	// Backoff returns the delay before retry number attempt (1-based)
	Backoff func(attempt int) time.Duration

	// Retryable reports whether err belongs to this policy
	Retryable func(err error) bool
}

// FixedBackoff waits the same delay before every retry
func FixedBackoff(delay time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return delay }
}

// ExponentialBackoff doubles base on every retry, capped at max
func ExponentialBackoff(base, max time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		if attempt > 30 {
			return max
		}
		d := base * time.Duration(1<<uint(attempt-1))
		if max > 0 && d > max {
			return max
		}
		return d
	}
}

// TimeoutPolicy retries provider timeouts with a fixed delay
func TimeoutPolicy(maxAttempts int, delay time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		Backoff:     FixedBackoff(delay),
		Retryable:   func(err error) bool { return Classify(err) == ClassTimeout },
	}
}

// TransientPolicy retries generic failures with exponential backoff
func TransientPolicy(maxAttempts int, base, max time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		Backoff:     ExponentialBackoff(base, max),
		Retryable:   func(err error) bool { return Classify(err) == ClassTransient },
	}
}

// Policies selects a retry policy per error class
type Policies struct {
	Timeout   RetryPolicy
	Transient RetryPolicy
}

// DefaultPolicies retries timeouts 3 times 5s apart and transient errors
// 5 times starting at 2s
func DefaultPolicies() Policies {
	return Policies{
		Timeout:   TimeoutPolicy(3, 5*time.Second),
		Transient: TransientPolicy(5, 2*time.Second, time.Minute),
	}
}

// PoliciesFromConfig builds policies from execution settings
func PoliciesFromConfig(cfg config.ExecutionConfig) Policies {
	return Policies{
		Timeout:   TimeoutPolicy(cfg.TimeoutMaxAttempts, cfg.TimeoutDelay),
		Transient: TransientPolicy(cfg.TransientMaxAttempts, cfg.TransientBaseDelay, cfg.TransientMaxDelay),
	}
}

// For returns the policy that covers err
func (p Policies) For(err error) (RetryPolicy, ErrorClass, bool) {
	switch {
	case p.Timeout.Retryable != nil && p.Timeout.Retryable(err):
		return p.Timeout, ClassTimeout, true
	case p.Transient.Retryable != nil && p.Transient.Retryable(err):
		return p.Transient, ClassTransient, true
	default:
		return RetryPolicy{}, Classify(err), false
	}
}

package models

// Status is the lifecycle state of an orchestrated request
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusTimedOut   Status = "timed_out"
)

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// IsValid reports whether s is one of the known statuses
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusTimedOut:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition may leave s
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusTimedOut
}

// CanTransitionTo reports whether moving from s to next keeps the status monotonic.
// processing -> processing is the re-entry of a retried attempt.
// pending -> failed is reserved for a record whose job could not be enqueued,
// so no worker will ever move it to processing.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusProcessing || next.IsTerminal()
	default:
		return false
	}
}

// NonTerminalStatuses lists the statuses a terminal write may start from
func NonTerminalStatuses() []Status {
	return []Status{StatusPending, StatusProcessing}
}

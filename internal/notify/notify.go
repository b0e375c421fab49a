package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/utils"
)

// Event is published once a request record reaches a terminal state
type Event struct {
	RequestID    uuid.UUID     `json:"request_id"`
	TaskType     string        `json:"task_type"`
	Model        string        `json:"model"`
	Status       models.Status `json:"status"`
	Cached       bool          `json:"cached"`
	CostCents    int64         `json:"cost_cents"`
	LatencyMS    int64         `json:"latency_ms"`
	Attempts     int           `json:"attempts"`
	ErrorMessage string        `json:"error_message,omitempty"`
	UserID       string        `json:"user_id,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}

// NewEvent builds the outcome event of a record
func NewEvent(rec *models.RequestRecord) Event {
	return Event{
		RequestID:    rec.ID,
		TaskType:     rec.TaskType,
		Model:        rec.Model,
		Status:       rec.Status,
		Cached:       rec.Cached,
		CostCents:    rec.CostCents,
		LatencyMS:    utils.Int64PtrValue(rec.LatencyMS),
		Attempts:     rec.Attempts,
		ErrorMessage: utils.StringPtrValue(rec.ErrorMessage),
		UserID:       utils.StringPtrValue(rec.UserID),
		Timestamp:    rec.UpdatedAt,
	}
}

// Notifier pushes outcome events to observers. Delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LogNotifier writes events to the log
type LogNotifier struct {
	logger *utils.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: utils.NewLogger("notify")}
}

func (n *LogNotifier) Notify(ctx context.Context, event Event) error {
	n.logger.Info("Request finished",
		"request_id", event.RequestID,
		"task_type", event.TaskType,
		"model", event.Model,
		"status", event.Status,
		"cached", event.Cached,
		"cost_cents", event.CostCents,
		"latency_ms", event.LatencyMS,
	)
	return nil
}

// Multi fans an event out to every notifier and joins their errors
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Noop discards events
type Noop struct{}

func (Noop) Notify(context.Context, Event) error { return nil }

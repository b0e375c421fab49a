// Package queue carries async execution jobs between the orchestrator and
// the worker pool. Two backends are available:
//
//   - Memory: channel-based, lost on restart, for single-process deployments
//   - Redis: list-based, survives restarts and is shared by distributed workers
//
// Jobs that cannot be processed are parked in a dead-letter queue.
package queue

import (
	"context"
	"time"

	"ai_orchestrator/internal/models"
)

// Queue defines the interface for job queuing
type Queue interface {
	// Enqueue adds a job to the tail of the queue
	Enqueue(ctx context.Context, job *models.Job) error

	// Dequeue retrieves up to maxItems jobs.
	// Blocks until at least one job is available or ctx is cancelled.
	Dequeue(ctx context.Context, maxItems int) ([]*models.Job, error)

	// DequeueWithTimeout is Dequeue bounded by timeout.
	// Returns an empty slice when nothing arrived in time.
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]*models.Job, error)

	// Length returns the current queue length
	Length(ctx context.Context) (int, error)

	// Close shuts down the queue
	Close() error
}

// DeadLetterQueue holds jobs that were discarded
type DeadLetterQueue interface {
	// Add parks a job with the error that discarded it
	Add(ctx context.Context, job *models.Job, err error) error

	// List retrieves parked jobs, oldest first
	List(ctx context.Context, maxItems int) ([]DeadLetterItem, error)

	// Remove deletes a parked job
	Remove(ctx context.Context, id string) error

	// Close shuts down the dead letter queue
	Close() error
}

// DeadLetterItem is a parked job
type DeadLetterItem struct {
	ID        string      `json:"id"`
	Job       *models.Job `json:"job"`
	Raw       string      `json:"raw,omitempty"`
	Error     string      `json:"error"`
	Timestamp time.Time   `json:"timestamp"`
	Attempts  int         `json:"attempts"`
}

func newDeadLetterItem(job *models.Job, err error) DeadLetterItem {
	return DeadLetterItem{
		ID:        generateID(),
		Job:       job,
		Raw:       job.Raw,
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
		Attempts:  job.Attempt,
	}
}

// Config holds queue configuration
type Config struct {
	// QueueName is the name/key for the queue
	QueueName string

	// BatchSize is the maximum number of jobs handed out per dequeue
	BatchSize int

	// PollInterval bounds each blocking dequeue so workers notice shutdown
	PollInterval time.Duration

	// MaxSize rejects enqueues beyond this length. Zero means unbounded
	// for Redis and BatchSize*10 for the memory queue.
	MaxSize int
}

// DefaultConfig returns default queue configuration
func DefaultConfig(queueName string) *Config {
	return &Config{
		QueueName:    queueName,
		BatchSize:    10,
		PollInterval: 500 * time.Millisecond,
	}
}

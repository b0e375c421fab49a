package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"ai_orchestrator/internal/models"
)

// MemoryQueue implements Queue using a buffered channel
type MemoryQueue struct {
	items     chan *models.Job
	done      chan struct{}
	closeOnce sync.Once
	config    *Config
}

// NewMemoryQueue creates a new in-memory queue
func NewMemoryQueue(config *Config) *MemoryQueue {
	if config == nil {
		config = DefaultConfig("memory")
	}
	size := config.MaxSize
	if size <= 0 {
		size = config.BatchSize * 10
	}
	if size <= 0 {
		size = 100
	}

	return &MemoryQueue{
		items:  make(chan *models.Job, size),
		done:   make(chan struct{}),
		config: config,
	}
}

// Enqueue adds a job without blocking
func (q *MemoryQueue) Enqueue(ctx context.Context, job *models.Job) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.items <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Dequeue retrieves jobs from the queue
func (q *MemoryQueue) Dequeue(ctx context.Context, maxItems int) ([]*models.Job, error) {
	select {
	case job := <-q.items:
		return q.drain([]*models.Job{job}, maxItems), nil
	case <-q.done:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DequeueWithTimeout retrieves jobs with a timeout
func (q *MemoryQueue) DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]*models.Job, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case job := <-q.items:
		return q.drain([]*models.Job{job}, maxItems), nil
	case <-timer.C:
		return []*models.Job{}, nil
	case <-q.done:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// drain takes more jobs without blocking
func (q *MemoryQueue) drain(jobs []*models.Job, maxItems int) []*models.Job {
	for len(jobs) < maxItems {
		select {
		case job := <-q.items:
			jobs = append(jobs, job)
		default:
			return jobs
		}
	}
	return jobs
}

// Length returns the current queue length
func (q *MemoryQueue) Length(ctx context.Context) (int, error) {
	select {
	case <-q.done:
		return 0, ErrQueueClosed
	default:
	}
	return len(q.items), nil
}

// Close shuts down the queue. Jobs still buffered are dropped.
func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}

// MemoryDeadLetterQueue implements DeadLetterQueue using in-memory storage
type MemoryDeadLetterQueue struct {
	items  []DeadLetterItem
	mu     sync.RWMutex
	closed bool
}

// NewMemoryDeadLetterQueue creates a new in-memory dead letter queue
func NewMemoryDeadLetterQueue() *MemoryDeadLetterQueue {
	return &MemoryDeadLetterQueue{
		items: make([]DeadLetterItem, 0),
	}
}

// Add parks a job
func (q *MemoryDeadLetterQueue) Add(ctx context.Context, job *models.Job, err error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.items = append(q.items, newDeadLetterItem(job, err))
	return nil
}

// List retrieves parked jobs
func (q *MemoryDeadLetterQueue) List(ctx context.Context, maxItems int) ([]DeadLetterItem, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	if maxItems <= 0 || maxItems > len(q.items) {
		maxItems = len(q.items)
	}

	result := make([]DeadLetterItem, maxItems)
	copy(result, q.items[:maxItems])
	return result, nil
}

// Remove deletes a parked job
func (q *MemoryDeadLetterQueue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	for i, item := range q.items {
		if item.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return nil
		}
	}

	return ErrItemNotFound
}

// Close shuts down the dead letter queue
func (q *MemoryDeadLetterQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.items = nil
	return nil
}

// generateID generates a unique ID for dead letter items
func generateID() string {
	return uuid.NewString()
}

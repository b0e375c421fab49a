package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ai_orchestrator/internal/metrics"
	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/queue"
	"ai_orchestrator/internal/utils"
)

// Runner executes one job to completion
type Runner interface {
	Run(ctx context.Context, job *models.Job) (*models.RequestRecord, error)
}

// ErrNoDeadLetterQueue is returned by dead-letter operations when none is configured
var ErrNoDeadLetterQueue = errors.New("dead letter queue not configured")

// Pool runs background workers that pull jobs from a queue
type Pool struct {
	queue   queue.Queue
	dlq     queue.DeadLetterQueue
	runner  Runner
	workers int
	config  *queue.Config
	metrics metrics.Recorder
	logger  *utils.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPool creates a worker pool. dlq may be nil.
func NewPool(q queue.Queue, dlq queue.DeadLetterQueue, runner Runner, workers int, config *queue.Config, recorder metrics.Recorder) *Pool {
	if config == nil {
		config = queue.DefaultConfig("jobs")
	}
	if workers <= 0 {
		workers = 1
	}
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &Pool{
		queue:    q,
		dlq:      dlq,
		runner:   runner,
		workers:  workers,
		config:   config,
		metrics:  recorder,
		logger:   utils.NewLogger("worker-pool"),
		stopChan: make(chan struct{}),
	}
}

// Start launches the worker goroutines
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("Starting workers", "count", p.workers, "queue", p.config.QueueName)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
}

// Stop signals the workers and waits for in-flight jobs to finish
func (p *Pool) Stop() error {
	p.stopOnce.Do(func() { close(p.stopChan) })
	p.wg.Wait()
	return nil
}

// Enqueue adds a job to the pool's queue
func (p *Pool) Enqueue(ctx context.Context, job *models.Job) error {
	return p.queue.Enqueue(ctx, job)
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			p.logger.Debug("Worker stopping", "worker", id)
			return
		case <-ctx.Done():
			p.logger.Debug("Worker context cancelled", "worker", id)
			return
		default:
			if !p.processBatch(ctx, id) {
				return
			}
		}
	}
}

// processBatch dequeues and runs one batch. It returns false once the queue is closed.
func (p *Pool) processBatch(ctx context.Context, id int) bool {
	jobs, err := p.queue.DequeueWithTimeout(ctx, p.config.BatchSize, p.config.PollInterval)
	if errors.Is(err, queue.ErrQueueClosed) {
		return false
	}
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("Failed to dequeue jobs", "worker", id, "error", err)
		time.Sleep(1 * time.Second)
		return true
	}

	if n, err := p.queue.Length(ctx); err == nil {
		p.metrics.SetQueueDepth(int64(n))
	}
	if len(jobs) == 0 {
		return true
	}

	p.logger.Debug("Processing batch", "worker", id, "count", len(jobs))
	for _, job := range jobs {
		p.process(ctx, job)
	}
	return true
}

// process runs a job to completion. Jobs already dequeued are finished even
// when shutdown starts, so the run is detached from ctx cancellation.
func (p *Pool) process(ctx context.Context, job *models.Job) {
	rec, err := p.runner.Run(context.WithoutCancel(ctx), job)
	if err == nil {
		p.logger.Debug("Job done", "request_id", job.RequestID, "status", rec.Status)
		return
	}

	var invalid *InvalidJobError
	if !errors.As(err, &invalid) {
		p.logger.Error("Job failed", "request_id", job.RequestID, "error", err)
		return
	}

	if p.dlq == nil {
		p.logger.Warn("Discarding invalid job", "request_id", job.RequestID, "error", err)
		return
	}
	if dlqErr := p.dlq.Add(ctx, job, err); dlqErr != nil {
		p.logger.Error("Failed to add to dead letter queue", "request_id", job.RequestID, "error", dlqErr)
		return
	}
	p.logger.Warn("Job moved to DLQ", "request_id", job.RequestID, "error", err)
}

// QueueLength returns the current queue length
func (p *Pool) QueueLength(ctx context.Context) (int, error) {
	return p.queue.Length(ctx)
}

// DeadLetterItems returns parked jobs, oldest first
func (p *Pool) DeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem, error) {
	if p.dlq == nil {
		return nil, ErrNoDeadLetterQueue
	}
	return p.dlq.List(ctx, maxItems)
}

// RetryDeadLetter moves a parked job back onto the queue
func (p *Pool) RetryDeadLetter(ctx context.Context, id string) error {
	if p.dlq == nil {
		return ErrNoDeadLetterQueue
	}

	items, err := p.dlq.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to list dead letter items: %w", err)
	}

	for _, item := range items {
		if item.ID != id {
			continue
		}
		if item.Job == nil || item.Raw != "" || item.Job.Validate() != nil {
			return fmt.Errorf("dead letter item %s has no decodable job", id)
		}

		job := *item.Job
		job.Attempt = 0
		job.EnqueuedAt = time.Now().UTC()
		if err := p.queue.Enqueue(ctx, &job); err != nil {
			return fmt.Errorf("failed to re-enqueue job: %w", err)
		}
		if err := p.dlq.Remove(ctx, id); err != nil {
			return fmt.Errorf("failed to remove from DLQ: %w", err)
		}
		return nil
	}
	return queue.ErrItemNotFound
}

package execution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/queue"
)

func newTestQueue() (*queue.MemoryQueue, *queue.MemoryDeadLetterQueue, *queue.Config) {
	cfg := queue.DefaultConfig("test-jobs")
	cfg.PollInterval = 20 * time.Millisecond
	return queue.NewMemoryQueue(cfg), queue.NewMemoryDeadLetterQueue(), cfg
}

func TestPool_RunsQueuedJobs(t *testing.T) {
	h := newHarness(t, nil, Options{})
	q, dlq, cfg := newTestQueue()
	defer q.Close()

	pool := NewPool(q, dlq, h.exec, 3, cfg, nil)
	pool.Start(context.Background())

	var ids []uuid.UUID
	for _, prompt := range []string{"rivers", "mountains", "deserts", "oceans"} {
		rec, job := h.createRecord(t, "summarization", "Summarize "+prompt)
		ids = append(ids, rec.ID)
		require.NoError(t, pool.Enqueue(context.Background(), job))
	}

	require.Eventually(t, func() bool {
		for _, id := range ids {
			rec, err := h.store.GetByID(context.Background(), id)
			if err != nil || rec.Status != models.StatusCompleted {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, pool.Stop())
	assert.Len(t, h.notifier.Events(), len(ids))

	items, err := pool.DeadLetterItems(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestPool_InvalidJobGoesToDeadLetterQueue(t *testing.T) {
	h := newHarness(t, nil, Options{})
	q, dlq, cfg := newTestQueue()
	defer q.Close()

	pool := NewPool(q, dlq, h.exec, 1, cfg, nil)
	pool.Start(context.Background())
	defer pool.Stop()

	missing := &models.Job{RequestID: uuid.New(), TaskType: "summarization"}
	require.NoError(t, pool.Enqueue(context.Background(), missing))

	require.Eventually(t, func() bool {
		items, err := dlq.List(context.Background(), 0)
		return err == nil && len(items) == 1
	}, 2*time.Second, 10*time.Millisecond)

	items, err := pool.DeadLetterItems(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, missing.RequestID, items[0].Job.RequestID)
	assert.Contains(t, items[0].Error, "request record not found")
	assert.Empty(t, h.client.Calls())
}

func TestPool_RetryDeadLetter(t *testing.T) {
	q, dlq, cfg := newTestQueue()
	defer q.Close()
	pool := NewPool(q, dlq, nil, 1, cfg, nil)
	ctx := context.Background()

	job := &models.Job{RequestID: uuid.New(), TaskType: "summarization", Attempt: 4}
	require.NoError(t, dlq.Add(ctx, job, errors.New("request record not found")))
	require.NoError(t, dlq.Add(ctx, &models.Job{DecodeError: "bad json", Raw: "{"}, errors.New("undecodable")))

	items, err := pool.DeadLetterItems(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.NoError(t, pool.RetryDeadLetter(ctx, items[0].ID))
	n, err := pool.QueueLength(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	requeued, err := q.DequeueWithTimeout(ctx, 1, 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, requeued, 1)
	assert.Equal(t, job.RequestID, requeued[0].RequestID)
	assert.Equal(t, 0, requeued[0].Attempt)

	assert.Error(t, pool.RetryDeadLetter(ctx, items[1].ID))
	assert.ErrorIs(t, pool.RetryDeadLetter(ctx, "missing"), queue.ErrItemNotFound)

	left, err := pool.DeadLetterItems(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestPool_NoDeadLetterQueue(t *testing.T) {
	q, _, cfg := newTestQueue()
	defer q.Close()
	pool := NewPool(q, nil, nil, 1, cfg, nil)

	_, err := pool.DeadLetterItems(context.Background(), 10)
	assert.ErrorIs(t, err, ErrNoDeadLetterQueue)
	assert.ErrorIs(t, pool.RetryDeadLetter(context.Background(), "x"), ErrNoDeadLetterQueue)
}

type blockingRunner struct {
	started chan struct{}
	release chan struct{}
	mu      sync.Mutex
	done    int
}

func (r *blockingRunner) Run(ctx context.Context, job *models.Job) (*models.RequestRecord, error) {
	r.started <- struct{}{}
	<-r.release
	r.mu.Lock()
	r.done++
	r.mu.Unlock()
	return &models.RequestRecord{Status: models.StatusCompleted}, nil
}

func TestPool_StopWaitsForInFlightJob(t *testing.T) {
	q, dlq, cfg := newTestQueue()
	defer q.Close()
	runner := &blockingRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
	pool := NewPool(q, dlq, runner, 1, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	require.NoError(t, q.Enqueue(ctx, &models.Job{RequestID: uuid.New(), TaskType: "summarization"}))
	<-runner.started

	// cancelling the pool context does not abort the dequeued job
	cancel()
	stopped := make(chan struct{})
	go func() {
		_ = pool.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned before the in-flight job finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Equal(t, 1, runner.done)
}

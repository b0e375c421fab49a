package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultWindow is the length of a rate counter window
const DefaultWindow = time.Minute

// Counter tracks per-model calls in a fixed window. The window starts at the
// first increment and the counter resets when it expires, so a burst across a
// window boundary can admit up to twice the nominal limit.
type Counter interface {
	// Count returns the calls recorded in the current window
	Count(ctx context.Context, model string) (int64, error)

	// Increment records one call and returns the new count
	Increment(ctx context.Context, model string) (int64, error)
}

func counterKey(model string) string {
	return fmt.Sprintf("ratelimit:model:%s", model)
}

// incrementScript bumps the counter and starts the window on the first call
var incrementScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return count
`)

// RedisCounter shares counters across processes through Redis
type RedisCounter struct {
	client *redis.Client
	window time.Duration
}

// NewRedisCounter creates a Redis-backed counter. A zero window uses DefaultWindow.
func NewRedisCounter(client *redis.Client, window time.Duration) *RedisCounter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisCounter{client: client, window: window}
}

// Count returns the calls recorded in the current window
func (c *RedisCounter) Count(ctx context.Context, model string) (int64, error) {
	n, err := c.client.Get(ctx, counterKey(model)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read rate counter: %w", err)
	}
	return n, nil
}

// Increment records one call and returns the new count
func (c *RedisCounter) Increment(ctx context.Context, model string) (int64, error) {
	n, err := incrementScript.Run(ctx, c.client, []string{counterKey(model)}, c.window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate counter: %w", err)
	}
	return n, nil
}

// Reset clears the counter of a model
func (c *RedisCounter) Reset(ctx context.Context, model string) error {
	return c.client.Del(ctx, counterKey(model)).Err()
}

type window struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounter keeps counters in process memory
type MemoryCounter struct {
	mu      sync.Mutex
	window  time.Duration
	windows map[string]*window
	now     func() time.Time
}

// NewMemoryCounter creates an in-process counter. A zero window uses DefaultWindow.
func NewMemoryCounter(w time.Duration) *MemoryCounter {
	if w <= 0 {
		w = DefaultWindow
	}
	return &MemoryCounter{
		window:  w,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (c *MemoryCounter) current(model string) *window {
	w, ok := c.windows[model]
	if !ok {
		return nil
	}
	if !c.now().Before(w.expiresAt) {
		delete(c.windows, model)
		return nil
	}
	return w
}

// Count returns the calls recorded in the current window
func (c *MemoryCounter) Count(ctx context.Context, model string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if w := c.current(model); w != nil {
		return w.count, nil
	}
	return 0, nil
}

// Increment records one call and returns the new count
func (c *MemoryCounter) Increment(ctx context.Context, model string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := c.current(model)
	if w == nil {
		w = &window{expiresAt: c.now().Add(c.window)}
		c.windows[model] = w
	}
	w.count++
	return w.count, nil
}

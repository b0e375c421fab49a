package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr
}

func TestRedisCounter_IncrementAndCount(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	counter := NewRedisCounter(client, 0)
	ctx := context.Background()

	n, err := counter.Count(ctx, "gpt-5.2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	for i := 1; i <= 3; i++ {
		n, err := counter.Increment(ctx, "gpt-5.2")
		require.NoError(t, err)
		assert.Equal(t, int64(i), n)
	}

	n, err = counter.Count(ctx, "gpt-5.2")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	// counters are per model
	n, err = counter.Count(ctx, "claude-sonnet-4.5")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	ttl := mr.TTL("ratelimit:model:gpt-5.2")
	assert.True(t, ttl > 0 && ttl <= time.Minute)
}

func TestRedisCounter_WindowExpires(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	counter := NewRedisCounter(client, time.Minute)
	ctx := context.Background()

	_, err := counter.Increment(ctx, "gpt-5.2")
	require.NoError(t, err)
	mr.FastForward(30 * time.Second)
	_, err = counter.Increment(ctx, "gpt-5.2")
	require.NoError(t, err)

	// later increments do not extend the window
	mr.FastForward(31 * time.Second)
	n, err := counter.Count(ctx, "gpt-5.2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestRedisCounter_BoundaryBurst(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	const limit = 3
	counter := NewRedisCounter(client, time.Minute)
	ctx := context.Background()

	admit := func() bool {
		n, err := counter.Count(ctx, "gpt-5.1-codex-mini")
		require.NoError(t, err)
		if n >= limit {
			return false
		}
		_, err = counter.Increment(ctx, "gpt-5.1-codex-mini")
		require.NoError(t, err)
		return true
	}

	// open the window, then burst right before it closes
	require.True(t, admit())
	mr.FastForward(59 * time.Second)
	assert.True(t, admit())
	assert.True(t, admit())
	assert.False(t, admit())

	// two seconds later a fresh window admits the full limit again
	mr.FastForward(2 * time.Second)
	admitted := 0
	for i := 0; i < limit+1; i++ {
		if admit() {
			admitted++
		}
	}
	assert.Equal(t, limit, admitted)
	// five calls landed within about two seconds against a limit of three per minute
}

func TestRedisCounter_Reset(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	counter := NewRedisCounter(client, time.Minute)
	ctx := context.Background()

	_, err := counter.Increment(ctx, "gpt-5.2")
	require.NoError(t, err)
	require.NoError(t, counter.Reset(ctx, "gpt-5.2"))

	n, err := counter.Count(ctx, "gpt-5.2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestRedisCounter_Unavailable(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()
	mr.Close()

	counter := NewRedisCounter(client, time.Minute)
	_, err := counter.Increment(context.Background(), "gpt-5.2")
	assert.Error(t, err)
}

func TestMemoryCounter_Window(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	counter := NewMemoryCounter(time.Minute)
	counter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := counter.Increment(ctx, "gpt-5.2")
		require.NoError(t, err)
	}
	n, _ := counter.Count(ctx, "gpt-5.2")
	assert.Equal(t, int64(3), n)

	now = now.Add(59 * time.Second)
	n, _ = counter.Count(ctx, "gpt-5.2")
	assert.Equal(t, int64(3), n)

	now = now.Add(time.Second)
	n, _ = counter.Count(ctx, "gpt-5.2")
	assert.Equal(t, int64(0), n)

	n, _ = counter.Increment(ctx, "gpt-5.2")
	assert.Equal(t, int64(1), n)
}

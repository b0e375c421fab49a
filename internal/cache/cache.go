package cache

import (
	"context"
	"strings"
	"time"

	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/utils"
)

// keyPrefix namespaces response cache keys in shared backends
const keyPrefix = "ai_cache:"

// Backend is the durable key/value store behind the cache
type Backend interface {
	Get(ctx context.Context, key string) (*models.CacheEntry, bool, error)
	Set(ctx context.Context, key string, entry models.CacheEntry, ttl time.Duration) error
}

// Policy supplies per-task-type caching rules
type Policy interface {
	TTL(taskType string) time.Duration
	IsCacheable(taskType string) bool
}

// Store caches provider responses for repeatable task types
type Store struct {
	backend Backend
	policy  Policy
	logger  *utils.Logger
	now     func() time.Time
}

// New creates a cache store
func New(backend Backend, policy Policy) *Store {
	return &Store{
		backend: backend,
		policy:  policy,
		logger:  utils.NewLogger("cache"),
		now:     time.Now,
	}
}

// CacheKey is the SHA-256 digest of task_type:model:trimmed_prompt
func CacheKey(taskType, prompt, model string) string {
	return utils.HashParts(taskType, model, strings.TrimSpace(prompt))
}

// CacheKey returns the digest used for a request tuple
func (s *Store) CacheKey(taskType, prompt, model string) string {
	return CacheKey(taskType, prompt, model)
}

// Fetch looks up a cached response. Non-cacheable task types miss without
// touching the backend; backend errors are logged and reported as a miss.
func (s *Store) Fetch(ctx context.Context, taskType, prompt, model string) (*models.CacheEntry, bool) {
	if !s.policy.IsCacheable(taskType) {
		return nil, false
	}

	key := CacheKey(taskType, prompt, model)
	entry, ok, err := s.backend.Get(ctx, keyPrefix+key)
	if err != nil {
		s.logger.Warn("Cache lookup failed", "task_type", taskType, "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return entry, true
}

// Store saves a response. It is a no-op for non-cacheable task types and for
// task types with a zero TTL.
func (s *Store) Store(ctx context.Context, taskType, prompt, model, response string) error {
	if !s.policy.IsCacheable(taskType) {
		return nil
	}
	ttl := s.policy.TTL(taskType)
	if ttl <= 0 {
		return nil
	}

	key := CacheKey(taskType, prompt, model)
	entry := models.CacheEntry{Content: response, CachedAt: s.now().UTC()}
	return s.backend.Set(ctx, keyPrefix+key, entry, ttl)
}

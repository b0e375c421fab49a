package cache

import (
	"context"
	"time"

	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/storage"
)

// MemoryBackend keeps entries in a process-local LRU with per-entry expiry
type MemoryBackend struct {
	lru *storage.LRUCache
}

// NewMemoryBackend creates an in-memory backend holding up to size entries
func NewMemoryBackend(size int) *MemoryBackend {
	return &MemoryBackend{lru: storage.NewLRUCache(size, 0)}
}

// Get reads an entry
func (b *MemoryBackend) Get(ctx context.Context, key string) (*models.CacheEntry, bool, error) {
	v, ok := b.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	entry := v.(models.CacheEntry)
	return &entry, true, nil
}

// Set writes an entry that expires after ttl
func (b *MemoryBackend) Set(ctx context.Context, key string, entry models.CacheEntry, ttl time.Duration) error {
	b.lru.SetWithTTL(key, entry, ttl)
	return nil
}

// Stats exposes hit/miss counters of the underlying LRU
func (b *MemoryBackend) Stats() storage.CacheStats {
	return b.lru.GetStats()
}

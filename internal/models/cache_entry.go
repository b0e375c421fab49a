package models

import "time"

// CacheEntry is a cached provider response
type CacheEntry struct {
	Content  string    `json:"content"`
	CachedAt time.Time `json:"cached_at"`
}

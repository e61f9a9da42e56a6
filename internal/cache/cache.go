// Package cache provides an in-memory TTL cache for fetched page content.
package cache

import (
	"strings"
	"sync"
	"time"
)

// Entry is a cached value with its freshness window.
type Entry[V any] struct {
	Value     V
	ExpiresAt time.Time
	StaleAt   time.Time // For stale-while-revalidate: when the value becomes stale (but still usable)
}

// IsExpired returns true if the entry has expired
func (e *Entry[V]) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

// IsStale returns true if the entry is stale but not expired
func (e *Entry[V]) IsStale() bool {
	now := time.Now()
	return now.After(e.StaleAt) && now.Before(e.ExpiresAt)
}

// Cache is a keyed store with expiry.
type Cache[V any] interface {
	// Get returns (value, found, stale) where stale indicates the value is
	// past its fresh window but still usable.
	Get(key string) (V, bool, bool)

	// Set stores a value that is fresh until it expires.
	Set(key string, value V, ttl time.Duration)

	// SetWithStale stores a value that turns stale after staleAfter and
	// expires after expireAfter.
	SetWithStale(key string, value V, staleAfter, expireAfter time.Duration)

	// Invalidate removes an entry.
	Invalidate(key string)

	// InvalidatePrefix removes every entry whose key starts with prefix.
	InvalidatePrefix(prefix string)

	// InvalidateAll removes all entries.
	InvalidateAll()
}

// MemoryCache is an in-memory Cache with background cleanup of expired entries.
type MemoryCache[V any] struct {
	mu      sync.RWMutex
	entries map[string]*Entry[V]

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// NewMemoryCache creates a cache and starts its cleanup goroutine.
// Call Stop to release it.
func NewMemoryCache[V any]() *MemoryCache[V] {
	return NewMemoryCacheWithInterval[V](time.Minute)
}

// NewMemoryCacheWithInterval is like NewMemoryCache with a custom cleanup interval.
func NewMemoryCacheWithInterval[V any](interval time.Duration) *MemoryCache[V] {
	if interval <= 0 {
		interval = time.Minute
	}
	c := &MemoryCache[V]{
		entries:         make(map[string]*Entry[V]),
		cleanupInterval: interval,
		stopCleanup:     make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Get retrieves a value. Expired entries are removed and reported as missing.
func (c *MemoryCache[V]) Get(key string) (V, bool, bool) {
	var zero V

	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return zero, false, false
	}

	if entry.IsExpired() {
		c.Invalidate(key)
		return zero, false, false
	}

	return entry.Value, true, entry.IsStale()
}

// Set stores a value with the given TTL
func (c *MemoryCache[V]) Set(key string, value V, ttl time.Duration) {
	c.SetWithStale(key, value, ttl, ttl)
}

// SetWithStale stores a value with separate stale and expire times
func (c *MemoryCache[V]) SetWithStale(key string, value V, staleAfter, expireAfter time.Duration) {
	now := time.Now()
	entry := &Entry[V]{
		Value:     value,
		StaleAt:   now.Add(staleAfter),
		ExpiresAt: now.Add(expireAfter),
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// Invalidate removes an entry from the cache
func (c *MemoryCache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidatePrefix removes all entries whose key has the given prefix.
func (c *MemoryCache[V]) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

// InvalidateAll removes all entries from the cache
func (c *MemoryCache[V]) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]*Entry[V])
	c.mu.Unlock()
}

func (c *MemoryCache[V]) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *MemoryCache[V]) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
		}
	}
}

// Stop stops the background cleanup goroutine.
// Safe to call multiple times.
func (c *MemoryCache[V]) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCleanup)
	})
}

// Len returns the number of entries in the cache, expired ones included.
func (c *MemoryCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

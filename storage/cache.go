// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package storage provides the transient snapshot cache. Nothing here
// survives a process restart; every entry is TTL-bounded.
package storage

import (
	"context"
	"sync"
	"time"

	"github.com/votrix/tapo-energy-gateway/pkg/logger"
	"github.com/votrix/tapo-energy-gateway/pkg/metrics"
)

const defaultSweepInterval = time.Minute

// SnapshotCache maps opaque string keys to the last known snapshot value.
// Values are never inspected; expiry is relative to write time. Reads past
// expiry behave as a logical delete; the background sweep only exists for
// memory hygiene.
type SnapshotCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// NewSnapshotCache creates an empty snapshot cache.
func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{
		entries: make(map[string]cacheEntry),
	}
}

// Set stores a value under key for ttl. A later write for the same key is a
// pure overwrite; there is no read-modify-write anywhere.
func (c *SnapshotCache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	metrics.CacheEntries.Set(float64(len(c.entries)))

	logger.Debug().
		Str("key", key).
		Dur("ttl", ttl).
		Msg("Snapshot cached")
}

// Get returns the unexpired value stored under key. An expired entry is
// removed on the way out and reported as a miss.
func (c *SnapshotCache) Get(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		// re-check under the write lock; a fresher Set may have raced in
		if current, ok := c.entries[key]; ok && time.Now().After(current.expiresAt) {
			delete(c.entries, key)
			metrics.CacheEntries.Set(float64(len(c.entries)))
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

// Len returns the number of entries currently held, expired ones included
// until the next sweep or read touches them.
func (c *SnapshotCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Run sweeps expired entries until the context is cancelled. A non-positive
// interval falls back to the default.
func (c *SnapshotCache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Snapshot cache sweeper shutting down")
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep removes every expired entry.
func (c *SnapshotCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	metrics.CacheEntries.Set(float64(len(c.entries)))

	if removed > 0 {
		logger.Debug().Int("count", removed).Msg("Swept expired snapshot cache entries")
	}
}

// Package leaderboard implements tag-scoped idea rankings: vote capture
// with toggle semantics, live aggregation, persisted snapshots and a
// short-lived in-memory cache in front of both.
package leaderboard

import (
	"sync"
	"time"
)

// Cache is a TTL cache of ranked results keyed by tagsKey. It is an
// explicit dependency of the Service rather than package state so tests
// and multiple service instances control their own copies.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	ranked    []RankedIdea
	expiresAt time.Time
}

// NewCache creates a cache whose entries live for ttl.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached ranking for key, or false when absent or expired.
func (c *Cache) Get(key string) ([]RankedIdea, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.ranked, true
}

// Set stores a ranking under key.
func (c *Cache) Set(key string, ranked []RankedIdea) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{ranked: ranked, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate drops the entry for key, if any.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

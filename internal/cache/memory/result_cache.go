// Package memory provides an in-process scan result cache for single-instance
// deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

type entry struct {
	value     domain.ScanResult
	expiresAt time.Time
}

// ResultCache is a TTL map of scan results. Expired entries are dropped
// lazily on read and by Sweep.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewResultCache returns an empty cache that uses the wall clock.
func NewResultCache() *ResultCache {
	return &ResultCache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (c *ResultCache) WithClock(now func() time.Time) *ResultCache {
	c.now = now
	return c
}

// Get returns the cached result for key if it exists and has not expired.
func (c *ResultCache) Get(_ context.Context, key string) (domain.ScanResult, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return domain.ScanResult{}, false
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		if cur, still := c.entries[key]; still && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return domain.ScanResult{}, false
	}
	return e.value, true
}

// Set stores value under key for ttl. A non-positive ttl stores nothing.
func (c *ResultCache) Set(_ context.Context, key string, value domain.ScanResult, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Sweep removes every expired entry and reports how many were dropped.
func (c *ResultCache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len reports the number of stored entries, including expired ones not yet
// swept.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ domain.ResultCache = (*ResultCache)(nil)

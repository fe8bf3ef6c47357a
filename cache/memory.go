package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryCache provides thread-safe in-memory storage with per-key expiry.
// It is suitable for single-instance deployments and tests; state is not
// shared across processes.
type MemoryCache struct {
	mu        sync.Mutex
	entries   map[string]memoryEntry
	namespace string
	now       func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// Ensure MemoryCache implements Cache interface
var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates a new in-memory cache. Keys are stored under namespace.
func NewMemoryCache(namespace string) *MemoryCache {
	return &MemoryCache{
		entries:   make(map[string]memoryEntry),
		namespace: namespace,
		now:       time.Now,
	}
}

// WithClock replaces the time source (for testing expiry).
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	return c
}

// Get retrieves the value for a given key
func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := Key(c.namespace, key)
	entry, ok := c.entries[k]
	if !ok {
		return "", false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, k)
		return "", false, nil
	}
	return entry.value, true, nil
}

// Set stores the value for a given key
func (c *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[Key(c.namespace, key)] = memoryEntry{value: value, expiresAt: c.now().Add(ttl)}
	return nil
}

// SetNX stores the value only when no live entry exists for key.
func (c *MemoryCache) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	k := Key(c.namespace, key)
	now := c.now()
	if entry, ok := c.entries[k]; ok && now.Before(entry.expiresAt) {
		return false, nil
	}
	c.entries[k] = memoryEntry{value: value, expiresAt: now.Add(ttl)}
	return true, nil
}

// Delete removes the value for a given key
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, Key(c.namespace, key))
	c.mu.Unlock()
	return nil
}

// Len returns the number of entries, including expired ones not yet evicted.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear removes all entries under this cache's namespace.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := Key(c.namespace, "")
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}

// Sweep evicts expired entries and returns how many were removed.
func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// StartJanitor starts a goroutine that periodically sweeps expired entries.
// Call the returned function to stop it.
func (c *MemoryCache) StartJanitor(interval time.Duration) func() {
	if interval <= 0 {
		return func() {}
	}

	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				c.Sweep()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}

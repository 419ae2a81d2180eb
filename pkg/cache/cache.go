package cache

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Entry represents a cached price with the time it was fetched
type Entry struct {
	Price     decimal.Decimal
	FetchedAt time.Time
}

// Cache provides thread-safe price caching with TTL support. An entry is
// stale once its age reaches the TTL; stale entries are treated as misses
// and swept periodically.
type Cache struct {
	data   map[string]*Entry
	mutex  sync.RWMutex
	ttl    time.Duration
	stopCh chan struct{}
}

// New creates a new Cache instance with the specified TTL
func New(ttl time.Duration) *Cache {
	c := &Cache{
		data:   make(map[string]*Entry),
		ttl:    ttl,
		stopCh: make(chan struct{}),
	}

	go c.cleanup()

	return c
}

// Get retrieves a value from the cache if it exists and hasn't gone stale
func (c *Cache) Get(key string) (decimal.Decimal, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.data[key]
	if !exists {
		return decimal.Zero, false
	}

	if time.Since(entry.FetchedAt) >= c.ttl {
		return decimal.Zero, false
	}

	return entry.Price, true
}

// Set stores a value in the cache with the current timestamp
func (c *Cache) Set(key string, price decimal.Decimal) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = &Entry{
		Price:     price,
		FetchedAt: time.Now(),
	}
}

// Delete removes a key from the cache
func (c *Cache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
}

// Clear removes all entries from the cache
func (c *Cache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data = make(map[string]*Entry)
}

// Size returns the number of entries in the cache
func (c *Cache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.data)
}

// cleanup runs periodically to remove stale entries
func (c *Cache) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeStale()
		case <-c.stopCh:
			return
		}
	}
}

// removeStale removes all stale entries from the cache
func (c *Cache) removeStale() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	for key, entry := range c.data {
		if now.Sub(entry.FetchedAt) >= c.ttl {
			delete(c.data, key)
		}
	}
}

// Stop stops the cleanup goroutine
func (c *Cache) Stop() {
	close(c.stopCh)
}

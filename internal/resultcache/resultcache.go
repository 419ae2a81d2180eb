// Package resultcache stores finished aggregation results per
// (user, tier, chain, address) so repeat queries inside the freshness
// window skip the upstream fetch entirely.
package resultcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Tad-z/BlockTrace-api/internal/models"
)

// Store caches aggregation results with a per-entry TTL.
type Store interface {
	// Get returns the cached result for the key, if present and fresh.
	Get(ctx context.Context, user, tier, chain, address string) (*models.AggregationResult, bool, error)

	// Set stores result under the key for ttl.
	Set(ctx context.Context, user, tier, chain, address string, result *models.AggregationResult, ttl time.Duration) error
}

func cacheKey(user, tier, chain, address string) string {
	return fmt.Sprintf("result:%s:%s:%s:%s", user, tier, chain, address)
}

type memoryEntry struct {
	result    models.AggregationResult
	expiresAt time.Time
}

// MemoryStore is a process-local Store for tests and deployments without
// Redis.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, user, tier, chain, address string) (*models.AggregationResult, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[cacheKey(user, tier, chain, address)]
	s.mu.RUnlock()

	if !ok || s.now().After(entry.expiresAt) {
		return nil, false, nil
	}

	// Copy so callers cannot mutate the cached value.
	result := entry.result
	return &result, true, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, user, tier, chain, address string, result *models.AggregationResult, ttl time.Duration) error {
	key := cacheKey(user, tier, chain, address)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Opportunistic sweep keeps the map from accumulating dead entries.
	now := s.now()
	for k, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, k)
		}
	}

	s.entries[key] = memoryEntry{result: *result, expiresAt: now.Add(ttl)}
	return nil
}

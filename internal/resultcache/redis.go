package resultcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Tad-z/BlockTrace-api/internal/models"
)

// RedisStore is the shared Store backed by Redis with native key expiry.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore wraps client into a Store.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, user, tier, chain, address string) (*models.AggregationResult, bool, error) {
	data, err := s.client.Get(ctx, cacheKey(user, tier, chain, address)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("result cache get: %w", err)
	}

	var result models.AggregationResult
	if err := json.Unmarshal(data, &result); err != nil {
		// A corrupt entry behaves like a miss; it will be overwritten.
		return nil, false, nil
	}
	return &result, true, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, user, tier, chain, address string, result *models.AggregationResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("result cache marshal: %w", err)
	}

	if err := s.client.Set(ctx, cacheKey(user, tier, chain, address), data, ttl).Err(); err != nil {
		return fmt.Errorf("result cache set: %w", err)
	}
	return nil
}

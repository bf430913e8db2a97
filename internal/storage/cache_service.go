package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheService is a read-through cache for snapshot range responses. It is
// nil-safe: a nil *CacheService behaves like a permanent miss, so callers
// never branch on whether Redis is configured.
type CacheService struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewCacheService creates a new cache service
func NewCacheService(redis *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{
		redis: redis,
		ttl:   ttl,
	}
}

const snapshotKeyPrefix = "snapshots"

// RangeKey builds the cache key for a range/resolution read.
// Format: snapshots:<range>:<resolution>
func RangeKey(timeRange, resolution string) string {
	return fmt.Sprintf("%s:%s:%s", snapshotKeyPrefix, timeRange, resolution)
}

// Get retrieves a cached value into dest; the first return reports a hit.
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c == nil || c.redis == nil {
		return false, nil
	}
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return true, nil
}

// Set stores a value under the configured TTL.
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	if c == nil || c.redis == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.redis.Set(ctx, key, data, c.ttl)
}

// InvalidateSnapshots drops every cached range response. Called after a
// successful snapshot insert.
func (c *CacheService) InvalidateSnapshots(ctx context.Context) error {
	if c == nil || c.redis == nil {
		return nil
	}
	return c.redis.DelPattern(ctx, snapshotKeyPrefix+":*")
}

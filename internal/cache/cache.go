// Package cache provides a Redis-backed read-through cache with TTL and
// pattern invalidation for list and feed responses. Cache failures
// always degrade to a fresh fetch; the cache is never on the request's
// failure path.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is applied when a caller passes a non-positive TTL.
const DefaultTTL = 5 * time.Minute

// scanBatchSize bounds how many keys one SCAN iteration returns during
// pattern invalidation.
const scanBatchSize = 100

// Cache is a thin wrapper over a Redis client. A nil *Cache (or a Cache
// built from a nil client) is valid and disables caching entirely, so
// callers never have to branch on whether Redis is configured.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// New creates a Cache. client may be nil to disable caching.
func New(client *redis.Client, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		client: client,
		logger: logger,
	}
}

// enabled reports whether the cache is usable.
func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

// GetOrSet returns the cached JSON value for key, or invokes fetch,
// stores its result with the TTL, and returns it. dest must be a
// pointer; fetch's result is round-tripped through JSON either way so
// hits and misses produce identical shapes.
func (c *Cache) GetOrSet(ctx context.Context, key string, ttl time.Duration, dest any, fetch func(ctx context.Context) (any, error)) error {
	if !c.enabled() {
		return c.fetchInto(ctx, dest, fetch)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	cached, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		if err := json.Unmarshal(cached, dest); err == nil {
			return nil
		}
		// Corrupt entry: fall through to a fresh fetch and overwrite.
		c.logger.Warn("discarding corrupt cache entry", "key", key)
	} else if err != redis.Nil {
		c.logger.Warn("cache read failed", "key", key, "error", err)
	}

	fresh, err := fetch(ctx)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(fresh)
	if err != nil {
		return fmt.Errorf("failed to encode value for cache: %w", err)
	}

	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}

	return json.Unmarshal(raw, dest)
}

// fetchInto runs fetch and decodes its result into dest via JSON.
func (c *Cache) fetchInto(ctx context.Context, dest any, fetch func(ctx context.Context) (any, error)) error {
	fresh, err := fetch(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(fresh)
	if err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}
	return json.Unmarshal(raw, dest)
}

// InvalidatePattern deletes every key matching the glob pattern using
// SCAN, so invalidation never blocks Redis the way KEYS would. Errors
// are logged, not returned: invalidation is best-effort and stale
// entries age out via TTL anyway.
func (c *Cache) InvalidatePattern(ctx context.Context, pattern string) {
	if !c.enabled() {
		return
	}

	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			c.logger.Warn("cache invalidation scan failed", "pattern", pattern, "error", err)
			return
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.logger.Warn("cache invalidation delete failed", "pattern", pattern, "error", err)
				return
			}
			deleted += len(keys)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	if deleted > 0 {
		c.logger.Debug("cache invalidated", "pattern", pattern, "keys", deleted)
	}
}

// OwnerListPattern is the invalidation pattern for one owner's cached
// list responses.
func OwnerListPattern(ownerID int64) string {
	return fmt.Sprintf("lists:%d*", ownerID)
}

// OwnerListKey is the cache key for one owner's full ranking list.
func OwnerListKey(ownerID int64) string {
	return fmt.Sprintf("lists:%d:ranking", ownerID)
}

// ShopReviewsPattern is the invalidation pattern for a shop's cached
// review responses.
func ShopReviewsPattern(shopID int64) string {
	return fmt.Sprintf("shop:%d:reviews:*", shopID)
}

// Package cache is an optional Redis cache-aside layer for dashboard
// queries. A nil or disabled Cache turns every operation into a no-op.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL applies when no TTL is configured.
const DefaultTTL = 5 * time.Minute

const keyPrefix = "vidtrend:"

// Client is the subset of the Redis client used by Cache.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Cache stores JSON-encoded query results.
type Cache struct {
	rdb    Client
	closer func() error
	ttl    time.Duration
	logger *slog.Logger
}

// New connects to redisURL. An empty URL or a failed connection returns a
// disabled cache and logs why; caching is never required for correctness.
func New(ctx context.Context, redisURL string, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if redisURL == "" {
		logger.Info("redis: no URL configured, caching disabled")
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("redis: invalid URL, caching disabled", "error", err)
		return nil
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis: connection failed, caching disabled", "error", err)
		_ = rdb.Close()
		return nil
	}
	logger.Info("redis: connected, caching enabled", "ttl", ttl)
	c := NewWithClient(rdb, ttl, logger)
	c.closer = rdb.Close
	return c
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{rdb: rdb, ttl: ttl, logger: logger}
}

// Key joins parts into a namespaced cache key.
func Key(parts ...string) string {
	return keyPrefix + strings.Join(parts, ":")
}

// Get decodes the value at key into dst. It reports false on a miss, a
// disabled cache or any Redis error.
func (c *Cache) Get(ctx context.Context, key string, dst any) bool {
	if c == nil || c.rdb == nil {
		return false
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.logger.Warn("cache read failed", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.Warn("cache entry undecodable", "key", key, "error", err)
		return false
	}
	return true
}

// Set stores v at key with the cache TTL.
func (c *Cache) Set(ctx context.Context, key string, v any) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	return c.rdb.Set(ctx, key, data, c.ttl).Err()
}

// Delete removes keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if c == nil || c.rdb == nil || len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// Generation returns the current token of scope, minting one on first use.
// Keys that embed it go stale together once Invalidate drops the token. A
// disabled cache returns "".
func (c *Cache) Generation(ctx context.Context, scope string) string {
	if c == nil || c.rdb == nil {
		return ""
	}
	key := Key("gen", scope)
	var gen string
	if c.Get(ctx, key, &gen) && gen != "" {
		return gen
	}
	gen = ulid.Make().String()
	if err := c.Set(ctx, key, gen); err != nil {
		c.logger.Warn("cache generation write failed", "scope", scope, "error", err)
	}
	return gen
}

// Invalidate retires every key built from scope's current generation.
func (c *Cache) Invalidate(ctx context.Context, scope string) error {
	return c.Delete(ctx, Key("gen", scope))
}

// Close releases the connection if New opened it.
func (c *Cache) Close() error {
	if c == nil || c.closer == nil {
		return nil
	}
	return c.closer()
}

// Fetch is cache-aside: it returns the cached value at key or calls load,
// caching a successful result. Write failures are logged and ignored.
func Fetch[T any](ctx context.Context, c *Cache, key string, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if c.Get(ctx, key, &cached) {
		return cached, nil
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if err := c.Set(ctx, key, v); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
	return v, nil
}

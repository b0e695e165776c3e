package spatial

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// missMarker stands in for "no region" since redis cannot store a nil value
// distinguishable from an absent key.
const missMarker = "-"

// RedisCache shares lookup results between server instances.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache creates a cache on an existing client. Keys are namespaced by prefix.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if prefix == "" {
		prefix = "pinmap:lookup:"
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

// OpenRedis opens a client for addr. An empty addr returns nil.
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// Get implements Cache. Redis errors are logged and treated as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		c.log().Warn("Lookup cache read failed", "key", key, "error", err)
		return "", false
	}
	if val == missMarker {
		return "", true
	}
	return val, true
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, id string) {
	if id == "" {
		id = missMarker
	}
	if err := c.client.Set(ctx, c.prefix+key, id, c.ttl).Err(); err != nil {
		c.log().Warn("Lookup cache write failed", "key", key, "error", err)
	}
}

func (c *RedisCache) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}

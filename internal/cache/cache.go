// Package cache stores JSON values in Redis under a key prefix with a TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL applies when New is given a non-positive TTL.
const DefaultTTL = 24 * time.Hour

// Cache is a typed view over a Redis keyspace. Keys are trimmed and
// lower-cased so lookups are case-insensitive.
type Cache[T any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New constructs a Cache storing values under prefix.
func New[T any](client *redis.Client, prefix string, ttl time.Duration) *Cache[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[T]{client: client, prefix: prefix, ttl: ttl}
}

func (c *Cache[T]) key(k string) string {
	return c.prefix + strings.ToLower(strings.TrimSpace(k))
}

// Get retrieves a cached value.
// Returns nil, nil on a cache miss (not an error).
func (c *Cache[T]) Get(ctx context.Context, k string) (*T, error) {
	val, err := c.client.Get(ctx, c.key(k)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get for %s: %w", c.key(k), err)
	}

	var v T
	if err := json.Unmarshal([]byte(val), &v); err != nil {
		return nil, fmt.Errorf("unmarshaling cached value for %s: %w", c.key(k), err)
	}

	return &v, nil
}

// Set stores v with the configured TTL. A nil v is ignored.
func (c *Cache[T]) Set(ctx context.Context, k string, v *T) error {
	if v == nil {
		return nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling value for %s: %w", c.key(k), err)
	}

	if err := c.client.Set(ctx, c.key(k), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set for %s: %w", c.key(k), err)
	}

	return nil
}

// Delete removes a cached value. Missing keys are not an error.
func (c *Cache[T]) Delete(ctx context.Context, k string) error {
	if err := c.client.Del(ctx, c.key(k)).Err(); err != nil {
		return fmt.Errorf("cache delete for %s: %w", c.key(k), err)
	}
	return nil
}

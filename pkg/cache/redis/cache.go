package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

var errRedisNil = redis.Nil

// Cache is a generic, prefix-namespaced, TTL-bound view over a Client.
type Cache[T any] struct {
	client *Client
	prefix string
	ttl    time.Duration
}

// NewCache returns a Cache storing values of type T under keys namespaced
// by prefix, each entry expiring after ttl.
func NewCache[T any](client *Client, prefix string, ttl time.Duration) *Cache[T] {
	return &Cache[T]{client: client, prefix: prefix, ttl: ttl}
}

// Set serializes value as JSON and stores it under key.
func (c *Cache[T]) Set(ctx context.Context, key string, value *T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	if err := c.client.redis.Set(ctx, c.namespacedKey(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

// Get retrieves and deserializes the value stored under key, or
// ErrCacheMiss if it is absent or expired.
func (c *Cache[T]) Get(ctx context.Context, key string) (*T, error) {
	data, err := c.client.redis.Get(ctx, c.namespacedKey(key)).Bytes()
	if errors.Is(err, errRedisNil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return &value, nil
}

// namespacedKey hashes the caller-supplied key so prefixes with unrelated
// keyspaces never collide regardless of key content.
func (c *Cache[T]) namespacedKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return c.prefix + ":" + hex.EncodeToString(sum[:])
}

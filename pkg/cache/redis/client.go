// Package redis wraps a go-redis client with the connection lifecycle and a
// generic typed cache used by the knowledge store to persist fix-pattern
// success rates across process restarts.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Client owns the underlying redis.Client and its connection lifecycle.
type Client struct {
	redis  *redis.Client
	logger *logrus.Entry
}

// NewClient builds a Client from redis connection options.
func NewClient(opts *redis.Options, logger *logrus.Entry) *Client {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		redis:  redis.NewClient(opts),
		logger: logger.WithField("component", "redis"),
	}
}

// EnsureConnection verifies connectivity with a PING.
func (c *Client) EnsureConnection(ctx context.Context) error {
	if err := c.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.redis.Close()
}

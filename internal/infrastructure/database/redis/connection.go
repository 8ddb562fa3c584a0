// internal/infrastructure/database/redis/connection.go
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
)

const pingTimeout = 3 * time.Second

// Client owns the shared go-redis client used for cart persistence,
// the checkout lock and rate limiting
type Client struct {
	rdb  *redis.Client
	addr string
}

// Options maps the redis section of the configuration to client options
func Options(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	}
}

// NewConnection dials Redis and fails unless the server answers a ping
func NewConnection(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*Client, error) {
	opts := Options(cfg.Redis)
	c := &Client{rdb: redis.NewClient(opts), addr: opts.Addr}

	if err := c.Health(ctx); err != nil {
		c.rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", c.addr, err)
	}

	logger.WithFields(logrus.Fields{
		"addr": c.addr,
		"db":   opts.DB,
	}).Info("Redis connection established")

	return c, nil
}

// GetClient returns the underlying go-redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Health pings the server
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

// Close releases the connection pool
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Package redis manages the Redis client lifecycle backing the shared window
// counter store.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rlgprojects/admission/internal/config"
	"github.com/rlgprojects/admission/pkg/logger"
)

// Connection manages the Redis client and its health.
type Connection struct {
	cfg    config.RedisConfig
	client *redis.Client
	logger logger.Logger
}

// NewConnection creates a connection manager. Connect must be called before
// the client is usable.
func NewConnection(cfg config.RedisConfig, log logger.Logger) *Connection {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &Connection{
		cfg:    cfg,
		logger: log.WithComponent("redis"),
	}
}

// Connect establishes the connection pool and verifies it with a ping.
func (c *Connection) Connect(ctx context.Context) error {
	if c.client != nil {
		return nil
	}

	opts := &redis.Options{
		Addr:         c.cfg.Addr,
		Password:     c.cfg.Password,
		DB:           c.cfg.DB,
		PoolSize:     c.cfg.PoolSize,
		MinIdleConns: c.cfg.MinIdleConns,

		// The counter store runs on the request path; fail fast rather than
		// queue behind a slow broker.
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		MaxRetries:   1,
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 10
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	c.client = client
	c.logger.Info(ctx, "redis connection established",
		logger.String("addr", c.cfg.Addr),
		logger.Int("pool_size", opts.PoolSize),
	)
	return nil
}

// Client returns the connected client, nil before Connect.
func (c *Connection) Client() *redis.Client {
	return c.client
}

// Ping checks connectivity.
func (c *Connection) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("redis connection not initialized")
	}
	return c.client.Ping(ctx).Err()
}

// HealthCheck reports connectivity, latency, and pool statistics.
func (c *Connection) HealthCheck(ctx context.Context) (map[string]interface{}, error) {
	if c.client == nil {
		return nil, fmt.Errorf("redis connection not initialized")
	}

	health := make(map[string]interface{})

	start := time.Now()
	err := c.client.Ping(ctx).Err()
	health["connected"] = err == nil
	health["latency_ms"] = time.Since(start).Milliseconds()
	if err != nil {
		health["error"] = err.Error()
		return health, err
	}

	stats := c.client.PoolStats()
	health["total_conns"] = stats.TotalConns
	health["idle_conns"] = stats.IdleConns
	health["pool_timeouts"] = stats.Timeouts

	return health, nil
}

// Close releases the connection pool.
func (c *Connection) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

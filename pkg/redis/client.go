// Package redis holds the indexer's Redis integrations: a lease that keeps
// rebuilds single-writer across processes (lock.go) and invalidation of
// search results cached against the previous index (invalidate.go).
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/config"
	"github.com/redis/go-redis/v9"
)

const defaultDialTimeout = 5 * time.Second

// Client is the connection shared by the run lock and the cache
// invalidator.
type Client struct {
	rdb  *redis.Client
	addr string
}

// NewClient connects to cfg.Addr and fails fast when the server does not
// answer within the dial timeout.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	opts := options(cfg)
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb, addr: cfg.Addr}, nil
}

func options(cfg config.RedisConfig) *redis.Options {
	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = defaultDialTimeout
	}
	return &redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: dial,
		ClientName:  "positional-indexer",
	}
}

// Ping is the health probe used by preflight and /readyz.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pinging redis at %s: %w", c.addr, err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Package redis holds the Redis connection used to share scheduler state
// between the scheduler and API processes.
package redis

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultDialTimeout = 5 * time.Second

type Config struct {
	Host        string
	Port        int
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

// Enabled reports whether a Redis host was configured at all. Redis is
// optional; without it the status board is off.
func (c Config) Enabled() bool {
	return c.Host != ""
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) options() *redis.Options {
	dial := c.DialTimeout
	if dial <= 0 {
		dial = defaultDialTimeout
	}
	return &redis.Options{
		Addr:         c.Addr(),
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		DialTimeout:  dial,
		ReadTimeout:  dial / 2,
		WriteTimeout: dial / 2,
		PoolTimeout:  dial,
	}
}

type Client struct {
	*redis.Client
}

// NewClient connects and pings within the dial timeout.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	opts := cfg.options()
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}
	return &Client{Client: rdb}, nil
}

func (c *Client) Close() error {
	if c == nil || c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

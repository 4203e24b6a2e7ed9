package redisclient

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/alphazero/academy/core"
)

// Client wraps the go-redis client with health checking.
type Client struct {
	*redis.Client
}

// New connects to the configured Redis server.
// It returns a nil client when no URL is configured.
func New(ctx context.Context, conf core.RedisConfig) (*Client, error) {
	if conf.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(conf.URL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	opts.PoolSize = conf.PoolSize
	opts.MinIdleConns = conf.MinIdleConns
	opts.DialTimeout = conf.DialTimeout
	opts.ReadTimeout = conf.ReadTimeout
	opts.WriteTimeout = conf.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return &Client{Client: client}, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

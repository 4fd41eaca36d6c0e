package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/carematch/pkg/config"
	"github.com/zatekoja/carematch/pkg/retry"
)

// Redis backs optional features (caching, match events), so callers give up on it
// much sooner than on PostgreSQL.
var connectPolicy = retry.Config{
	MaxAttempts:     3,
	InitialDelay:    200 * time.Millisecond,
	MaxDelay:        time.Second,
	BackoffFactor:   2.0,
	MaxTotalTimeout: 10 * time.Second,
}

// Client wraps the go-redis client shared by the cache adapter and the event bus
type Client struct {
	client *redis.Client
}

// NewClient connects to Redis, retrying briefly before giving up
func NewClient(cfg *config.RedisConfig) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	})

	err := retry.DoWithLog(context.Background(), connectPolicy, "Redis",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout+time.Second)
			defer cancel()
			return client.Ping(ctx).Err()
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("Redis connection attempt failed")
		},
	)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info().Str("addr", cfg.RedisAddr()).Int("pool_size", cfg.PoolSize).Msg("connected to Redis")
	return &Client{client: client}, nil
}

// NewClientFromRedis wraps an existing go-redis client, e.g. one pointed at miniredis
func NewClientFromRedis(client *redis.Client) *Client {
	return &Client{client: client}
}

func (c *Client) Client() *redis.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Ping backs the /health dependency check
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

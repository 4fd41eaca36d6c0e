package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zatekoja/carematch/internal/domain/providers"
	redisclient "github.com/zatekoja/carematch/internal/infrastructure/clients/redis"
)

// KeyNamespace prefixes every key this service writes so the Redis instance can be shared
const KeyNamespace = "carematch:"

const scanBatchSize = 200

// RedisAdapter stores provider lookups and cached HTTP responses in Redis
type RedisAdapter struct {
	rdb *redis.Client
}

func NewRedisAdapter(client *redisclient.Client) providers.CacheProvider {
	return &RedisAdapter{rdb: client.Client()}
}

func (a *RedisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := a.rdb.Get(ctx, KeyNamespace+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, providers.ErrCacheMiss
	case err != nil:
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}
	return value, nil
}

// Set stores value for expirationSeconds; zero or less keeps it until deleted
func (a *RedisAdapter) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	var ttl time.Duration
	if expirationSeconds > 0 {
		ttl = time.Duration(expirationSeconds) * time.Second
	}
	if err := a.rdb.Set(ctx, KeyNamespace+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (a *RedisAdapter) Delete(ctx context.Context, key string) error {
	if err := a.rdb.Unlink(ctx, KeyNamespace+key).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %w", key, err)
	}
	return nil
}

// DeletePattern walks the keyspace with SCAN and unlinks matches batch by batch, so
// invalidating every cached nearby search never blocks Redis.
func (a *RedisAdapter) DeletePattern(ctx context.Context, pattern string) error {
	iter := a.rdb.Scan(ctx, 0, KeyNamespace+pattern, scanBatchSize).Iterator()
	batch := make([]string, 0, scanBatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := a.rdb.Unlink(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("cache delete %s: %w", pattern, err)
		}
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan %s: %w", pattern, err)
	}
	return flush()
}

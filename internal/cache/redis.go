package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultNamespace = "cache:"
	clearBatchSize   = 500
)

// RedisCache stores entries under a key namespace of a shared Redis client.
type RedisCache struct {
	client    *redis.Client
	namespace string
}

// NewRedisCache wraps client. All keys are prefixed with "cache:" so that
// Clear never touches rate limiter state living in the same database.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, namespace: defaultNamespace}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.namespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET: %w", err)
	}
	return val, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := c.client.Set(ctx, c.namespace+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.namespace+key).Err()
}

// Clear deletes every key of the namespace with SCAN + DEL batches.
func (c *RedisCache) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.namespace+"*", clearBatchSize).Result()
		if err != nil {
			return fmt.Errorf("redis SCAN: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis DEL: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Close is a no-op: the client is owned by the caller that created it.
func (c *RedisCache) Close() error {
	return nil
}

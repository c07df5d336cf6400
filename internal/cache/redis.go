// Package cache wraps a Redis client behind a small port so the rest of
// the pipeline never imports go-redis directly.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the key-value capability consumed by the idempotency gate, rate
// limiter, limits service, and AML engine. Every method is designed to be
// idempotent or safe to call repeatedly from any of them.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRemRangeByScore(ctx context.Context, key string, min, max float64) error
	ZCard(ctx context.Context, key string) (int64, error)
	LPush(ctx context.Context, key string, value string) error
	LTrim(ctx context.Context, key string, start, stop int64) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
}

// Config mirrors ademajagon-gopay-service's redis.Config: a minimal
// address/password/db triple plus the pool tuning baked into NewClient.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// RedisCache implements Cache over redis/go-redis/v9.
type RedisCache struct {
	client redis.UniversalClient
}

func NewClient(cfg Config) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     20,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
}

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func Ping(ctx context.Context, client redis.UniversalClient) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis GET %s: %w", key, err)
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SETNX %s: %w", key, err)
	}
	return ok, nil
}

func (c *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis INCR %s: %w", key, err)
	}
	return n, nil
}

func (c *RedisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("redis EXPIRE %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) ZAdd(ctx context.Context, key string, score float64, member string) error {
	if err := c.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err(); err != nil {
		return fmt.Errorf("redis ZADD %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) ZRemRangeByScore(ctx context.Context, key string, min, max float64) error {
	minStr := fmt.Sprintf("%f", min)
	maxStr := fmt.Sprintf("%f", max)
	if err := c.client.ZRemRangeByScore(ctx, key, minStr, maxStr).Err(); err != nil {
		return fmt.Errorf("redis ZREMRANGEBYSCORE %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) ZCard(ctx context.Context, key string) (int64, error) {
	n, err := c.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis ZCARD %s: %w", key, err)
	}
	return n, nil
}

func (c *RedisCache) LPush(ctx context.Context, key string, value string) error {
	if err := c.client.LPush(ctx, key, value).Err(); err != nil {
		return fmt.Errorf("redis LPUSH %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) LTrim(ctx context.Context, key string, start, stop int64) error {
	if err := c.client.LTrim(ctx, key, start, stop).Err(); err != nil {
		return fmt.Errorf("redis LTRIM %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vals, err := c.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis LRANGE %s: %w", key, err)
	}
	return vals, nil
}

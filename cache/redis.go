package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache provides Redis-backed storage shared by every service instance.
type RedisCache struct {
	client    redis.UniversalClient
	namespace string
}

// Ensure RedisCache implements Cache interface
var _ Cache = (*RedisCache)(nil)

// RedisConfig for creating a Redis cache
type RedisConfig struct {
	Addrs        []string      // One address for a single node, several for a cluster
	Password     string        // Redis password (empty for no auth)
	DB           int           // Redis database number (ignored by clusters)
	DialTimeout  time.Duration // Default: 2s
	ReadTimeout  time.Duration // Default: 500ms
	WriteTimeout time.Duration // Default: 500ms
	Namespace    string        // Prefix for every key
}

// NewRedisCache creates a new Redis-backed cache
func NewRedisCache(config RedisConfig) *RedisCache {
	dial := config.DialTimeout
	if dial == 0 {
		dial = 2 * time.Second
	}
	read := config.ReadTimeout
	if read == 0 {
		read = 500 * time.Millisecond
	}
	write := config.WriteTimeout
	if write == 0 {
		write = 500 * time.Millisecond
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        config.Addrs,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  dial,
		ReadTimeout:  read,
		WriteTimeout: write,
	})

	return NewRedisCacheFromClient(client, config.Namespace)
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client redis.UniversalClient, namespace string) *RedisCache {
	return &RedisCache{
		client:    client,
		namespace: namespace,
	}
}

// Get retrieves the value for a given key
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, Key(c.namespace, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis GET %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores the value for a given key
func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	if err := c.client.Set(ctx, Key(c.namespace, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

// SetNX stores the value only if the key does not exist (SET NX PX).
func (c *RedisCache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}
	ok, err := c.client.SetNX(ctx, Key(c.namespace, key), value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SETNX %s: %w", key, err)
	}
	return ok, nil
}

// Delete removes the value for a given key
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, Key(c.namespace, key)).Err(); err != nil {
		return fmt.Errorf("redis DEL %s: %w", key, err)
	}
	return nil
}

// Clear removes every key under this cache's namespace
func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, Key(c.namespace, "*"), 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis DEL %s: %w", iter.Val(), err)
		}
	}
	return iter.Err()
}

// Ping checks if Redis connection is alive
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

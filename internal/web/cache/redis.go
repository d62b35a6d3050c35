package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache keeps entries in Redis so that every admin instance sees the
// same sessions
type RedisCache struct {
	client redis.UniversalClient
	config CacheConfig
}

// NewRedisCache creates a cache over client; the caller keeps ownership of
// the connection settings but Close closes the client
func NewRedisCache(client redis.UniversalClient, config CacheConfig) *RedisCache {
	return &RedisCache{client: client, config: config}
}

// Client exposes the connection for other Redis-backed stores
func (r *RedisCache) Client() redis.UniversalClient {
	return r.client
}

func (r *RedisCache) key(k string) string {
	return r.config.Prefix + k
}

// Get returns ErrCacheMiss for absent and expired keys
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss{Key: key}
	}
	return value, err
}

// Set stores value for ttl; zero selects DefaultTTL and a negative ttl keeps
// the entry until deleted
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	switch {
	case ttl == 0:
		ttl = r.config.DefaultTTL
	case ttl < 0:
		ttl = 0
	}
	return r.client.Set(ctx, r.key(key), value, ttl).Err()
}

// Delete removes key; deleting an absent key is not an error
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	return r.client.Close()
}

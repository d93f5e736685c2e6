package declarest

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisDialTimeout = 5 * time.Second

// RedisOptions configures the networked cache backend.
type RedisOptions struct {
	Host     string
	Port     int
	Password string
	DB       int
	// KeyPrefix namespaces every key written by this instance. Clear only
	// removes keys under it, never the whole database.
	KeyPrefix string
}

// RedisCache is a Cache backed by a Redis server. Expiry and atomicity are
// delegated to the backend. It is safe for concurrent use.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache connects to Redis and verifies connectivity eagerly, so an
// unreachable backend fails at construction rather than on the first call.
func NewRedisCache(opts RedisOptions) (*RedisCache, error) {
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	if opts.Port == 0 {
		opts.Port = 6379
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "declarest:"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, &CacheError{Op: "connect", Cause: err}
	}

	return &RedisCache{rdb: rdb, prefix: opts.KeyPrefix}, nil
}

func (c *RedisCache) key(key string) string {
	return c.prefix + key
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, &CacheError{Op: "get", Key: key, Cause: err}
	}
	return value, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := c.rdb.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return &CacheError{Op: "set", Key: key, Cause: err}
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, c.key(key)).Err(); err != nil {
		return &CacheError{Op: "delete", Key: key, Cause: err}
	}
	return nil
}

func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, c.key(key)).Result()
	if err != nil {
		return false, &CacheError{Op: "exists", Key: key, Cause: err}
	}
	return n > 0, nil
}

// Clear removes every key under this instance's prefix using SCAN, so other
// tenants of the same database are left untouched.
func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return &CacheError{Op: "clear", Key: iter.Val(), Cause: err}
		}
	}
	if err := iter.Err(); err != nil {
		return &CacheError{Op: "clear", Cause: err}
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

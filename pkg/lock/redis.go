package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX, shared across service instances
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLocker creates a Redis-backed locker. Keys are namespaced with prefix.
func NewRedisLocker(client redis.UniversalClient, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

// NewRedisClient parses a redis:// URL and verifies the server answers
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Acquire takes the lock for key for at most ttl
func (r *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	fullKey := r.prefix + key
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", fullKey, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	return &redisLock{client: r.client, key: fullKey, token: token}, nil
}

type redisLock struct {
	client redis.UniversalClient
	key    string
	token  string
}

func (l *redisLock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return nil
}

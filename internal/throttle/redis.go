package throttle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces throttle keys in Redis.
// Example: "throttle:TTR-01:ops:0"
const KeyPrefix = "throttle"

// MinTTL is how long a firing is remembered unless the rule's throttle
// window is longer.
const MinTTL = 24 * time.Hour

// RedisStore shares firing times between gateway instances.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(initCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func redisKey(key string) string {
	return KeyPrefix + ":" + key
}

func (s *RedisStore) LastFired(ctx context.Context, key string) (time.Time, bool, error) {
	val, err := s.client.Get(ctx, redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read throttle %q: %w", key, err)
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt throttle %q: %w", key, err)
	}
	return time.UnixMilli(ms), true, nil
}

// expiry keeps an entry past the end of its throttle window.
func expiry(window time.Duration) time.Duration {
	if window+time.Minute > MinTTL {
		return window + time.Minute
	}
	return MinTTL
}

func (s *RedisStore) MarkFired(ctx context.Context, key string, at time.Time, window time.Duration) error {
	if err := s.client.Set(ctx, redisKey(key), at.UnixMilli(), expiry(window)).Err(); err != nil {
		return fmt.Errorf("write throttle %q: %w", key, err)
	}
	return nil
}

// HealthCheck pings the Redis server.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

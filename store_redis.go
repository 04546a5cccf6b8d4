package memo

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the part of *redis.Client the redis driver calls. Any
// redis.UniversalClient satisfies it.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// redisStore namespaces records as "<prefix>:<key>" and lets redis expire them.
type redisStore struct {
	client     RedisClient
	namespace  string
	defaultTTL time.Duration
}

func newRedisStore(cfg StoreConfig) *redisStore {
	return &redisStore{client: cfg.RedisClient, namespace: cfg.Prefix + ":", defaultTTL: cfg.DefaultTTL}
}

func (*redisStore) Driver() Driver { return DriverRedis }

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	body, err := s.client.Get(ctx, s.namespace+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return body, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	return s.client.Set(ctx, s.namespace+key, value, ttl).Err()
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.namespace+key).Err()
}

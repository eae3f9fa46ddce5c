package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/behrlich/spot-solver/pkg/solver"
)

const redisPrefix = "spot:"

// RedisStore keeps each solution as one string value under "spot:<key>".
// A zero TTL keeps entries until they are overwritten.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// OpenRedis connects using a redis:// URL
func OpenRedis(ctx context.Context, url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, persistErr("ping", "redis", err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) Save(ctx context.Context, key string, sol *solver.Solution) error {
	blob, err := Marshal(sol)
	if err != nil {
		return errors.Wrapf(err, "save %s", key)
	}
	if err := s.client.Set(ctx, redisPrefix+key, blob, s.ttl).Err(); err != nil {
		return persistErr("set", key, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, key string) (*solver.Solution, error) {
	blob, err := s.client.Get(ctx, redisPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errors.Wrapf(ErrSpotNotFound, "load %s", key)
	}
	if err != nil {
		return nil, persistErr("get", key, err)
	}
	sol, err := Unmarshal(blob)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", key)
	}
	return sol, nil
}

// Delete removes key; deleting a missing key is not an error
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisPrefix+key).Err(); err != nil {
		return persistErr("del", key, err)
	}
	return nil
}

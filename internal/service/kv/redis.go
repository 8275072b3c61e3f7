package kv

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type (
	RedisStore struct {
		rdb *redis.Client
	}
)

func NewRedis(rdb *redis.Client) *RedisStore {
	return &RedisStore{
		rdb: rdb,
	}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value string) error {
	return r.rdb.Set(ctx, key, value, 0).Err()
}

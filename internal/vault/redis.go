package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBackend keeps each vault store in one redis hash.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend connects to redis and checks the connection.
func NewRedisBackend(ctx context.Context, cfg RedisConfig) (*RedisBackend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "authcore:vault:"
	}
	return &RedisBackend{client: client, prefix: prefix}, nil
}

func (b *RedisBackend) OpenStore(_ context.Context, name string) (KeyValueStore, error) {
	if name == "" {
		return nil, errStoreNameRequired
	}
	return &redisStore{client: b.client, hash: b.prefix + name}, nil
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}

type redisStore struct {
	client *redis.Client
	hash   string
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.client.HGet(ctx, s.hash, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte) error {
	return s.client.HSet(ctx, s.hash, key, value).Err()
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	return s.client.HDel(ctx, s.hash, key).Err()
}

func (s *redisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.hash).Err()
}

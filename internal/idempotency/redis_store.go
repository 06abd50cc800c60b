package idempotency

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "tarot:idempotency:"

// RedisStore shares claimed keys between bot instances. Keys expire with their TTL.
type RedisStore struct {
	client redis.UniversalClient
	log    *slog.Logger
}

func NewRedisStore(client redis.UniversalClient, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{client: client, log: log.With(slog.String("store", "redis"))}
}

// Claim stores key with SET NX; the value records when the update was first seen.
func (s *RedisStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, redisKeyPrefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		s.log.Error("claim key", slog.String("key", key), slog.Any("error", err))
	}
	return ok, err
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	err := s.client.Del(ctx, redisKeyPrefix+key).Err()
	if err != nil {
		s.log.Error("release key", slog.String("key", key), slog.Any("error", err))
	}
	return err
}

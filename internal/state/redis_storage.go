package state

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stateKeyPrefix = "tarot:state:"
	scanBatch      = 100
)

// RedisStorage keeps one JSON document per sender under tarot:state:<id>.
type RedisStorage struct {
	client redis.UniversalClient
	ttl    time.Duration
	log    *slog.Logger
}

// NewRedisStorage initializes a Redis-backed Storage. A zero ttl keeps states until cleared.
func NewRedisStorage(client redis.UniversalClient, ttl time.Duration, log *slog.Logger) *RedisStorage {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStorage{client: client, ttl: ttl, log: log.With(slog.String("storage", "redis"))}
}

// GetState returns the stored user state or ErrStateNotFound when absent.
func (s *RedisStorage) GetState(ctx context.Context, userID int64) (*UserState, error) {
	raw, err := s.client.Get(ctx, redisUserStateKey(userID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrStateNotFound
	case err != nil:
		s.log.Error("read state", "user_id", userID, "error", err)
		return nil, err
	}

	st, err := decodeState(raw)
	if err != nil {
		s.log.Error("decode state", "user_id", userID, "error", err)
		return nil, err
	}
	return st, nil
}

func (s *RedisStorage) SetState(ctx context.Context, userID int64, st *UserState) error {
	st.UpdatedAt = time.Now().UTC()

	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, redisUserStateKey(userID), raw, s.ttl).Err(); err != nil {
		s.log.Error("write state", "user_id", userID, "error", err)
		return err
	}
	return nil
}

func (s *RedisStorage) ClearState(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, redisUserStateKey(userID)).Err(); err != nil {
		s.log.Error("clear state", "user_id", userID, "error", err)
		return err
	}
	return nil
}

// GetAllStates walks the state keyspace with SCAN and loads each batch with one MGET.
// Keys that expire between the two calls are skipped.
func (s *RedisStorage) GetAllStates(ctx context.Context) ([]*UserState, error) {
	var result []*UserState

	iter := s.client.Scan(ctx, 0, stateKeyPrefix+"*", scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		values, err := s.client.MGet(ctx, batch...).Result()
		if err != nil {
			return err
		}
		for i, v := range values {
			raw, ok := v.(string)
			if !ok {
				continue
			}
			st, err := decodeState([]byte(raw))
			if err != nil {
				s.log.Warn("skipping undecodable state", "key", batch[i], "error", err)
				continue
			}
			result = append(result, st)
		}
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				s.log.Error("load states", "error", err)
				return nil, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		s.log.Error("scan states", "error", err)
		return nil, err
	}
	if err := flush(); err != nil {
		s.log.Error("load states", "error", err)
		return nil, err
	}

	return result, nil
}

func decodeState(raw []byte) (*UserState, error) {
	var st UserState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func redisUserStateKey(userID int64) string {
	return stateKeyPrefix + strconv.FormatInt(userID, 10)
}

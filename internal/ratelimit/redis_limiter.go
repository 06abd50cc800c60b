package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "tarot:ratelimit:"

// slidingWindow keeps request timestamps (ms) in a sorted set. Rejected
// requests are not recorded, so a blocked sender frees up once the oldest
// accepted request ages out.
//
// Returns {allowed, count, oldest}.
var slidingWindow = redis.NewScript(`
local key    = KEYS[1]
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit  = tonumber(ARGV[3])

redis.call("ZREMRANGEBYSCORE", key, "-inf", "(" .. (now - window))

local count = redis.call("ZCARD", key)
local allowed = 0
if count < limit then
  redis.call("ZADD", key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call("PEXPIRE", key, window * 2)

local oldest = now
local first = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
if #first > 0 then
  oldest = tonumber(first[2])
end

return {allowed, count, oldest}
`)

// RedisLimiter implements Limiter on a Redis sliding window, so limits hold
// across restarts and bot instances.
type RedisLimiter struct {
	client redis.UniversalClient
	log    *slog.Logger
	now    func() time.Time
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client redis.UniversalClient, log *slog.Logger) *RedisLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &RedisLimiter{client: client, log: log, now: time.Now}
}

func (l *RedisLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if l.client == nil {
		return nil, errors.New("redis client is not configured for rate limiting")
	}

	now := l.now()
	if limit <= 0 {
		return &Result{ResetAt: now.Add(window)}, ErrLimitExceeded
	}

	reply, err := slidingWindow.Run(ctx, l.client,
		[]string{redisKeyPrefix + key},
		now.UnixMilli(), window.Milliseconds(), limit, uuid.NewString(),
	).Int64Slice()
	if err == nil && len(reply) != 3 {
		err = fmt.Errorf("unexpected sliding window reply %v", reply)
	}
	if err != nil {
		l.log.Error("rate limit script failed", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}

	allowed, count, oldest := reply[0] == 1, int(reply[1]), reply[2]
	res := &Result{
		Allowed:   allowed,
		Remaining: max(limit-count, 0),
		ResetAt:   time.UnixMilli(oldest).Add(window),
	}

	if !allowed {
		return res, ErrLimitExceeded
	}
	return res, nil
}

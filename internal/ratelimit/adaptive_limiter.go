package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	backendChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_backend_checks_total",
		Help: "Rate limit checks by backend and result.",
	}, []string{"backend", "result"})

	redisErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_redis_errors_total",
		Help: "Redis errors that sent the limiter to its in-memory fallback.",
	})
)

// AdaptiveLimiter delegates to a primary (Redis) limiter and falls back to
// a stricter in-memory limiter when the primary fails.
type AdaptiveLimiter struct {
	primary  Limiter
	fallback Limiter
	log      *slog.Logger
}

// NewAdaptiveLimiter creates a limiter that adapts between Redis and in-memory backends.
func NewAdaptiveLimiter(primary, fallback Limiter, log *slog.Logger) *AdaptiveLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &AdaptiveLimiter{
		primary:  primary,
		fallback: fallback,
		log:      log,
	}
}

// Check evaluates the limit using the primary backend, falling back to memory on errors.
func (a *AdaptiveLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	result, err := a.primary.Check(ctx, key, limit, window)
	if err == nil || errors.Is(err, ErrLimitExceeded) {
		backendChecksTotal.WithLabelValues("redis", resultLabel(err)).Inc()
		return result, err
	}

	redisErrorsTotal.Inc()
	a.log.Warn("redis limiter failed, falling back to in-memory", slog.String("key", key), slog.Any("error", err))

	fallbackLimit := limit / 2
	if fallbackLimit <= 0 {
		fallbackLimit = 1
	}

	result, err = a.fallback.Check(ctx, key, fallbackLimit, window)
	if err == nil || errors.Is(err, ErrLimitExceeded) {
		backendChecksTotal.WithLabelValues("fallback", resultLabel(err)).Inc()
	}
	return result, err
}

func resultLabel(err error) string {
	if err == nil {
		return "allowed"
	}
	return "rejected"
}

package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/Proton-105/tarot-bot/internal/lifecycle"
)

// NewCleaner returns a worker that forgets keys idle for longer than maxAge.
// Redis-backed windows expire on their own.
func NewCleaner(limiter *MemoryLimiter, maxAge, interval time.Duration, log *slog.Logger) func(ctx context.Context) {
	if log == nil {
		log = slog.Default()
	}

	return lifecycle.Every(interval, func(context.Context) {
		if removed := limiter.Cleanup(maxAge); removed > 0 {
			log.Debug("idle rate limit keys dropped", slog.Int("count", removed))
		}
	})
}

package idempotency

import (
	"context"
	"log/slog"
	"time"

	"github.com/Proton-105/tarot-bot/internal/lifecycle"
)

// NewCleaner returns a worker that sweeps expired keys out of store every interval.
// Redis expires keys on its own and needs no cleaner.
func NewCleaner(store *MemoryStore, log *slog.Logger, interval time.Duration) func(ctx context.Context) {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = time.Hour
	}

	return lifecycle.Every(interval, func(context.Context) {
		if removed := store.Sweep(); removed > 0 {
			log.Debug("expired idempotency keys dropped", slog.Int("count", removed))
		}
	})
}

package lifecycle

import (
	"context"
	"time"
)

// Every returns a worker that calls fn once per interval until ctx is done.
// A non-positive interval yields a worker that returns immediately.
func Every(interval time.Duration, fn func(ctx context.Context)) func(ctx context.Context) {
	return func(ctx context.Context) {
		if interval <= 0 || fn == nil {
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}
}

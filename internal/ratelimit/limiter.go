// Package ratelimit throttles updates per Telegram user with sliding windows.
package ratelimit

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"
)

// Result is the outcome of one Check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter rounds the wait until ResetAt up to whole seconds, never below one.
func (r *Result) RetryAfter(now time.Time) int {
	if r == nil {
		return 1
	}
	secs := int(math.Ceil(r.ResetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Limiter counts one request against key and reports whether it fits in the window.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// ErrLimitExceeded is returned together with a non-nil Result when the window is full.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// UserKey is the limiter key for a Telegram user.
func UserKey(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}

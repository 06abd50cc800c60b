package ratelimit

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// MemoryLimiter keeps a sliding window of request timestamps per key in
// process memory. It serves single-instance deployments and the Redis fallback.
type MemoryLimiter struct {
	mu     sync.Mutex
	events map[string][]time.Time
	log    *slog.Logger
	now    func() time.Time
}

func NewMemoryLimiter(log *slog.Logger) *MemoryLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &MemoryLimiter{events: make(map[string][]time.Time), log: log, now: time.Now}
}

// Check records a request for key unless limit requests already fall inside window.
func (m *MemoryLimiter) Check(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	events := dropBefore(m.events[key], now.Add(-window))
	allowed := len(events) < limit
	if allowed {
		events = append(events, now)
	}
	m.events[key] = events

	res := &Result{
		Allowed:   allowed,
		Remaining: max(limit-len(events), 0),
		ResetAt:   now,
	}
	if len(events) > 0 {
		res.ResetAt = events[0].Add(window)
	}

	if !allowed {
		return res, ErrLimitExceeded
	}
	return res, nil
}

// Cleanup forgets keys whose newest request is older than maxAge and returns how many were dropped.
func (m *MemoryLimiter) Cleanup(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, events := range m.events {
		if len(events) == 0 || events[len(events)-1].Before(cutoff) {
			delete(m.events, key)
			removed++
		}
	}
	return removed
}

// dropBefore removes timestamps older than start. events is sorted ascending.
func dropBefore(events []time.Time, start time.Time) []time.Time {
	i := sort.Search(len(events), func(i int) bool { return !events[i].Before(start) })
	if i == 0 {
		return events
	}
	return append(events[:0], events[i:]...)
}

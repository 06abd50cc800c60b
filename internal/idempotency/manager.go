// Package idempotency makes sure a Telegram update is handled at most once,
// even when Telegram redelivers it after a restart or a webhook timeout.
package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrDuplicateUpdate is returned when the key was already claimed.
var ErrDuplicateUpdate = errors.New("update already processed")

// DefaultTTL covers Telegram's redelivery window.
const DefaultTTL = 24 * time.Hour

type Operation func(ctx context.Context) error

// Store remembers claimed keys for a limited time.
type Store interface {
	// Claim reports false when key is already held.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type Manager interface {
	// Execute runs fn unless key was seen within the TTL.
	Execute(ctx context.Context, key string, fn Operation) error
}

type manager struct {
	store Store
	ttl   time.Duration
	log   *slog.Logger
}

func NewManager(store Store, ttl time.Duration, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &manager{
		store: store,
		ttl:   ttl,
		log:   log,
	}
}

func (m *manager) Execute(ctx context.Context, key string, fn Operation) error {
	if fn == nil {
		return errors.New("operation fn cannot be nil")
	}

	claimed, err := m.store.Claim(ctx, key, m.ttl)
	if err != nil {
		// a broken store must not stop the bot from answering
		m.log.Warn("idempotency store unavailable, running without dedup", slog.String("key", key), slog.Any("error", err))
		return fn(ctx)
	}
	if !claimed {
		return ErrDuplicateUpdate
	}

	if err := fn(ctx); err != nil {
		// let a redelivery retry the failed update
		if releaseErr := m.store.Release(ctx, key); releaseErr != nil {
			m.log.Warn("failed to release idempotency key", slog.String("key", key), slog.Any("error", releaseErr))
		}
		return err
	}

	return nil
}

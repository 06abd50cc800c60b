package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gopkg.in/telebot.v3"

	"github.com/Proton-105/tarot-bot/internal/i18n"
	"github.com/Proton-105/tarot-bot/internal/ratelimit"
	"github.com/Proton-105/tarot-bot/pkg/metrics"
)

// RateLimitMiddleware enforces per-user rate limits for incoming Telegram updates.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	rules   *ratelimit.Rules
	catalog *i18n.Manager
	log     *slog.Logger
}

// NewRateLimitMiddleware constructs a rate-limit middleware component.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, catalog *i18n.Manager, log *slog.Logger) *RateLimitMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimitMiddleware{
		limiter: limiter,
		rules:   rules,
		catalog: catalog,
		log:     log,
	}
}

// Handle returns a telebot middleware that enforces per-user rate limits.
// Limiter failures let the update through.
func (m *RateLimitMiddleware) Handle(next telebot.HandlerFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		if m.limiter == nil || m.rules == nil {
			return next(c)
		}

		sender := c.Sender()
		if sender == nil {
			return next(c)
		}

		userID := sender.ID
		if m.rules.IsWhitelisted(userID) {
			return next(c)
		}

		limit, window, err := m.rules.GetPerUserLimit()
		if err != nil {
			m.log.Error("failed to load per-user rate limit", slog.Int64("user_id", userID), slog.Any("error", err))
			return next(c)
		}

		result, err := m.limiter.Check(context.Background(), ratelimit.UserKey(userID), limit, window)
		switch {
		case errors.Is(err, ratelimit.ErrLimitExceeded):
		case err != nil:
			metrics.RecordRateLimit("error")
			m.log.Warn("rate limiter error", slog.Int64("user_id", userID), slog.Any("error", err))
			return next(c)
		}

		if result != nil && !result.Allowed {
			metrics.RecordRateLimit("limited")
			m.log.Warn("rate limit exceeded", slog.Int64("user_id", userID))

			retry := result.RetryAfter(time.Now())
			msg := m.catalog.Translator(sender.LanguageCode).Tf("errors.rate_limited", retry)
			if c.Callback() != nil {
				return c.Respond(&telebot.CallbackResponse{Text: msg, ShowAlert: true})
			}
			return c.Send(msg)
		}

		metrics.RecordRateLimit("allowed")
		return next(c)
	}
}

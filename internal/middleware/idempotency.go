package middleware

import (
	"context"
	"errors"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tarot-bot/internal/bot/handlers"
	"github.com/Proton-105/tarot-bot/internal/idempotency"
)

// Idempotency drops updates Telegram delivers twice. A nil manager disables it.
func Idempotency(manager idempotency.Manager, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if manager == nil || next == nil {
			return next
		}

		return func(c telebot.Context) error {
			key := updateKey(c)
			if key == "" {
				return next(c)
			}

			err := manager.Execute(handlers.RequestContext(c), key, func(context.Context) error {
				return next(c)
			})
			if errors.Is(err, idempotency.ErrDuplicateUpdate) {
				log.Info("duplicate update skipped", slog.String("key", key))
				return nil
			}
			return err
		}
	}
}

// updateKey prefers the update id. Contexts built without one fall back to the
// callback id or the message coordinates.
func updateKey(c telebot.Context) string {
	if c == nil {
		return ""
	}

	if id := c.Update().ID; id != 0 {
		return idempotency.UpdateKey(id)
	}

	switch cb, msg := c.Callback(), c.Message(); {
	case cb != nil && cb.ID != "":
		return idempotency.GenerateKey("cb", cb.ID)
	case msg != nil && msg.ID != 0 && msg.Chat != nil:
		return idempotency.GenerateKey("msg", msg.Chat.ID, msg.ID)
	case msg != nil && msg.ID != 0:
		return idempotency.GenerateKey("msg", int64(0), msg.ID)
	}
	return ""
}

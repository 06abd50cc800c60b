package bot

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tarot-bot/internal/bot/handlers"
	errors "github.com/Proton-105/tarot-bot/internal/errors"
	"github.com/Proton-105/tarot-bot/internal/i18n"
	"github.com/Proton-105/tarot-bot/internal/user"
	"github.com/Proton-105/tarot-bot/pkg/logger"
	"github.com/Proton-105/tarot-bot/pkg/metrics"
)

// RecoveryMiddleware catches panics, reports them via the centralized handler, and notifies the user.
func RecoveryMiddleware(log *slog.Logger, errHandler *errors.Handler, catalog *i18n.Manager) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))

					key := errors.UnknownErrorKey
					var args []any
					if errHandler != nil {
						appErr := errors.NewDatabaseError(fmt.Errorf("panic recovered: %v", r))
						appErr.Severity = errors.SeverityCritical
						key, args = errHandler.Handle(handlers.RequestContext(c), appErr)
					}
					metrics.RecordError("panic", string(errors.SeverityCritical))

					notifyUser(c, handlers.Translator(c, catalog).Tf(key, args...), log)
					err = nil
				}
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware centralizes error reporting and user messaging for handler failures.
func ErrorHandlingMiddleware(errHandler *errors.Handler, catalog *i18n.Manager, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			key, args := errors.UnknownErrorKey, []any(nil)
			if errHandler != nil {
				key, args = errHandler.Handle(handlers.RequestContext(c), err)
			}

			code, severity := "unknown", string(errors.SeverityHigh)
			var appErr *errors.AppError
			if stderrors.As(err, &appErr) {
				code, severity = appErr.Code, string(appErr.Severity)
			}
			metrics.RecordError(code, severity)

			notifyUser(c, handlers.Translator(c, catalog).Tf(key, args...), log)
			return nil
		}
	}
}

// notifyUser shows msg as a callback alert, or as a chat message for text updates.
func notifyUser(c telebot.Context, msg string, log *slog.Logger) {
	if c == nil || msg == "" {
		return
	}

	if c.Callback() != nil {
		c.Set(handlers.KeyResponded, true)
		if err := c.Respond(&telebot.CallbackResponse{Text: msg, ShowAlert: true}); err == nil {
			return
		}
	}

	if err := c.Send(msg); err != nil {
		log.Warn("failed to deliver error message", slog.Any("error", err))
	}
}

// LoggingMiddleware attaches a correlation id to the update and logs basic telemetry.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			start := time.Now()
			ctx := logger.WithCorrelationID(context.Background())
			c.Set(handlers.KeyContext, ctx)

			userID := int64(0)
			if c.Sender() != nil {
				userID = c.Sender().ID
			}

			action := "text"
			if cb := c.Callback(); cb != nil {
				action = cb.Data
			} else if cmd, _ := handlers.ParseCommand(c.Text()); cmd != "" {
				action = cmd
			}

			attrs := []any{
				slog.Int64("user_id", userID),
				slog.String("action", action),
				slog.String("correlation_id", logger.CorrelationIDFromContext(ctx)),
			}

			log.DebugContext(ctx, "handling update", attrs...)
			err := next(c)
			log.InfoContext(ctx, "handled update",
				append(attrs, slog.Duration("duration", time.Since(start)), slog.Any("error", err))...,
			)

			return err
		}
	}
}

// RegistrationMiddleware makes sure every sender has a user record and picks their catalog.
func RegistrationMiddleware(users *user.Service, catalog *i18n.Manager, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			sender := c.Sender()
			if sender == nil {
				return next(c)
			}

			c.Set(handlers.KeyTranslator, catalog.Translator(sender.LanguageCode))

			if users != nil {
				u, err := users.Register(handlers.RequestContext(c), sender)
				if err != nil {
					log.Error("failed to register user", slog.Int64("user_id", sender.ID), slog.Any("error", err))
					return err
				}
				c.Set(handlers.KeyUser, u)
			}

			return next(c)
		}
	}
}

package errors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/tarot-bot/pkg/logger"
)

// UnknownErrorKey is the user message for errors outside the taxonomy.
const UnknownErrorKey = "errors.unknown"

// Handler turns handler failures into log records, Sentry events and user message keys.
type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	if log == nil {
		log = slog.Default()
	}

	return &Handler{log: log, sentryEnabled: sentryEnabled}
}

// Handle logs err, reports serious ones to Sentry and returns the i18n key
// (with format args) that should be shown to the user.
func (h *Handler) Handle(ctx context.Context, err error) (string, []any) {
	if err == nil {
		return "", nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	appErr := classify(err)
	serious := appErr.Severity == SeverityHigh || appErr.Severity == SeverityCritical

	attrs := []slog.Attr{
		slog.String("message", err.Error()),
		slog.String("severity", string(appErr.Severity)),
	}
	if appErr.Code != "" {
		attrs = append(attrs, slog.String("code", appErr.Code))
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		attrs = append(attrs, slog.String("correlation_id", id))
	}

	level, msg := slog.LevelWarn, "application error"
	if appErr.Code == "" {
		msg = "unknown error"
	}
	if serious {
		level = slog.LevelError
	}
	h.log.LogAttrs(ctx, level, msg, attrs...)

	if h.sentryEnabled && serious {
		capture(err, appErr)
	}

	if appErr.UserMessage == "" {
		return UnknownErrorKey, nil
	}
	return appErr.UserMessage, appErr.UserArgs
}

// classify returns the AppError inside err, or a high severity placeholder for foreign errors.
func classify(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr
	}

	return &AppError{Severity: SeverityHigh, cause: err}
}

func capture(err error, appErr *AppError) {
	sentry.WithScope(func(scope *sentry.Scope) {
		if appErr.Code != "" {
			scope.SetTag("code", appErr.Code)
		}
		scope.SetTag("severity", string(appErr.Severity))
		sentry.CaptureException(err)
	})
}

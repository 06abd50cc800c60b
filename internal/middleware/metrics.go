package middleware

import (
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tarot-bot/internal/bot/handlers"
	"github.com/Proton-105/tarot-bot/internal/bot/keyboard"
	apperrors "github.com/Proton-105/tarot-bot/internal/errors"
	"github.com/Proton-105/tarot-bot/pkg/metrics"
)

// Command outcome labels.
const (
	StatusOK       = "ok"
	StatusRejected = "rejected"
	StatusError    = "error"
)

// Metrics reports handler latency and outcome to Prometheus. Refusals such as
// validation, forbidden or wrong-state errors count as rejected.
func Metrics(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		start := time.Now()
		err := next(c)
		metrics.RecordCommand(commandLabel(c), outcome(err), time.Since(start))
		return err
	}
}

func outcome(err error) string {
	if err == nil {
		return StatusOK
	}

	if apperrors.IsRejection(err) {
		return StatusRejected
	}
	return StatusError
}

// commandLabel keeps label cardinality bounded: ids and free text are dropped.
func commandLabel(c telebot.Context) string {
	switch {
	case c == nil:
		return "unknown"
	case c.Callback() != nil:
		if unique, _, err := keyboard.DecodeCallback(c.Callback().Data); err == nil {
			return unique
		}
		return "unknown"
	}

	if cmd, _ := handlers.ParseCommand(c.Text()); cmd != "" {
		return cmd
	}
	if c.Text() != "" {
		return "text"
	}
	return "unknown"
}

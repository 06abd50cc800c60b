package handlers

import (
	"context"
	"errors"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tarot-bot/internal/domain"
	"github.com/Proton-105/tarot-bot/internal/i18n"
)

// Keys under which middlewares store per-update values in telebot.Context.
const (
	KeyContext    = "request_ctx"
	KeyUser       = "user"
	KeyTranslator = "translator"
	KeyResponded  = "callback_responded"
)

// RequestContext returns the context attached by the logging middleware.
func RequestContext(c telebot.Context) context.Context {
	if c != nil {
		if ctx, ok := c.Get(KeyContext).(context.Context); ok && ctx != nil {
			return ctx
		}
	}
	return context.Background()
}

// CurrentUser returns the registered sender, if the registration middleware ran.
func CurrentUser(c telebot.Context) *domain.User {
	if c == nil {
		return nil
	}
	u, _ := c.Get(KeyUser).(*domain.User)
	return u
}

// Translator picks the catalog for the sender's Telegram language.
func Translator(c telebot.Context, m *i18n.Manager) i18n.Translator {
	if c != nil {
		if t, ok := c.Get(KeyTranslator).(i18n.Translator); ok && t != nil {
			return t
		}
		if sender := c.Sender(); sender != nil {
			return m.Translator(sender.LanguageCode)
		}
	}
	return m.Default()
}

// ParseCommand splits "/cmd@bot arg1 arg2" into "/cmd" and its arguments.
// It returns an empty command for text that is not a command.
func ParseCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}

	cmd := fields[0]
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), fields[1:]
}

// reply edits the callback message in place, or sends a new message for text updates.
func reply(c telebot.Context, text string, opts ...interface{}) error {
	if c.Callback() == nil || c.Callback().Message == nil {
		return c.Send(text, opts...)
	}

	err := c.Edit(text, opts...)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, telebot.ErrSameMessageContent),
		strings.Contains(err.Error(), "message is not modified"):
		return nil
	default:
		// messages older than 48h cannot be edited
		return c.Send(text, opts...)
	}
}

// Ack answers the callback query so the client stops its progress indicator.
func Ack(c telebot.Context) {
	if c.Callback() == nil {
		return
	}
	if responded, _ := c.Get(KeyResponded).(bool); responded {
		return
	}
	c.Set(KeyResponded, true)
	_ = c.Respond()
}

func senderID(c telebot.Context) int64 {
	if c == nil || c.Sender() == nil {
		return 0
	}
	return c.Sender().ID
}

package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tarot-bot/internal/bot/keyboard"
	"github.com/Proton-105/tarot-bot/internal/i18n"
	"github.com/Proton-105/tarot-bot/internal/question"
	"github.com/Proton-105/tarot-bot/internal/state"
	"github.com/Proton-105/tarot-bot/internal/user"
)

// Handler processes bot commands.
type Handler func(c telebot.Context) error

// CallbackHandler processes inline callback events.
type CallbackHandler func(c telebot.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

// Deps holds the services shared by all handlers.
type Deps struct {
	Questions *question.Service
	Users     *user.Service
	FSM       state.StateMachine
	Keyboard  *keyboard.Builder
	I18n      *i18n.Manager
	Log       *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Log == nil {
		return slog.Default()
	}
	return d.Log
}

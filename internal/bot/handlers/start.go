package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"
)

// NewStartHandler resets the conversation and shows the role-dependent main menu.
// It also serves the "back to start" button.
func NewStartHandler(d Deps) Handler {
	log := d.logger()

	return func(c telebot.Context) error {
		userID := senderID(c)
		if userID == 0 {
			log.Warn("start handler invoked without sender")
			return nil
		}

		ctx := RequestContext(c)
		if err := d.FSM.ClearState(ctx, userID); err != nil {
			log.Error("failed to reset user state", slog.Int64("user_id", userID), slog.Any("error", err))
			return err
		}

		t := Translator(c, d.I18n)
		defer Ack(c)
		return reply(c, t.T("menu.welcome"), d.Keyboard.MainMenu(t, d.Users.IsAdmin(userID)))
	}
}

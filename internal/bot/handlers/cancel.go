package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"
)

// NewCancelHandler drops any pending question or answer and returns the user to the main menu.
func NewCancelHandler(d Deps) Handler {
	log := d.logger()

	return func(c telebot.Context) error {
		userID := senderID(c)
		if userID == 0 {
			log.Warn("cancel handler invoked without sender context")
			return nil
		}

		ctx := RequestContext(c)
		if err := d.FSM.ClearState(ctx, userID); err != nil {
			log.Error("failed to clear user state", slog.Int64("user_id", userID), slog.Any("error", err))
			return err
		}

		t := Translator(c, d.I18n)
		defer Ack(c)

		if err := reply(c, t.T("cancel.done")); err != nil {
			log.Error("failed to notify user about cancellation", slog.Int64("user_id", userID), slog.Any("error", err))
			return err
		}

		return c.Send(t.T("menu.welcome"), d.Keyboard.MainMenu(t, d.Users.IsAdmin(userID)))
	}
}

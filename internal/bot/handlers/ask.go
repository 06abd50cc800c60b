package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tarot-bot/internal/state"
)

// NewAskHandler puts the sender into the "asking" state and prompts for the question text.
func NewAskHandler(d Deps) CallbackHandler {
	return func(c telebot.Context) error {
		userID := senderID(c)
		if err := d.FSM.TransitionTo(RequestContext(c), userID, state.StateAskingQuestion, nil); err != nil {
			return stateError(err)
		}

		t := Translator(c, d.I18n)
		defer Ack(c)
		return reply(c, t.T("ask.prompt"), d.Keyboard.CancelButton(t))
	}
}

// NewQuestionTextHandler submits the text a user sends while in the "asking" state.
// The state is kept when the text is rejected so the user can simply resend it.
func NewQuestionTextHandler(d Deps) Handler {
	log := d.logger()

	return func(c telebot.Context) error {
		userID := senderID(c)
		ctx := RequestContext(c)

		id, err := d.Questions.Submit(ctx, userID, c.Text())
		if err != nil {
			return err
		}

		if err := d.FSM.ClearState(ctx, userID); err != nil {
			log.Warn("failed to clear state after submission", slog.Int64("user_id", userID), slog.Any("error", err))
		}

		t := Translator(c, d.I18n)
		return c.Send(t.Tf("ask.accepted", id), d.Keyboard.BackButton(t))
	}
}

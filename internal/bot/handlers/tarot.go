package handlers

import (
	"errors"
	"log/slog"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tarot-bot/internal/domain"
	"github.com/Proton-105/tarot-bot/internal/state"
)

// NewTarotDashboardHandler lists questions waiting for a reader. It serves both the
// "I am a reader" button and the "tarot_page:<n>" pagination buttons.
func NewTarotDashboardHandler(d Deps) CallbackHandler {
	return func(c telebot.Context) error {
		userID := senderID(c)
		ctx := RequestContext(c)
		t := Translator(c, d.I18n)

		page := 1
		if cb := c.Callback(); cb != nil {
			if n, err := strconv.Atoi(callbackPayload(cb.Data)); err == nil {
				page = n
			}
		}

		items, err := d.Questions.AnswerQueue(ctx, userID)
		if err != nil {
			if errors.Is(err, domain.ErrForbidden) {
				defer Ack(c)
				return reply(c, t.T("tarot.not_reader"), d.Keyboard.BackButton(t))
			}
			return err
		}

		defer Ack(c)
		if len(items) == 0 {
			return reply(c, t.T("tarot.empty"), d.Keyboard.BackButton(t))
		}

		markup, _ := d.Keyboard.TarotDashboard(t, items, page)
		return reply(c, t.Tf("tarot.available", len(items)), markup)
	}
}

// NewAnswerSelectHandler opens question "answer:<id>" for the reader and waits for the answer text.
func NewAnswerSelectHandler(d Deps) CallbackHandler {
	return func(c telebot.Context) error {
		userID := senderID(c)
		ctx := RequestContext(c)

		questionID, err := parseID(callbackPayload(c.Callback().Data))
		if err != nil {
			return err
		}

		q, err := d.Questions.OpenForAnswer(ctx, userID, questionID)
		if err != nil {
			return err
		}

		err = d.FSM.TransitionTo(ctx, userID, state.StateAnsweringQuestion, map[string]interface{}{
			state.KeyQuestionID: q.ID,
		})
		if err != nil {
			return stateError(err)
		}

		t := Translator(c, d.I18n)
		defer Ack(c)
		return reply(c, t.Tf("answer.prompt", q.ID, q.Text), d.Keyboard.CancelButton(t))
	}
}

// NewAnswerTextHandler attaches the text a reader sends while in the "answering" state.
func NewAnswerTextHandler(d Deps) Handler {
	log := d.logger()

	return func(c telebot.Context) error {
		userID := senderID(c)
		ctx := RequestContext(c)
		t := Translator(c, d.I18n)

		st, err := d.FSM.GetState(ctx, userID)
		if err != nil {
			return stateError(err)
		}

		questionID, ok := st.QuestionID()
		if !ok {
			log.Warn("answering state without question id", slog.Int64("user_id", userID))
			if err := d.FSM.ClearState(ctx, userID); err != nil {
				return stateError(err)
			}
			return c.Send(t.T("answer.lost"), d.Keyboard.BackButton(t))
		}

		err = d.Questions.Answer(ctx, userID, questionID, c.Text())
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrQuestionNotFound),
			errors.Is(err, domain.ErrAnswerNotAllowed),
			errors.Is(err, domain.ErrForbidden):
			// the question can no longer be answered by this user, so waiting is pointless
			if clearErr := d.FSM.ClearState(ctx, userID); clearErr != nil {
				log.Warn("failed to clear state", slog.Int64("user_id", userID), slog.Any("error", clearErr))
			}
			return err
		default:
			return err
		}

		if err := d.FSM.ClearState(ctx, userID); err != nil {
			log.Warn("failed to clear state after answer", slog.Int64("user_id", userID), slog.Any("error", err))
		}

		return c.Send(t.Tf("answer.accepted", questionID), d.Keyboard.BackButton(t))
	}
}

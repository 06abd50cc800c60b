package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tarot-bot/internal/bot/keyboard"
	"github.com/Proton-105/tarot-bot/internal/bot/view"
	apperrors "github.com/Proton-105/tarot-bot/internal/errors"
)

// NewModerationPanelHandler sends every unmoderated question as its own message with
// approve/reject buttons, then a summary line.
func NewModerationPanelHandler(d Deps) CallbackHandler {
	log := d.logger()

	return func(c telebot.Context) error {
		userID := senderID(c)
		ctx := RequestContext(c)
		t := Translator(c, d.I18n)

		items, err := d.Questions.ModerationQueue(ctx, userID)
		if err != nil {
			return err
		}

		defer Ack(c)
		if len(items) == 0 {
			return reply(c, t.T("moderation.empty"), d.Keyboard.BackButton(t))
		}

		for _, item := range items {
			if err := c.Send(view.ModerationItem(t, item), d.Keyboard.ModerationButtons(t, item.ID)); err != nil {
				log.Error("failed to send moderation item",
					slog.Int64("question_id", item.ID),
					slog.Any("error", err),
				)
				return err
			}
		}

		return c.Send(t.Tf("moderation.summary", len(items)), d.Keyboard.BackButton(t))
	}
}

// NewModerateHandler applies a "moderate:<id>:approve|reject" verdict and replaces the
// buttons with the outcome.
func NewModerateHandler(d Deps) CallbackHandler {
	return func(c telebot.Context) error {
		userID := senderID(c)
		ctx := RequestContext(c)

		rawID, verdict, _ := keyboard.SplitData(callbackPayload(c.Callback().Data))
		questionID, err := parseID(rawID)
		if err != nil {
			return err
		}

		var approve bool
		switch verdict {
		case keyboard.VerdictApprove:
			approve = true
		case keyboard.VerdictReject:
		default:
			return apperrors.NewValidationError("unknown verdict " + verdict)
		}

		if err := d.Questions.Moderate(ctx, userID, questionID, approve); err != nil {
			return err
		}

		t := Translator(c, d.I18n)
		key := "moderation.rejected"
		if approve {
			key = "moderation.approved"
		}

		defer Ack(c)
		return reply(c, t.Tf(key, questionID))
	}
}

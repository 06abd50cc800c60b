package bot

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tarot-bot/internal/bot/keyboard"
	"github.com/Proton-105/tarot-bot/internal/domain"
	apperrors "github.com/Proton-105/tarot-bot/internal/errors"
	"github.com/Proton-105/tarot-bot/internal/i18n"
	"github.com/Proton-105/tarot-bot/pkg/metrics"
)

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// errRecipientUnavailable marks deliveries refused because the user blocked the bot
// or never started it. They do not count against Telegram's health.
var errRecipientUnavailable = errors.New("recipient unavailable")

// messageSender is the subset of *telebot.Bot the notifier needs.
type messageSender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelegramNotifier delivers lifecycle notifications as chat messages.
// Each notification is attempted once.
type TelegramNotifier struct {
	sender   messageSender
	catalog  *i18n.Manager
	keyboard *keyboard.Builder
	breaker  *apperrors.CircuitBreaker
	log      *slog.Logger
}

// NewTelegramNotifier builds a notifier. A nil breaker sends unconditionally.
func NewTelegramNotifier(
	sender messageSender,
	catalog *i18n.Manager,
	kb *keyboard.Builder,
	breaker *apperrors.CircuitBreaker,
	log *slog.Logger,
) *TelegramNotifier {
	if log == nil {
		log = slog.Default()
	}

	return &TelegramNotifier{
		sender:   sender,
		catalog:  catalog,
		keyboard: kb,
		breaker:  breaker,
		log:      log.With(slog.String("component", "notifier")),
	}
}

// Notify renders n in the default language and sends it to n.RecipientID.
func (n *TelegramNotifier) Notify(ctx context.Context, note domain.Notification) error {
	if note.RecipientID == 0 {
		return errors.New("notification without recipient")
	}

	t := n.catalog.Default()
	var (
		text string
		opts []interface{}
	)

	switch note.Kind {
	case domain.KindQuestionSubmitted:
		text = t.Tf("notify.submitted", note.QuestionID, note.From, note.Text)
		if n.keyboard != nil {
			opts = append(opts, n.keyboard.OpenModerationButton(t))
		}
	case domain.KindQuestionApproved:
		text = t.Tf("notify.approved", note.QuestionID)
	case domain.KindQuestionRejected:
		text = t.Tf("notify.rejected", note.QuestionID)
	default:
		return errors.New("unknown notification kind " + strconv.Quote(string(note.Kind)))
	}

	err := n.send(ctx, note.RecipientID, text, opts...)
	metrics.RecordNotification(string(note.Kind), outcome(err))
	if err != nil {
		return apperrors.NewExternalAPIError("telegram", redactedError{err})
	}

	n.log.DebugContext(ctx, "notification sent",
		slog.String("kind", string(note.Kind)),
		slog.Int64("recipient_id", note.RecipientID),
		slog.Int64("question_id", note.QuestionID),
	)
	return nil
}

func (n *TelegramNotifier) send(ctx context.Context, chatID int64, text string, opts ...interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	recipient := &telebot.User{ID: chatID}
	if n.breaker == nil {
		_, err := n.sender.Send(recipient, text, opts...)
		return classify(err)
	}

	var refused error
	err := n.breaker.Call(func() error {
		_, sendErr := n.sender.Send(recipient, text, opts...)
		sendErr = classify(sendErr)
		if errors.Is(sendErr, errRecipientUnavailable) {
			refused = sendErr
			return nil
		}
		return sendErr
	})
	if err != nil {
		return err
	}
	return refused
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if status := httpStatusFromError(err); status == http.StatusForbidden || (status == http.StatusBadRequest && errors.Is(err, telebot.ErrChatNotFound)) {
		return errors.Join(errRecipientUnavailable, err)
	}
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSent
	case errors.Is(err, errRecipientUnavailable):
		return metrics.OutcomeBlocked
	case apperrors.IsCircuitOpen(err):
		return metrics.OutcomeShortCircuited
	default:
		return metrics.OutcomeFailed
	}
}

func httpStatusFromError(err error) int {
	if err == nil {
		return 0
	}

	var apiErr *telebot.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}

	var floodErr telebot.FloodError
	if errors.As(err, &floodErr) {
		return http.StatusTooManyRequests
	}

	return 0
}

// redactedError hides the bot token in the message and keeps the chain for errors.Is.
type redactedError struct {
	err error
}

func (e redactedError) Error() string { return redactToken(e.err.Error()) }

func (e redactedError) Unwrap() error { return e.err }

func redactToken(msg string) string {
	return tokenRe.ReplaceAllString(msg, "bot<redacted>")
}

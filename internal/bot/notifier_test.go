package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tarot-bot/internal/bot/keyboard"
	"github.com/Proton-105/tarot-bot/internal/domain"
	apperrors "github.com/Proton-105/tarot-bot/internal/errors"
	"github.com/Proton-105/tarot-bot/internal/i18n"
	"github.com/Proton-105/tarot-bot/pkg/metrics"
)

type sentMessage struct {
	to   string
	text string
	opts []interface{}
}

type fakeSender struct {
	err   error
	calls []sentMessage
}

func (s *fakeSender) Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	s.calls = append(s.calls, sentMessage{to: to.Recipient(), text: what.(string), opts: opts})
	if s.err != nil {
		return nil, s.err
	}
	return &telebot.Message{ID: len(s.calls)}, nil
}

func newTestNotifier(t *testing.T, sender messageSender, breaker *apperrors.CircuitBreaker) *TelegramNotifier {
	t.Helper()
	catalog, err := i18n.Load("en")
	require.NoError(t, err)
	return NewTelegramNotifier(sender, catalog, keyboard.NewBuilder(nil), breaker, nil)
}

func TestTelegramNotifier_RendersEachKind(t *testing.T) {
	sender := &fakeSender{}
	n := newTestNotifier(t, sender, nil)
	ctx := context.Background()

	require.NoError(t, n.Notify(ctx, domain.Notification{
		Kind:        domain.KindQuestionSubmitted,
		RecipientID: 100,
		QuestionID:  5,
		Text:        "Will I move abroad?",
		From:        "@alice",
	}))
	require.NoError(t, n.Notify(ctx, domain.Notification{Kind: domain.KindQuestionApproved, RecipientID: 1, QuestionID: 5}))
	require.NoError(t, n.Notify(ctx, domain.Notification{Kind: domain.KindQuestionRejected, RecipientID: 1, QuestionID: 6}))

	require.Len(t, sender.calls, 3)
	assert.Equal(t, "100", sender.calls[0].to)
	assert.Equal(t, "📨 New question #5 from @alice:\nWill I move abroad?", sender.calls[0].text)
	require.Len(t, sender.calls[0].opts, 1)
	markup := sender.calls[0].opts[0].(*telebot.ReplyMarkup)
	assert.Equal(t, keyboard.CallbackModeration, markup.InlineKeyboard[0][0].Data)

	assert.Equal(t, "✅ Your question #5 passed moderation!", sender.calls[1].text)
	assert.Equal(t, "❌ Your question #6 was rejected by moderation.", sender.calls[2].text)
}

func TestTelegramNotifier_RejectsInvalidNotifications(t *testing.T) {
	n := newTestNotifier(t, &fakeSender{}, nil)

	assert.Error(t, n.Notify(context.Background(), domain.Notification{Kind: domain.KindQuestionApproved}))
	assert.Error(t, n.Notify(context.Background(), domain.Notification{Kind: "weird", RecipientID: 1}))
}

func TestTelegramNotifier_BlockedUserDoesNotTripBreaker(t *testing.T) {
	breaker := apperrors.NewCircuitBreaker(apperrors.BreakerConfig{
		ErrorThreshold:      0.5,
		MinRequests:         2,
		OpenTimeout:         time.Minute,
		HalfOpenMaxRequests: 1,
	})
	sender := &fakeSender{err: telebot.ErrBlockedByUser}
	n := newTestNotifier(t, sender, breaker)

	for i := 0; i < 3; i++ {
		err := n.Notify(context.Background(), domain.Notification{Kind: domain.KindQuestionApproved, RecipientID: 7, QuestionID: 1})
		require.Error(t, err)
	}

	assert.Equal(t, apperrors.StateClosed, breaker.State())
	assert.Len(t, sender.calls, 3)

	err := n.Notify(context.Background(), domain.Notification{Kind: domain.KindQuestionApproved, RecipientID: 7, QuestionID: 1})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "E300", appErr.Code)
	assert.ErrorIs(t, err, errRecipientUnavailable)
	assert.ErrorIs(t, err, telebot.ErrBlockedByUser)
	assert.Equal(t, metrics.OutcomeBlocked, outcome(classify(telebot.ErrBlockedByUser)))
}

func TestTelegramNotifier_BreakerShortCircuits(t *testing.T) {
	breaker := apperrors.NewCircuitBreaker(apperrors.BreakerConfig{
		ErrorThreshold:      0.5,
		MinRequests:         2,
		OpenTimeout:         time.Minute,
		HalfOpenMaxRequests: 1,
	})
	sender := &fakeSender{err: errors.New("Post \"https://api.telegram.org/bot123:ABC-def/sendMessage\": timeout")}
	n := newTestNotifier(t, sender, breaker)
	note := domain.Notification{Kind: domain.KindQuestionRejected, RecipientID: 7, QuestionID: 1}

	err := n.Notify(context.Background(), note)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "123:ABC-def")
	assert.Contains(t, err.Error(), "bot<redacted>")

	require.Error(t, n.Notify(context.Background(), note))
	assert.Equal(t, apperrors.StateOpen, breaker.State())

	err = n.Notify(context.Background(), note)
	require.Error(t, err)
	assert.True(t, apperrors.IsCircuitOpen(err))
	assert.Len(t, sender.calls, 2)
}

func TestHTTPStatusFromError(t *testing.T) {
	assert.Equal(t, 0, httpStatusFromError(nil))
	assert.Equal(t, 403, httpStatusFromError(telebot.ErrBlockedByUser))
	assert.Equal(t, 400, httpStatusFromError(telebot.ErrChatNotFound))
	assert.Equal(t, 0, httpStatusFromError(errors.New("boom")))
	assert.True(t, errors.Is(classify(telebot.ErrChatNotFound), errRecipientUnavailable))
}

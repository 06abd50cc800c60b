package question

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/tarot-bot/internal/database"
	"github.com/Proton-105/tarot-bot/internal/domain"
	apperrors "github.com/Proton-105/tarot-bot/internal/errors"
	"github.com/Proton-105/tarot-bot/internal/repository"
	"github.com/Proton-105/tarot-bot/pkg/config"
)

const (
	adminID  int64 = 100
	askerID  int64 = 1
	readerID int64 = 2
	otherID  int64 = 3
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, n domain.Notification) error {
	return m.Called(ctx, n).Error(0)
}

type fixture struct {
	svc       *Service
	notifier  *mockNotifier
	questions repository.QuestionRepository
	users     repository.UserRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "questions.db"),
	}
	require.NoError(t, database.NewMigrator(cfg, nil).Up())

	db, err := database.Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	users := repository.NewUserRepository(db, nil)
	questions := repository.NewQuestionRepository(db, nil)

	ctx := context.Background()
	for _, u := range []*domain.User{
		{ID: adminID, Username: "admin", Role: domain.RoleAdmin},
		{ID: askerID, Username: "seeker", FirstName: "Sam"},
		{ID: readerID, Username: "reader", Role: domain.RoleTarot},
		{ID: otherID, FirstName: "Olga"},
	} {
		_, err := users.Register(ctx, u)
		require.NoError(t, err)
	}

	notifier := &mockNotifier{}
	svc := NewService(questions, users, notifier, adminID, 0, nil)

	return &fixture{svc: svc, notifier: notifier, questions: questions, users: users}
}

func isKind(kind domain.NotificationKind, recipient int64) interface{} {
	return mock.MatchedBy(func(n domain.Notification) bool {
		return n.Kind == kind && n.RecipientID == recipient
	})
}

func assertAppCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}

func TestService_SubmitNotifiesAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n domain.Notification) bool {
		return n.Kind == domain.KindQuestionSubmitted &&
			n.RecipientID == adminID &&
			n.Text == "Will I find love?" &&
			n.From == "@seeker" &&
			n.QuestionID == 1
	})).Return(nil).Once()

	id, err := f.svc.Submit(ctx, askerID, "  Will I find love?  ")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	q, err := f.questions.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Will I find love?", q.Text)
	assert.Equal(t, domain.StatusNew, q.Status)
	assert.False(t, q.Moderated)

	f.notifier.AssertExpectations(t)
}

func TestService_SubmitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.maxLen = 10

	_, err := f.svc.Submit(ctx, askerID, "   ")
	assertAppCode(t, err, "E100")

	_, err = f.svc.Submit(ctx, askerID, strings.Repeat("я", 11))
	assertAppCode(t, err, "E100")

	f.notifier.On("Notify", mock.Anything, isKind(domain.KindQuestionSubmitted, adminID)).Return(nil).Once()
	_, err = f.svc.Submit(ctx, askerID, strings.Repeat("я", 10))
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, 404, "hello")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assertAppCode(t, err, "E110")

	f.notifier.AssertExpectations(t)
}

func TestService_AnswerRequiresReader(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

	id, err := f.svc.Submit(ctx, askerID, "question")
	require.NoError(t, err)

	err = f.svc.Answer(ctx, otherID, id, "I guess")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assertAppCode(t, err, "E120")

	q, err := f.questions.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, q.AnswerText)

	require.NoError(t, f.svc.Answer(ctx, readerID, id, "The Star"))
	q, err = f.questions.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAnswered, q.Status)

	err = f.svc.Answer(ctx, readerID, 999, "ghost")
	assert.ErrorIs(t, err, domain.ErrQuestionNotFound)
}

func TestService_ModerateRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.notifier.On("Notify", mock.Anything, isKind(domain.KindQuestionSubmitted, adminID)).Return(nil).Once()

	id, err := f.svc.Submit(ctx, askerID, "question")
	require.NoError(t, err)

	for _, actor := range []int64{askerID, readerID, 0} {
		err = f.svc.Moderate(ctx, actor, id, true)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	}

	q, err := f.questions.FindByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, q.Moderated)

	_, err = f.svc.ModerationQueue(ctx, readerID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	f.notifier.AssertExpectations(t)
}

func TestService_ModerateOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.notifier.On("Notify", mock.Anything, isKind(domain.KindQuestionSubmitted, adminID)).Return(nil).Once()
	f.notifier.On("Notify", mock.Anything, isKind(domain.KindQuestionRejected, askerID)).Return(nil).Once()

	id, err := f.svc.Submit(ctx, askerID, "question")
	require.NoError(t, err)

	require.NoError(t, f.svc.Moderate(ctx, adminID, id, false))

	err = f.svc.Moderate(ctx, adminID, id, true)
	assert.ErrorIs(t, err, domain.ErrAlreadyModerated)
	assertAppCode(t, err, "E400")

	err = f.svc.Moderate(ctx, adminID, 999, true)
	assert.ErrorIs(t, err, domain.ErrQuestionNotFound)

	f.notifier.AssertExpectations(t)
}

func TestService_NotificationFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return(errors.New("bot was blocked by the user"))

	id, err := f.svc.Submit(ctx, askerID, "question")
	require.NoError(t, err)

	require.NoError(t, f.svc.Moderate(ctx, adminID, id, true))

	q, err := f.questions.FindByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, q.Moderated)
	assert.Equal(t, domain.StatusNew, q.Status)
	f.notifier.AssertNumberOfCalls(t, "Notify", 2)
}

func TestService_LoveScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.notifier.On("Notify", mock.Anything, isKind(domain.KindQuestionSubmitted, adminID)).Return(nil).Once()
	f.notifier.On("Notify", mock.Anything, isKind(domain.KindQuestionApproved, askerID)).Return(nil).Once()

	id, err := f.svc.Submit(ctx, askerID, "Will I find love?")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	pending, err := f.svc.ModerationQueue(ctx, adminID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "seeker", pending[0].AskerName)

	require.NoError(t, f.svc.Moderate(ctx, adminID, id, true))

	open, err := f.svc.AnswerQueue(ctx, readerID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, id, open[0].ID)

	q, err := f.svc.OpenForAnswer(ctx, readerID, id)
	require.NoError(t, err)
	assert.Equal(t, "Will I find love?", q.Text)

	require.NoError(t, f.svc.Answer(ctx, readerID, id, "Yes"))

	q, err = f.questions.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAnswered, q.Status)
	assert.True(t, q.Moderated)
	require.NotNil(t, q.AnswerText)
	assert.Equal(t, "Yes", *q.AnswerText)

	open, err = f.svc.AnswerQueue(ctx, readerID)
	require.NoError(t, err)
	assert.Empty(t, open)

	mine, err := f.svc.UserQuestions(ctx, askerID)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	f.notifier.AssertExpectations(t)
}

func TestService_RejectScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.notifier.On("Notify", mock.Anything, isKind(domain.KindQuestionSubmitted, adminID)).Return(nil).Twice()
	f.notifier.On("Notify", mock.Anything, isKind(domain.KindQuestionRejected, askerID)).Return(nil).Once()

	_, err := f.svc.Submit(ctx, askerID, "first")
	require.NoError(t, err)
	id, err := f.svc.Submit(ctx, askerID, "second")
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)

	require.NoError(t, f.svc.Moderate(ctx, adminID, id, false))

	_, err = f.svc.OpenForAnswer(ctx, readerID, id)
	assert.ErrorIs(t, err, domain.ErrAnswerNotAllowed)

	err = f.svc.Answer(ctx, readerID, id, "late answer")
	assert.ErrorIs(t, err, domain.ErrAnswerNotAllowed)

	q, err := f.questions.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, q.Status)
	assert.True(t, q.Moderated)

	f.notifier.AssertExpectations(t)
}

func TestService_AnswerQueueRequiresReader(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AnswerQueue(context.Background(), otherID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	items, err := f.svc.AnswerQueue(context.Background(), adminID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

// Package question implements the question lifecycle: submission, answers,
// moderation and the notifications each transition produces.
package question

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/Proton-105/tarot-bot/internal/domain"
	apperrors "github.com/Proton-105/tarot-bot/internal/errors"
	"github.com/Proton-105/tarot-bot/internal/repository"
	"github.com/Proton-105/tarot-bot/pkg/metrics"
)

// DefaultMaxTextLen bounds question and answer length in runes. Telegram messages are capped at 4096.
const DefaultMaxTextLen = 4000

// Notifier delivers lifecycle notifications. Delivery errors are logged and dropped.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Service owns the transition rules and role checks for questions.
type Service struct {
	questions repository.QuestionRepository
	users     repository.UserRepository
	notifier  Notifier
	adminID   int64
	maxLen    int
	validate  *validator.Validate
	log       *slog.Logger
}

// NewService wires the lifecycle coordinator. A nil notifier disables notifications.
func NewService(
	questions repository.QuestionRepository,
	users repository.UserRepository,
	notifier Notifier,
	adminID int64,
	maxLen int,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxTextLen
	}

	return &Service{
		questions: questions,
		users:     users,
		notifier:  notifier,
		adminID:   adminID,
		maxLen:    maxLen,
		validate:  validator.New(),
		log:       log.With(slog.String("component", "question")),
	}
}

// Submit stores a new question for askerID and tells the administrator about it.
func (s *Service) Submit(ctx context.Context, askerID int64, text string) (int64, error) {
	text, err := s.cleanText(text)
	if err != nil {
		return 0, err
	}

	asker, err := s.loadUser(ctx, askerID)
	if err != nil {
		return 0, err
	}

	id, err := s.questions.Create(ctx, askerID, text)
	if err != nil {
		return 0, s.storeError("submit", err)
	}

	metrics.RecordQuestionTransition(metrics.TransitionSubmitted)
	s.log.Info("question submitted", slog.Int64("question_id", id), slog.Int64("user_id", askerID))

	s.notify(ctx, domain.Notification{
		Kind:        domain.KindQuestionSubmitted,
		RecipientID: s.adminID,
		QuestionID:  id,
		Text:        text,
		From:        asker.Handle(),
	})

	return id, nil
}

// OpenForAnswer returns the full question a reader is about to answer.
func (s *Service) OpenForAnswer(ctx context.Context, responderID, questionID int64) (*domain.Question, error) {
	if err := s.requireResponder(ctx, responderID); err != nil {
		return nil, err
	}

	q, err := s.questions.FindByID(ctx, questionID)
	if err != nil {
		return nil, s.storeError("open", err)
	}
	if !q.AcceptsAnswer() {
		return nil, s.storeError("open", domain.ErrAnswerNotAllowed)
	}

	return q, nil
}

// Answer attaches the reader's answer. The owner learns about it only through moderation.
func (s *Service) Answer(ctx context.Context, responderID, questionID int64, text string) error {
	text, err := s.cleanText(text)
	if err != nil {
		return err
	}

	if err := s.requireResponder(ctx, responderID); err != nil {
		return err
	}

	if err := s.questions.AttachAnswer(ctx, questionID, responderID, text); err != nil {
		return s.storeError("answer", err)
	}

	metrics.RecordQuestionTransition(metrics.TransitionAnswered)
	s.log.Info("question answered", slog.Int64("question_id", questionID), slog.Int64("responder_id", responderID))

	return nil
}

// Moderate approves or rejects a question once and notifies its owner.
func (s *Service) Moderate(ctx context.Context, actorID, questionID int64, approve bool) error {
	if err := s.requireAdmin(actorID, "moderate"); err != nil {
		return err
	}

	owner, err := s.questions.ApplyModeration(ctx, questionID, approve, actorID)
	if err != nil {
		return s.storeError("moderate", err)
	}

	kind := domain.KindQuestionRejected
	transition := metrics.TransitionRejected
	if approve {
		kind = domain.KindQuestionApproved
		transition = metrics.TransitionApproved
	}

	metrics.RecordQuestionTransition(transition)
	s.log.Info("question moderated",
		slog.Int64("question_id", questionID),
		slog.Bool("approved", approve),
		slog.Int64("owner_id", owner),
	)

	s.notify(ctx, domain.Notification{
		Kind:        kind,
		RecipientID: owner,
		QuestionID:  questionID,
	})

	return nil
}

// ModerationQueue lists unmoderated questions for the administrator, oldest first.
func (s *Service) ModerationQueue(ctx context.Context, actorID int64) ([]domain.QueueItem, error) {
	if err := s.requireAdmin(actorID, "moderation queue"); err != nil {
		return nil, err
	}

	items, err := s.questions.ListAwaitingModeration(ctx)
	if err != nil {
		return nil, s.storeError("moderation_queue", err)
	}
	return items, nil
}

// AnswerQueue lists approved questions waiting for a reader, oldest first.
func (s *Service) AnswerQueue(ctx context.Context, actorID int64) ([]domain.QueueItem, error) {
	if err := s.requireResponder(ctx, actorID); err != nil {
		return nil, err
	}

	items, err := s.questions.ListApprovedUnanswered(ctx)
	if err != nil {
		return nil, s.storeError("answer_queue", err)
	}
	return items, nil
}

// UserQuestions lists the caller's own questions, newest first.
func (s *Service) UserQuestions(ctx context.Context, userID int64) ([]domain.Question, error) {
	items, err := s.questions.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.storeError("user_questions", err)
	}
	return items, nil
}

func (s *Service) cleanText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if err := s.validate.Var(text, "required"); err != nil {
		appErr := apperrors.NewValidationError("empty text")
		appErr.UserMessage = "errors.empty_text"
		return "", appErr
	}
	if err := s.validate.Var(text, "max="+strconv.Itoa(s.maxLen)); err != nil {
		appErr := apperrors.NewValidationError("text too long")
		appErr.UserMessage = "errors.text_too_long"
		appErr.UserArgs = []any{s.maxLen}
		return "", appErr
	}
	return text, nil
}

func (s *Service) loadUser(ctx context.Context, id int64) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, s.storeError("load_user", err)
	}
	return u, nil
}

func (s *Service) requireAdmin(actorID int64, action string) error {
	if actorID == 0 || actorID != s.adminID {
		s.log.Warn("admin action denied", slog.Int64("actor_id", actorID), slog.String("action", action))
		return apperrors.NewForbiddenError(action, domain.ErrForbidden)
	}
	return nil
}

// requireResponder lets readers and the administrator work the answer queue.
func (s *Service) requireResponder(ctx context.Context, actorID int64) error {
	u, err := s.loadUser(ctx, actorID)
	if err != nil {
		return err
	}
	if u.Role == domain.RoleTarot || u.Role == domain.RoleAdmin || actorID == s.adminID {
		return nil
	}

	s.log.Warn("responder action denied", slog.Int64("actor_id", actorID), slog.String("role", string(u.Role)))
	return apperrors.NewForbiddenError("answer", domain.ErrForbidden)
}

// storeError maps store failures onto the application error taxonomy.
func (s *Service) storeError(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return apperrors.NewNotFoundError("user", err)
	case errors.Is(err, domain.ErrQuestionNotFound):
		return apperrors.NewNotFoundError("question", err)
	case errors.Is(err, domain.ErrAlreadyModerated):
		appErr := apperrors.NewStateError("question already moderated", err)
		appErr.UserMessage = "errors.already_moderated"
		return appErr
	case errors.Is(err, domain.ErrAnswerNotAllowed):
		appErr := apperrors.NewStateError("question does not accept answers", err)
		appErr.UserMessage = "errors.answer_not_allowed"
		return appErr
	}

	s.log.Error("question store failure", slog.String("operation", op), slog.Any("error", err))
	return apperrors.NewDatabaseError(err)
}

func (s *Service) notify(ctx context.Context, n domain.Notification) {
	if s.notifier == nil || n.RecipientID == 0 {
		return
	}

	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.Warn("notification not delivered",
			slog.String("kind", string(n.Kind)),
			slog.Int64("recipient_id", n.RecipientID),
			slog.Int64("question_id", n.QuestionID),
			slog.Any("error", err),
		)
	}
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Proton-105/tarot-bot/internal/domain"
)

// QuestionRepository defines persistence operations for questions.
type QuestionRepository interface {
	Create(ctx context.Context, userID int64, text string) (int64, error)
	FindByID(ctx context.Context, id int64) (*domain.Question, error)
	Owner(ctx context.Context, id int64) (int64, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Question, error)
	ListAwaitingModeration(ctx context.Context) ([]domain.QueueItem, error)
	ListApprovedUnanswered(ctx context.Context) ([]domain.QueueItem, error)
	AttachAnswer(ctx context.Context, questionID, responderID int64, text string) error
	ApplyModeration(ctx context.Context, questionID int64, approved bool, adminID int64) (int64, error)
}

type questionRow struct {
	ID          int64      `db:"id"`
	UserID      int64      `db:"user_id"`
	Text        string     `db:"question_text"`
	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	AnsweredBy  *int64     `db:"answered_by"`
	AnswerText  *string    `db:"answer_text"`
	Moderated   bool       `db:"moderated"`
	ModeratedBy *int64     `db:"moderated_by"`
	ModeratedAt *time.Time `db:"moderated_at"`
}

func (r questionRow) toDomain() domain.Question {
	return domain.Question{
		ID:          r.ID,
		UserID:      r.UserID,
		Text:        r.Text,
		Status:      domain.Status(r.Status),
		CreatedAt:   r.CreatedAt,
		AnsweredBy:  r.AnsweredBy,
		AnswerText:  r.AnswerText,
		Moderated:   r.Moderated,
		ModeratedBy: r.ModeratedBy,
		ModeratedAt: r.ModeratedAt,
	}
}

type queueRow struct {
	questionRow
	AskerUsername      string `db:"asker_username"`
	AskerFirstName     string `db:"asker_first_name"`
	ResponderUsername  string `db:"responder_username"`
	ResponderFirstName string `db:"responder_first_name"`
}

func (r queueRow) toDomain() domain.QueueItem {
	item := domain.QueueItem{
		Question:  r.questionRow.toDomain(),
		AskerName: domain.DisplayName(r.AskerUsername, r.AskerFirstName, r.UserID),
	}
	if r.AnsweredBy != nil {
		item.ResponderName = domain.DisplayName(r.ResponderUsername, r.ResponderFirstName, *r.AnsweredBy)
	}
	return item
}

const questionColumns = `q.id, q.user_id, q.question_text, q.status, q.created_at, q.answered_by,
	q.answer_text, q.moderated, q.moderated_by, q.moderated_at`

const queueSelect = `
	SELECT ` + questionColumns + `,
		u.username AS asker_username,
		u.first_name AS asker_first_name,
		COALESCE(r.username, '') AS responder_username,
		COALESCE(r.first_name, '') AS responder_first_name
	FROM questions q
	JOIN users u ON u.user_id = q.user_id
	LEFT JOIN users r ON r.user_id = q.answered_by
`

type questionRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	now func() time.Time
}

// NewQuestionRepository creates a new SQL-backed question repository.
func NewQuestionRepository(db *sqlx.DB, log *slog.Logger) QuestionRepository {
	if log == nil {
		log = slog.Default()
	}

	return &questionRepository{
		db:  db,
		log: log,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new unmoderated question owned by userID and returns its id.
func (r *questionRepository) Create(ctx context.Context, userID int64, text string) (id int64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin create question: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.log.Error("rollback create question", slog.Any("error", rbErr))
			}
		}
	}()

	var owners int
	if err = tx.GetContext(ctx, &owners, tx.Rebind(`SELECT COUNT(1) FROM users WHERE user_id = ?`), userID); err != nil {
		return 0, fmt.Errorf("check question owner: %w", err)
	}
	if owners == 0 {
		return 0, domain.ErrUserNotFound
	}

	query := tx.Rebind(`
		INSERT INTO questions (user_id, question_text, status, created_at, moderated)
		VALUES (?, ?, ?, ?, FALSE)
		RETURNING id
	`)
	if err = tx.GetContext(ctx, &id, query, userID, text, string(domain.StatusNew), r.now()); err != nil {
		r.log.Error("failed to insert question", slog.Int64("user_id", userID), slog.Any("error", err))
		return 0, fmt.Errorf("insert question: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create question: %w", err)
	}

	return id, nil
}

// FindByID returns a single question.
func (r *questionRepository) FindByID(ctx context.Context, id int64) (*domain.Question, error) {
	query := r.db.Rebind(`SELECT ` + questionColumns + ` FROM questions q WHERE q.id = ?`)

	var row questionRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrQuestionNotFound
		}
		return nil, fmt.Errorf("select question %d: %w", id, err)
	}

	q := row.toDomain()
	return &q, nil
}

// Owner returns the id of the user who asked the question.
func (r *questionRepository) Owner(ctx context.Context, id int64) (int64, error) {
	var owner int64
	if err := r.db.GetContext(ctx, &owner, r.db.Rebind(`SELECT user_id FROM questions WHERE id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrQuestionNotFound
		}
		return 0, fmt.Errorf("select question owner: %w", err)
	}
	return owner, nil
}

// ListByUser returns the user's questions, newest first.
func (r *questionRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Question, error) {
	query := r.db.Rebind(`
		SELECT ` + questionColumns + `
		FROM questions q
		WHERE q.user_id = ?
		ORDER BY q.created_at DESC, q.id DESC
	`)

	var rows []questionRow
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("select questions of user %d: %w", userID, err)
	}

	out := make([]domain.Question, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// ListAwaitingModeration returns every unmoderated question, oldest first.
func (r *questionRepository) ListAwaitingModeration(ctx context.Context) ([]domain.QueueItem, error) {
	return r.listQueue(ctx, queueSelect+`
		WHERE q.moderated = FALSE
		ORDER BY q.created_at, q.id
	`)
}

// ListApprovedUnanswered returns approved questions still waiting for a reader, oldest first.
func (r *questionRepository) ListApprovedUnanswered(ctx context.Context) ([]domain.QueueItem, error) {
	return r.listQueue(ctx, queueSelect+`
		WHERE q.status = 'new' AND q.moderated = TRUE
		ORDER BY q.created_at, q.id
	`)
}

func (r *questionRepository) listQueue(ctx context.Context, query string) ([]domain.QueueItem, error) {
	var rows []queueRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query)); err != nil {
		r.log.Error("failed to list question queue", slog.Any("error", err))
		return nil, fmt.Errorf("select question queue: %w", err)
	}

	out := make([]domain.QueueItem, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// AttachAnswer records the reader's answer. Only questions in status "new" accept one,
// so answered and rejected questions keep their status.
func (r *questionRepository) AttachAnswer(ctx context.Context, questionID, responderID int64, text string) error {
	query := r.db.Rebind(`
		UPDATE questions
		SET answer_text = ?, answered_by = ?, status = ?
		WHERE id = ? AND status = ?
	`)

	res, err := r.db.ExecContext(ctx, query, text, responderID, string(domain.StatusAnswered), questionID, string(domain.StatusNew))
	if err != nil {
		r.log.Error("failed to attach answer", slog.Int64("question_id", questionID), slog.Any("error", err))
		return fmt.Errorf("update question answer: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update question answer: rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	if _, err := r.Owner(ctx, questionID); err != nil {
		return err
	}
	return domain.ErrAnswerNotAllowed
}

// ApplyModeration marks the question moderated exactly once and returns its owner.
// Approval recomputes the status from answer presence; rejection always yields "rejected".
func (r *questionRepository) ApplyModeration(ctx context.Context, questionID int64, approved bool, adminID int64) (int64, error) {
	status := `'` + string(domain.StatusRejected) + `'`
	if approved {
		status = `CASE WHEN answer_text IS NOT NULL THEN '` + string(domain.StatusAnswered) +
			`' ELSE '` + string(domain.StatusNew) + `' END`
	}

	query := r.db.Rebind(`
		UPDATE questions
		SET status = ` + status + `, moderated = TRUE, moderated_by = ?, moderated_at = ?
		WHERE id = ? AND moderated = FALSE
		RETURNING user_id
	`)

	var owner int64
	err := r.db.GetContext(ctx, &owner, query, adminID, r.now(), questionID)
	if err == nil {
		return owner, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		r.log.Error("failed to apply moderation", slog.Int64("question_id", questionID), slog.Any("error", err))
		return 0, fmt.Errorf("update question moderation: %w", err)
	}

	if _, ownerErr := r.Owner(ctx, questionID); ownerErr != nil {
		return 0, ownerErr
	}
	return 0, domain.ErrAlreadyModerated
}

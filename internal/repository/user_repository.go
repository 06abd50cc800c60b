package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Proton-105/tarot-bot/internal/domain"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Register(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	SetRole(ctx context.Context, id int64, role domain.Role) error
}

type userRow struct {
	ID        int64     `db:"user_id"`
	Username  string    `db:"username"`
	FirstName string    `db:"first_name"`
	LastName  string    `db:"last_name"`
	Role      string    `db:"role"`
	CreatedAt time.Time `db:"created_at"`
}

func (r userRow) toDomain() *domain.User {
	return &domain.User{
		ID:        r.ID,
		Username:  r.Username,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Role:      domain.Role(r.Role),
		CreatedAt: r.CreatedAt,
	}
}

const userColumns = `user_id, username, first_name, last_name, role, created_at`

type userRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	now func() time.Time
}

// NewUserRepository creates a new SQL-backed user repository.
func NewUserRepository(db *sqlx.DB, log *slog.Logger) UserRepository {
	if log == nil {
		log = slog.Default()
	}

	return &userRepository{
		db:  db,
		log: log,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Register inserts the user unless a row with the same id exists and returns the stored row.
// An existing row is never modified, so role and created_at survive repeated /start.
func (r *userRepository) Register(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user == nil {
		return nil, errors.New("register user: nil user")
	}

	role := user.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return nil, fmt.Errorf("register user %d: %w", user.ID, domain.ErrInvalidRole)
	}

	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	query := r.db.Rebind(`
		INSERT INTO users (user_id, username, first_name, last_name, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING
	`)

	if _, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.FirstName,
		user.LastName,
		string(role),
		createdAt.UTC(),
	); err != nil {
		r.log.Error("failed to register user", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return r.FindByID(ctx, user.ID)
}

// FindByID retrieves a user by their Telegram identifier.
func (r *userRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE user_id = ?`)

	var row userRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}

		r.log.Error("failed to fetch user by id", slog.Int64("user_id", id), slog.Any("error", err))
		return nil, fmt.Errorf("select user by id: %w", err)
	}

	return row.toDomain(), nil
}

// FindByUsername matches the handle case-insensitively, with or without the leading "@".
func (r *userRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	handle := NormalizeUsername(username)
	if handle == "" {
		return nil, domain.ErrUserNotFound
	}

	query := r.db.Rebind(`
		SELECT ` + userColumns + `
		FROM users
		WHERE LOWER(username) = ?
		ORDER BY created_at, user_id
		LIMIT 1
	`)

	var row userRow
	if err := r.db.GetContext(ctx, &row, query, handle); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}

		r.log.Error("failed to fetch user by username", slog.String("username", handle), slog.Any("error", err))
		return nil, fmt.Errorf("select user by username: %w", err)
	}

	return row.toDomain(), nil
}

// SetRole overwrites the role of an existing user.
func (r *userRepository) SetRole(ctx context.Context, id int64, role domain.Role) error {
	if !role.Valid() {
		return fmt.Errorf("set role %q: %w", role, domain.ErrInvalidRole)
	}

	query := r.db.Rebind(`UPDATE users SET role = ? WHERE user_id = ?`)

	res, err := r.db.ExecContext(ctx, query, string(role), id)
	if err != nil {
		r.log.Error("failed to set role", slog.Int64("user_id", id), slog.Any("error", err))
		return fmt.Errorf("update user role: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user role: rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

// NormalizeUsername lower-cases a handle and strips whitespace and the "@" prefix.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}

// Package user implements registration, lookups and role promotion.
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tarot-bot/internal/domain"
	apperrors "github.com/Proton-105/tarot-bot/internal/errors"
	"github.com/Proton-105/tarot-bot/internal/repository"
	"github.com/Proton-105/tarot-bot/pkg/metrics"
)

// Cache is the optional read-through layer in front of the user store.
type Cache interface {
	Get(ctx context.Context, userID int64) (*domain.User, error)
	Set(ctx context.Context, user *domain.User, ttl time.Duration) error
	Invalidate(ctx context.Context, userID int64) error
}

// Service provides business operations over users.
type Service struct {
	repo     repository.UserRepository
	adminID  int64
	cache    Cache
	cacheTTL time.Duration
	log      *slog.Logger
}

// NewService constructs a Service. adminID is the single administrator identity.
func NewService(repo repository.UserRepository, adminID int64, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{repo: repo, adminID: adminID, log: log}
}

// WithCache puts cache in front of registration lookups. Cache failures fall back to the store.
func (s *Service) WithCache(cache Cache, ttl time.Duration) *Service {
	s.cache = cache
	s.cacheTTL = ttl
	return s
}

// IsAdmin reports whether id is the configured administrator.
func (s *Service) IsAdmin(id int64) bool {
	return id != 0 && id == s.adminID
}

// AdminID returns the configured administrator identity.
func (s *Service) AdminID() int64 {
	return s.adminID
}

// Register creates the user on first contact and returns the stored record.
// Repeated calls never change the stored role or creation time.
func (s *Service) Register(ctx context.Context, telegramUser *telebot.User) (*domain.User, error) {
	if telegramUser == nil {
		return nil, errors.New("telegram user is nil")
	}

	if cached := s.cached(ctx, telegramUser.ID); cached != nil {
		return cached, nil
	}

	role := domain.RoleUser
	if s.IsAdmin(telegramUser.ID) {
		role = domain.RoleAdmin
	}

	u, err := s.repo.Register(ctx, &domain.User{
		ID:        telegramUser.ID,
		Username:  telegramUser.Username,
		FirstName: telegramUser.FirstName,
		LastName:  telegramUser.LastName,
		Role:      role,
	})
	if err != nil {
		s.logError("register", telegramUser.ID, err)
		return nil, apperrors.NewDatabaseError(err)
	}
	s.remember(ctx, u)

	return u, nil
}

// Get loads a registered user.
func (s *Service) Get(ctx context.Context, id int64) (*domain.User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, apperrors.NewNotFoundError("user", err)
		}
		s.logError("get", id, err)
		return nil, apperrors.NewDatabaseError(err)
	}

	return u, nil
}

// Promote grants the tarot role to the user identified by handle. handle is a
// username (with or without "@") or a numeric Telegram id.
func (s *Service) Promote(ctx context.Context, actorID int64, handle string) (*domain.User, error) {
	if !s.IsAdmin(actorID) {
		return nil, apperrors.NewForbiddenError("promote", domain.ErrForbidden)
	}

	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, apperrors.NewValidationError("promote: empty handle")
	}

	target, err := s.resolve(ctx, handle)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, apperrors.NewNotFoundError("user", err)
		}
		s.logError("promote.resolve", actorID, err)
		return nil, apperrors.NewDatabaseError(err)
	}

	// the administrator keeps its own role
	if target.Role == domain.RoleAdmin || target.Role == domain.RoleTarot {
		return target, nil
	}

	if err := s.repo.SetRole(ctx, target.ID, domain.RoleTarot); err != nil {
		s.logError("promote.set_role", target.ID, err)
		return nil, apperrors.NewDatabaseError(err)
	}
	target.Role = domain.RoleTarot
	s.forget(ctx, target.ID)

	metrics.RecordQuestionTransition(metrics.TransitionPromoted)
	s.log.Info("user promoted", slog.Int64("user_id", target.ID), slog.Int64("actor_id", actorID))

	return target, nil
}

func (s *Service) resolve(ctx context.Context, handle string) (*domain.User, error) {
	if !strings.HasPrefix(handle, "@") {
		if id, err := strconv.ParseInt(handle, 10, 64); err == nil {
			return s.repo.FindByID(ctx, id)
		}
	}

	u, err := s.repo.FindByUsername(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("find %q: %w", handle, err)
	}
	return u, nil
}

func (s *Service) cached(ctx context.Context, id int64) *domain.User {
	if s.cache == nil {
		return nil
	}

	u, err := s.cache.Get(ctx, id)
	if err != nil {
		s.log.Warn("user cache read failed", slog.Int64("user_id", id), slog.Any("error", err))
		return nil
	}
	return u
}

func (s *Service) remember(ctx context.Context, u *domain.User) {
	if s.cache == nil || u == nil {
		return
	}

	if err := s.cache.Set(ctx, u, s.cacheTTL); err != nil {
		s.log.Warn("user cache write failed", slog.Int64("user_id", u.ID), slog.Any("error", err))
	}
}

func (s *Service) forget(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.log.Warn("user cache invalidation failed", slog.Int64("user_id", id), slog.Any("error", err))
	}
}

func (s *Service) logError(operation string, userID int64, err error) {
	if err == nil {
		return
	}

	s.log.Error("user service operation failed",
		slog.String("operation", operation),
		slog.Int64("user_id", userID),
		slog.Any("error", err),
	)
}

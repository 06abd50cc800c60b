package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	userLockKeyPattern = "tarot:lock:%d"
	lockTTL            = 5 * time.Second
)

var (
	// ErrInvalidTransition indicates that a requested transition is not allowed.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrStateNotFound indicates that a user state record does not exist.
	ErrStateNotFound = errors.New("user state not found")
	// ErrStateLocked indicates that a concurrent update for the same user holds the lock.
	ErrStateLocked = errors.New("state is locked, try again later")
)

// unlockScript deletes the lock only while it still carries the caller's token, so an
// expired lock taken over by another update is left alone.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

// StateMachine describes the operations supported by the conversation state controller.
type StateMachine interface {
	// GetState returns the stored state; a sender without one is idle.
	GetState(ctx context.Context, userID int64) (*UserState, error)
	SetState(ctx context.Context, userID int64, state State, contextData map[string]interface{}) error
	TransitionTo(ctx context.Context, userID int64, newState State, contextData map[string]interface{}) error
	ClearState(ctx context.Context, userID int64) error
	GetAllStates(ctx context.Context) ([]*UserState, error)
}

type machine struct {
	storage     Storage
	log         *slog.Logger
	redisClient *redis.Client
}

// NewStateMachine creates a controller over storage. A non-nil redisClient serialises
// updates per user with a short SetNX lock.
func NewStateMachine(storage Storage, log *slog.Logger, redisClient *redis.Client) StateMachine {
	if log == nil {
		log = slog.Default()
	}

	return &machine{
		storage:     storage,
		log:         log,
		redisClient: redisClient,
	}
}

func (m *machine) GetState(ctx context.Context, userID int64) (*UserState, error) {
	st, err := m.storage.GetState(ctx, userID)
	if errors.Is(err, ErrStateNotFound) {
		return &UserState{UserID: userID, CurrentState: StateIdle}, nil
	}
	return st, err
}

func (m *machine) GetAllStates(ctx context.Context) ([]*UserState, error) {
	return m.storage.GetAllStates(ctx)
}

// SetState stores the state unconditionally.
func (m *machine) SetState(ctx context.Context, userID int64, state State, contextData map[string]interface{}) error {
	token, err := m.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer m.unlock(ctx, userID, token)

	return m.saveState(ctx, userID, state, contextData)
}

// TransitionTo changes the state if the transition is allowed.
func (m *machine) TransitionTo(ctx context.Context, userID int64, newState State, contextData map[string]interface{}) error {
	token, err := m.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer m.unlock(ctx, userID, token)

	current := StateIdle

	stored, err := m.storage.GetState(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrStateNotFound) {
			return err
		}
	} else {
		current = stored.Current()
	}

	if !IsTransitionAllowed(current, newState) {
		m.log.Warn("invalid state transition", "user_id", userID, "from", current, "to", newState)
		return ErrInvalidTransition
	}

	transitionRecorder(string(current), string(newState))

	if newState == StateIdle {
		return m.storage.ClearState(ctx, userID)
	}
	return m.saveState(ctx, userID, newState, contextData)
}

// ClearState drops the stored state, returning the sender to idle. Clearing an idle
// sender is not recorded as a transition.
func (m *machine) ClearState(ctx context.Context, userID int64) error {
	token, err := m.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer m.unlock(ctx, userID, token)

	stored, err := m.storage.GetState(ctx, userID)
	switch {
	case errors.Is(err, ErrStateNotFound):
		return nil
	case err != nil:
		return err
	}

	if err := m.storage.ClearState(ctx, userID); err != nil {
		return err
	}
	transitionRecorder(string(stored.Current()), string(StateIdle))
	return nil
}

func (m *machine) saveState(ctx context.Context, userID int64, state State, contextData map[string]interface{}) error {
	return m.storage.SetState(ctx, userID, &UserState{
		UserID:       userID,
		CurrentState: state,
		Context:      contextData,
	})
}

func (m *machine) lock(ctx context.Context, userID int64) (string, error) {
	if m.redisClient == nil {
		return "", nil
	}

	token := uuid.NewString()
	key := fmt.Sprintf(userLockKeyPattern, userID)
	acquired, err := m.redisClient.SetNX(ctx, key, token, lockTTL).Result()
	if err != nil {
		m.log.Error("failed to acquire user state lock", "user_id", userID, "error", err)
		return "", err
	}

	if !acquired {
		m.log.Warn("user state lock already held", "user_id", userID)
		return "", ErrStateLocked
	}

	return token, nil
}

func (m *machine) unlock(ctx context.Context, userID int64, token string) {
	if m.redisClient == nil || token == "" {
		return
	}

	key := fmt.Sprintf(userLockKeyPattern, userID)
	if err := unlockScript.Run(ctx, m.redisClient, []string{key}, token).Err(); err != nil {
		m.log.Error("failed to release user state lock", "user_id", userID, "error", err)
	}
}

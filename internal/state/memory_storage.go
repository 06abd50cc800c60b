package state

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage keeps states in process memory. States are lost on restart.
type MemoryStorage struct {
	mu     sync.RWMutex
	states map[int64]*UserState
}

// NewMemoryStorage constructs an in-memory Storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{states: make(map[int64]*UserState)}
}

func (s *MemoryStorage) GetState(_ context.Context, userID int64) (*UserState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[userID]
	if !ok {
		return nil, ErrStateNotFound
	}
	return cloneState(st), nil
}

func (s *MemoryStorage) SetState(_ context.Context, userID int64, st *UserState) error {
	if st == nil {
		return nil
	}

	stored := cloneState(st)
	stored.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	s.states[userID] = stored
	s.mu.Unlock()

	return nil
}

func (s *MemoryStorage) ClearState(_ context.Context, userID int64) error {
	s.mu.Lock()
	delete(s.states, userID)
	s.mu.Unlock()

	return nil
}

func (s *MemoryStorage) GetAllStates(_ context.Context) ([]*UserState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*UserState, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, cloneState(st))
	}
	return out, nil
}

func cloneState(st *UserState) *UserState {
	copied := *st
	if st.Context != nil {
		copied.Context = make(map[string]interface{}, len(st.Context))
		for k, v := range st.Context {
			copied.Context[k] = v
		}
	}
	return &copied
}

package state

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errStorageFailure = errors.New("storage error")

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) GetState(ctx context.Context, userID int64) (*UserState, error) {
	args := m.Called(ctx, userID)
	st, _ := args.Get(0).(*UserState)
	return st, args.Error(1)
}

func (m *mockStorage) SetState(ctx context.Context, userID int64, st *UserState) error {
	args := m.Called(ctx, userID, st)
	return args.Error(0)
}

func (m *mockStorage) ClearState(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockStorage) GetAllStates(ctx context.Context) ([]*UserState, error) {
	args := m.Called(ctx)
	states, _ := args.Get(0).([]*UserState)
	return states, args.Error(1)
}

func TestStateMachine_TransitionTo(t *testing.T) {
	ctx := context.Background()
	userID := int64(42)

	testCases := []struct {
		name        string
		setupMocks  func(ms *mockStorage)
		newState    State
		contextData map[string]interface{}
		expectedErr error
	}{
		{
			name: "idle to asking",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetState", mock.Anything, userID).
					Return(&UserState{CurrentState: StateIdle}, nil).Once()
				ms.On("SetState", mock.Anything, userID, mock.MatchedBy(func(st *UserState) bool {
					return st.CurrentState == StateAskingQuestion
				})).Return(nil).Once()
			},
			newState: StateAskingQuestion,
		},
		{
			name: "new user starts answering with question id",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetState", mock.Anything, userID).
					Return((*UserState)(nil), ErrStateNotFound).Once()
				ms.On("SetState", mock.Anything, userID, mock.MatchedBy(func(st *UserState) bool {
					id, ok := st.QuestionID()
					return st.CurrentState == StateAnsweringQuestion && ok && id == 5
				})).Return(nil).Once()
			},
			newState:    StateAnsweringQuestion,
			contextData: map[string]interface{}{KeyQuestionID: int64(5)},
		},
		{
			name: "back to idle clears storage",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetState", mock.Anything, userID).
					Return(&UserState{CurrentState: StateAskingQuestion}, nil).Once()
				ms.On("ClearState", mock.Anything, userID).Return(nil).Once()
			},
			newState: StateIdle,
		},
		{
			name: "unknown state cannot start asking",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetState", mock.Anything, userID).
					Return(&UserState{CurrentState: State("legacy")}, nil).Once()
			},
			newState:    StateAskingQuestion,
			expectedErr: ErrInvalidTransition,
		},
		{
			name: "storage failure",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetState", mock.Anything, userID).
					Return((*UserState)(nil), errStorageFailure).Once()
			},
			newState:    StateAskingQuestion,
			expectedErr: errStorageFailure,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			ms := &mockStorage{}
			tc.setupMocks(ms)

			fsm := NewStateMachine(ms, testLogger(), nil)
			err := fsm.TransitionTo(ctx, userID, tc.newState, tc.contextData)

			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
			} else {
				assert.NoError(t, err)
			}

			ms.AssertExpectations(t)
		})
	}
}

func TestStateMachine_GetStateDefaultsToIdle(t *testing.T) {
	ms := &mockStorage{}
	ms.On("GetState", mock.Anything, int64(7)).Return((*UserState)(nil), ErrStateNotFound).Once()

	st, err := NewStateMachine(ms, testLogger(), nil).GetState(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, st.Current())
	assert.Equal(t, int64(7), st.UserID)
	ms.AssertExpectations(t)
}

func TestStateMachine_ClearState(t *testing.T) {
	ms := &mockStorage{}
	ms.On("GetState", mock.Anything, int64(13)).Return(&UserState{CurrentState: StateAskingQuestion}, nil).Once()
	ms.On("ClearState", mock.Anything, int64(13)).Return(errStorageFailure).Once()

	err := NewStateMachine(ms, testLogger(), nil).ClearState(context.Background(), 13)
	assert.ErrorIs(t, err, errStorageFailure)
	ms.AssertExpectations(t)
}

func TestStateMachine_ClearIdleIsNoop(t *testing.T) {
	ms := &mockStorage{}
	ms.On("GetState", mock.Anything, int64(14)).Return((*UserState)(nil), ErrStateNotFound).Once()

	require.NoError(t, NewStateMachine(ms, testLogger(), nil).ClearState(context.Background(), 14))
	ms.AssertNotCalled(t, "ClearState", mock.Anything, int64(14))
}

func TestStateMachine_UnlockKeepsForeignLock(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	m := NewStateMachine(NewMemoryStorage(), testLogger(), client).(*machine)
	ctx := context.Background()

	token, err := m.lock(ctx, 5)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// the lock expired and another update took it over
	require.NoError(t, client.Set(ctx, "tarot:lock:5", "other", lockTTL).Err())
	m.unlock(ctx, 5, token)
	assert.Equal(t, "other", client.Get(ctx, "tarot:lock:5").Val())

	require.NoError(t, client.Set(ctx, "tarot:lock:5", token, lockTTL).Err())
	m.unlock(ctx, 5, token)
	assert.Zero(t, client.Exists(ctx, "tarot:lock:5").Val())
}

func TestStateMachine_RecordsTransitions(t *testing.T) {
	var recorded []string
	RegisterTransitionRecorder(func(from, to string) { recorded = append(recorded, from+"->"+to) })
	t.Cleanup(func() { RegisterTransitionRecorder(nil) })

	fsm := NewStateMachine(NewMemoryStorage(), testLogger(), nil)
	ctx := context.Background()

	require.NoError(t, fsm.TransitionTo(ctx, 1, StateAskingQuestion, nil))
	require.NoError(t, fsm.TransitionTo(ctx, 1, StateIdle, nil))
	require.NoError(t, fsm.TransitionTo(ctx, 1, StateAnsweringQuestion, nil))
	require.NoError(t, fsm.ClearState(ctx, 1))
	require.NoError(t, fsm.ClearState(ctx, 1))

	assert.Equal(t, []string{
		"idle->asking_question",
		"asking_question->idle",
		"idle->answering_question",
		"answering_question->idle",
	}, recorded)
}

func TestStateMachine_Lock(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	fsm := NewStateMachine(&slowStorage{Storage: NewMemoryStorage(), delay: 100 * time.Millisecond}, testLogger(), client)

	ctx := context.Background()
	userID := int64(77)

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- fsm.SetState(ctx, userID, StateAskingQuestion, nil)
		}()
	}

	wg.Wait()
	close(errCh)

	var success, locked int
	for err := range errCh {
		switch {
		case err == nil:
			success++
		case errors.Is(err, ErrStateLocked):
			locked++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, success)
	assert.Equal(t, 1, locked)
}

func TestUserState_QuestionID(t *testing.T) {
	testCases := []struct {
		name  string
		value interface{}
		id    int64
		ok    bool
	}{
		{name: "int64", value: int64(3), id: 3, ok: true},
		{name: "json float", value: float64(9), id: 9, ok: true},
		{name: "string", value: "12", id: 12, ok: true},
		{name: "garbage", value: "x", ok: false},
		{name: "missing", value: nil, ok: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			st := &UserState{Context: map[string]interface{}{}}
			if tc.value != nil {
				st.Context[KeyQuestionID] = tc.value
			}
			id, ok := st.QuestionID()
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.id, id)
		})
	}
}

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		_ = client.Close()
		mr.Close()
	}

	return client, cleanup
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type slowStorage struct {
	Storage
	delay time.Duration
}

func (s *slowStorage) SetState(ctx context.Context, userID int64, st *UserState) error {
	time.Sleep(s.delay)
	return s.Storage.SetState(ctx, userID, st)
}

package state

import (
	"encoding/json"
	"strconv"
	"time"
)

// State represents a conversation state of one sender.
type State string

const (
	// StateIdle indicates that the bot is waiting for the next command.
	StateIdle State = "idle"
	// StateAskingQuestion means the next free-text message is a new question.
	StateAskingQuestion State = "asking_question"
	// StateAnsweringQuestion means the next free-text message answers the question in context.
	StateAnsweringQuestion State = "answering_question"
)

// KeyQuestionID is the context key holding the question a reader is answering.
const KeyQuestionID = "question_id"

// UserState captures the current conversation state for a Telegram user.
type UserState struct {
	UserID       int64                  `json:"user_id"`
	CurrentState State                  `json:"current_state"`
	Context      map[string]interface{} `json:"context"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// QuestionID extracts the question id from the state context. Values decoded from
// JSON arrive as float64, values set in process as int64.
func (s *UserState) QuestionID() (int64, bool) {
	if s == nil || s.Context == nil {
		return 0, false
	}

	switch v := s.Context[KeyQuestionID].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		id, err := v.Int64()
		return id, err == nil
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		return id, err == nil
	default:
		return 0, false
	}
}

// Current returns the state, treating a missing record as idle.
func (s *UserState) Current() State {
	if s == nil || s.CurrentState == "" {
		return StateIdle
	}
	return s.CurrentState
}

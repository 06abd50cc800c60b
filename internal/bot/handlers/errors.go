package handlers

import (
	"errors"
	"strconv"

	"github.com/Proton-105/tarot-bot/internal/bot/keyboard"
	apperrors "github.com/Proton-105/tarot-bot/internal/errors"
	"github.com/Proton-105/tarot-bot/internal/state"
)

// stateError maps session-state failures onto user-facing application errors.
func stateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, state.ErrStateLocked):
		appErr := apperrors.NewStateError("state locked", err)
		appErr.UserMessage = "errors.busy"
		appErr.Severity = apperrors.SeverityLow
		return appErr
	case errors.Is(err, state.ErrInvalidTransition):
		return apperrors.NewStateError("invalid transition", err)
	default:
		return apperrors.NewDatabaseError(err)
	}
}

// callbackPayload returns the data part of "unique:data".
func callbackPayload(data string) string {
	_, payload, err := keyboard.DecodeCallback(data)
	if err != nil {
		return ""
	}
	return payload
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("malformed id " + strconv.Quote(raw))
	}
	return id, nil
}

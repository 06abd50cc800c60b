// Package state keeps the ephemeral per-sender conversation state of the bot.
package state

import "context"

// Storage defines the persistence contract for conversation state.
type Storage interface {
	// GetState returns the current state for the specified user or ErrStateNotFound.
	GetState(ctx context.Context, userID int64) (*UserState, error)
	// SetState saves the provided state for the specified user.
	SetState(ctx context.Context, userID int64, state *UserState) error
	// ClearState removes the state for the specified user.
	ClearState(ctx context.Context, userID int64) error
	// GetAllStates returns a snapshot of every stored state.
	GetAllStates(ctx context.Context) ([]*UserState, error)
}

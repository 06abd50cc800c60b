// Package lifecycle runs background workers and the ordered shutdown of the bot process.
package lifecycle

import "context"

// Hook describes a named shutdown hook.
type Hook struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Phases run in ascending order; hooks inside one phase run concurrently.
const (
	// PhaseIngress stops accepting updates and HTTP traffic.
	PhaseIngress = iota
	// PhaseWorkers stops background loops such as cleaners and collectors.
	PhaseWorkers
	// PhaseStorage closes Redis and the question store.
	PhaseStorage
	// PhaseTelemetry flushes error reporting last.
	PhaseTelemetry
)

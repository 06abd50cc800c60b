package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Shutdown coordinates graceful shutdown hooks phase by phase.
type Shutdown struct {
	mu     sync.Mutex
	phases map[int][]Hook
	log    *slog.Logger
}

// NewShutdown constructs a new Shutdown coordinator.
func NewShutdown(log *slog.Logger) *Shutdown {
	if log == nil {
		log = slog.Default()
	}

	return &Shutdown{phases: make(map[int][]Hook), log: log}
}

// Register adds a named shutdown hook to phase.
func (s *Shutdown) Register(phase int, name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.phases[phase] = append(s.phases[phase], Hook{Name: name, Fn: fn})
}

// Execute runs every phase in order. A failing hook does not stop later phases.
func (s *Shutdown) Execute(ctx context.Context) error {
	s.mu.Lock()
	order := make([]int, 0, len(s.phases))
	phases := make(map[int][]Hook, len(s.phases))
	for phase, hooks := range s.phases {
		order = append(order, phase)
		phases[phase] = append([]Hook(nil), hooks...)
	}
	s.mu.Unlock()
	sort.Ints(order)

	start := time.Now()
	s.log.Info("shutdown sequence started", slog.Int("phase_count", len(order)))

	var errs []error
	for _, phase := range order {
		errs = append(errs, s.runPhase(ctx, phase, phases[phase])...)
	}

	s.log.Info("shutdown sequence finished", slog.Duration("elapsed", time.Since(start)))

	return errors.Join(errs...)
}

func (s *Shutdown) runPhase(ctx context.Context, phase int, hooks []Hook) []error {
	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
		errs  []error
	)

	for _, h := range hooks {
		wg.Add(1)
		go func() {
			defer wg.Done()

			s.log.Info("running shutdown hook", slog.String("hook", h.Name), slog.Int("phase", phase))

			if err := h.Fn(ctx); err != nil {
				s.log.Error("shutdown hook failed", slog.String("hook", h.Name), slog.Any("error", err))
				errMu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", h.Name, err))
				errMu.Unlock()
				return
			}

			s.log.Debug("shutdown hook completed", slog.String("hook", h.Name))
		}()
	}

	wg.Wait()
	return errs
}

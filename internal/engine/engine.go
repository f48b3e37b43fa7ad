// Package engine owns the lifecycle of one assistant run. A Supervisor
// moves through Stopped → Starting → Running and back, building the
// runtime on each start so a stop fully releases connections.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type Phase string

const (
	PhaseStopped  Phase = "stopped"
	PhaseStarting Phase = "starting"
	PhaseRunning  Phase = "running"
)

// Runtime is everything one engine run owns. Receive blocks until the run
// context is canceled; Drain flushes in-flight questions; Close releases
// connections.
type Runtime struct {
	Receive func(ctx context.Context) error
	Drain   func(ctx context.Context) error
	Close   func() error
}

// Builder assembles a Runtime. It runs during the Starting phase and is
// where connections open and readiness checks happen; an error leaves the
// engine Stopped.
type Builder func(ctx context.Context) (*Runtime, error)

type Supervisor struct {
	logger *slog.Logger
	build  Builder

	mu      sync.Mutex
	phase   Phase
	runtime *Runtime
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewSupervisor(logger *slog.Logger, build Builder) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{logger: logger, build: build, phase: PhaseStopped}
}

func (s *Supervisor) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Running is the dispatch gate: questions are only processed while the
// engine is in the Running phase.
func (s *Supervisor) Running() bool {
	return s.Phase() == PhaseRunning
}

// Start builds a runtime and begins receiving. It is only valid from
// Stopped; a failed build returns the engine to Stopped.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != PhaseStopped {
		phase := s.phase
		s.mu.Unlock()
		return fmt.Errorf("cannot start engine: engine is %s", phase)
	}
	s.phase = PhaseStarting
	s.mu.Unlock()

	runtime, err := s.build(ctx)
	if err != nil {
		s.mu.Lock()
		s.phase = PhaseStopped
		s.mu.Unlock()
		return fmt.Errorf("start engine: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.runtime = runtime
	s.cancel = cancel
	s.done = done
	s.phase = PhaseRunning
	s.mu.Unlock()

	go func() {
		defer close(done)
		err := runtime.Receive(runCtx)
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Error("receive loop exited", "error", err)

		s.mu.Lock()
		if s.runtime != runtime {
			// Stop already took ownership of this runtime.
			s.mu.Unlock()
			return
		}
		s.phase = PhaseStopped
		s.runtime = nil
		s.cancel = nil
		s.done = nil
		s.mu.Unlock()

		// The run owns its connections; a crashed receive loop must still
		// drain in-flight questions and release the pool.
		cancel()
		cleanupCtx, cancelCleanup := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelCleanup()
		if runtime.Drain != nil {
			if err := runtime.Drain(cleanupCtx); err != nil {
				s.logger.Error("drain after receive failure", "error", err)
			}
		}
		if runtime.Close != nil {
			if err := runtime.Close(); err != nil {
				s.logger.Error("close after receive failure", "error", err)
			}
		}
	}()

	s.logger.Info("engine running")
	return nil
}

// Stop moves Running → Stopped: the phase flips first so new questions are
// dropped, then the receive loop is canceled, in-flight questions drain,
// and connections close.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != PhaseRunning {
		phase := s.phase
		s.mu.Unlock()
		return fmt.Errorf("cannot stop engine: engine is %s", phase)
	}
	s.phase = PhaseStopped
	runtime := s.runtime
	cancel := s.cancel
	done := s.done
	s.runtime = nil
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("stop engine: receive loop did not exit: %w", ctx.Err())
	}

	var errs []error
	if runtime.Drain != nil {
		if err := runtime.Drain(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if runtime.Close != nil {
		if err := runtime.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("stop engine: %w", errors.Join(errs...))
	}
	s.logger.Info("engine stopped")
	return nil
}

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LISSConsulting/LISSTech.Kurokku/internal/config"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/engine"
)

// RunFunc is the function the Supervisor runs. Typically wraps engine.Engine.Run.
type RunFunc func(ctx context.Context) error

// ErrHang is returned for a run that was cancelled because it stopped
// drawing frames.
var ErrHang = errors.New("supervisor: no output within hang timeout")

// Supervisor restarts the render engine after failures and hangs, and
// persists its state for "kurokku status".
type Supervisor struct {
	cfg    config.SupervisorConfig
	dir    string
	events chan<- engine.Event

	// mu protects lastOutputAt and state
	mu           sync.Mutex
	lastOutputAt time.Time
	state        State
}

// New creates a Supervisor that keeps its state file under dir.
func New(cfg config.SupervisorConfig, dir string, events chan<- engine.Event) *Supervisor {
	return &Supervisor{
		cfg:          cfg,
		dir:          dir,
		events:       events,
		lastOutputAt: time.Now(),
	}
}

// Supervise runs the given function until it returns nil. Failed and hung
// runs are retried after the configured backoff until max_retries
// consecutive failures. A disabled supervisor runs the function once without
// hang detection.
func (s *Supervisor) Supervise(ctx context.Context, run RunFunc) error {
	maxRetries := s.cfg.MaxRetries
	if !s.cfg.Enabled {
		maxRetries = 0
	}

	now := time.Now()
	s.mu.Lock()
	s.state = State{
		PID:          os.Getpid(),
		LastOutputAt: now,
		StartedAt:    now,
	}
	s.mu.Unlock()
	s.saveState()

	var consecutiveErrors int
	for {
		select {
		case <-ctx.Done():
			s.emit("Shutting down gracefully")
			return ctx.Err()
		default:
		}

		s.emit(fmt.Sprintf("Starting engine (attempt %d/%d)", consecutiveErrors+1, maxRetries+1))
		s.touchOutput()
		s.mu.Lock()
		s.state.Attempt++
		s.mu.Unlock()

		err := s.runWithHangDetection(ctx, run)

		if err == nil {
			s.mu.Lock()
			s.state.ConsecutiveErrs = 0
			s.state.FinishedAt = time.Now()
			s.state.Stopped = true
			s.mu.Unlock()

			s.saveState()
			s.emit("Engine stopped")
			return nil
		}

		if ctx.Err() != nil {
			s.emit("Context cancelled, stopping")
			return ctx.Err()
		}

		consecutiveErrors++
		s.mu.Lock()
		s.state.ConsecutiveErrs = consecutiveErrors
		s.state.LastError = err.Error()
		s.mu.Unlock()
		s.saveState()

		s.emit(fmt.Sprintf("Engine exited with error: %v", err))

		if consecutiveErrors > maxRetries {
			s.mu.Lock()
			s.state.FinishedAt = time.Now()
			s.state.Stopped = false
			s.mu.Unlock()
			s.saveState()
			s.emit(fmt.Sprintf("Max retries (%d) exceeded, giving up", maxRetries))
			return fmt.Errorf("supervisor: max retries exceeded after %d failures: %w", consecutiveErrors, err)
		}

		backoff := time.Duration(s.cfg.RetryBackoffSeconds) * time.Second
		s.emit(fmt.Sprintf("Retrying in %s (attempt %d/%d)", backoff, consecutiveErrors+1, maxRetries+1))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// runWithHangDetection runs the function with a goroutine that monitors for
// hangs. If no output is observed for hang_timeout_seconds, the run's context
// is cancelled and ErrHang returned.
func (s *Supervisor) runWithHangDetection(ctx context.Context, run RunFunc) error {
	hangTimeout := time.Duration(s.cfg.HangTimeoutSeconds) * time.Second
	if hangTimeout <= 0 || !s.cfg.Enabled {
		return run(ctx)
	}

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	var hung atomic.Bool
	hangDone := make(chan struct{})
	go func() {
		defer close(hangDone)
		ticker := time.NewTicker(hangTimeout / 4)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				elapsed := time.Since(s.lastOutputAt)
				s.mu.Unlock()

				if elapsed >= hangTimeout {
					s.emit(fmt.Sprintf("Hang detected: no output for %s, restarting engine", hangTimeout))
					hung.Store(true)
					runCancel()
					return
				}
			}
		}
	}()

	err := run(runCtx)
	runCancel()
	<-hangDone
	if hung.Load() {
		return fmt.Errorf("%w (%s)", ErrHang, hangTimeout)
	}
	return err
}

// NotifyOutput resets the hang detection timer. Wire it to the engine's
// heartbeat.
func (s *Supervisor) NotifyOutput() {
	s.touchOutput()
}

// UpdateState records engine progress from an event and resets the hang
// detection timer. Config changes, errors and stops are persisted at once.
func (s *Supervisor) UpdateState(ev engine.Event) {
	s.touchOutput()

	persist := false
	s.mu.Lock()
	switch ev.Kind {
	case engine.EventConfig:
		s.state.ConfigHash = ev.Hash
		persist = true
	case engine.EventWidget:
		s.state.Widget = ev.Widget
	case engine.EventBrightness:
		s.state.Brightness = ev.Brightness
	case engine.EventWidgetError, engine.EventError:
		s.state.LastError = ev.Message
		persist = true
	case engine.EventStopped:
		persist = true
	}
	s.mu.Unlock()

	if persist {
		s.saveState()
	}
}

// State returns a copy of the current state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) touchOutput() {
	s.mu.Lock()
	s.lastOutputAt = time.Now()
	s.state.LastOutputAt = s.lastOutputAt
	s.mu.Unlock()
}

func (s *Supervisor) emit(msg string) {
	if s.events == nil {
		return
	}
	ev := engine.Event{
		Kind:      engine.EventSupervisor,
		Timestamp: time.Now(),
		Message:   msg,
	}
	select {
	case s.events <- ev:
	default:
	}
}

func (s *Supervisor) saveState() {
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()

	if err := SaveState(s.dir, st); err != nil {
		s.emit(fmt.Sprintf("Failed to save state: %v", err))
	}
}

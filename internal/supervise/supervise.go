// Package supervise implements local restart policy for workers.
//
// A Supervisor watches worker termination events. On abnormal termination
// it starts a replacement with the service's initial state - whatever state
// the crashed worker had accumulated is deliberately discarded, trading
// cache warmth for availability. Restarts are bounded by a sliding-window
// budget; exceeding the budget is fatal to the supervised service.
//
// Supervision here is process-local only: no clustering, no distribution.
package supervise

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/genserv/internal/worker"
)

// Policy controls which exits trigger a restart.
type Policy int

const (
	// RestartTransient restarts only abnormal terminations. An explicit
	// stop is never restarted. This is the default.
	RestartTransient Policy = iota
	// RestartAlways restarts on any termination not initiated through the
	// supervisor itself.
	RestartAlways
	// RestartNever disables restarts; any exit is surfaced as fatal-free
	// termination.
	RestartNever
)

// Config wires a supervisor to its service.
type Config struct {
	// Service is the owning service name, for logs and errors.
	Service string
	// Policy defaults to RestartTransient.
	Policy Policy
	// Budget bounds restart rate. Required.
	Budget *Budget
	// Spawn builds and starts a replacement worker with the service's
	// initial state. Required.
	Spawn func() (*worker.Worker, error)
	// OnReplace is invoked with the dead worker and its replacement, after
	// the replacement is already being watched. The owner re-registers the
	// name or refills the pool slot here. Required.
	OnReplace func(old, next *worker.Worker)
	// OnFatal is invoked at most once, when the restart budget is exceeded
	// or a replacement cannot be started. The service must become
	// permanently unavailable. Required.
	OnFatal func(err error)
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Supervisor watches workers and enforces the restart policy.
type Supervisor struct {
	cfg Config

	stopOnce  sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
	fatalOnce sync.Once
}

// New validates the config and creates a supervisor. No worker is watched
// until Watch is called.
func New(cfg Config) (*Supervisor, error) {
	if cfg.Budget == nil {
		return nil, fmt.Errorf("supervise: nil budget")
	}
	if cfg.Spawn == nil || cfg.OnReplace == nil || cfg.OnFatal == nil {
		return nil, fmt.Errorf("supervise: spawn, on-replace, and on-fatal hooks are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Supervisor{cfg: cfg, stop: make(chan struct{})}, nil
}

// Watch begins observing a worker's termination. Safe to call for every
// worker the service or pool starts.
func (s *Supervisor) Watch(w *worker.Worker) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-s.stop:
			return
		case <-w.Done():
			s.handleExit(w)
		}
	}()
}

// Stop ends supervision. Workers are not stopped here - the owner stops
// the supervisor first, then its workers, so shutdown never races a
// restart.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

func (s *Supervisor) handleExit(w *worker.Worker) {
	exit := w.Exit()

	restart := false
	switch s.cfg.Policy {
	case RestartAlways:
		restart = true
	case RestartTransient:
		restart = exit.Reason == worker.ExitFailure
	case RestartNever:
		restart = false
	}
	if !restart {
		return
	}

	if !s.cfg.Budget.Allow() {
		s.fatal(fmt.Errorf("restart budget exceeded for %s (worker %s: %v)",
			s.cfg.Service, exit.WorkerID, exit.Err))
		return
	}

	next, err := s.cfg.Spawn()
	if err != nil {
		s.fatal(fmt.Errorf("spawn replacement for %s: %w", s.cfg.Service, err))
		return
	}

	s.cfg.Logger.Info("worker restarted",
		slog.String("service", s.cfg.Service),
		slog.String("old", exit.WorkerID),
		slog.String("new", next.ID()))

	s.Watch(next)
	s.cfg.OnReplace(w, next)
}

// fatal surfaces a non-recoverable condition exactly once.
func (s *Supervisor) fatal(err error) {
	s.fatalOnce.Do(func() {
		s.cfg.Logger.Error("supervision fatal",
			slog.String("service", s.cfg.Service),
			slog.Any("error", err))
		s.cfg.OnFatal(err)
	})
}

// Budget is a sliding-window restart-rate bound: at most Max restarts
// within Window. A worker that keeps crashing exhausts the budget and
// takes the whole service down rather than crash-looping forever.
//
// Thread-safety: Allow is safe for concurrent use.
type Budget struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	now    func() time.Time
	marks  []time.Time
}

// NewBudget creates a budget of max restarts per window.
func NewBudget(max int, window time.Duration) *Budget {
	return &Budget{max: max, window: window, now: time.Now}
}

// NewBudgetAt creates a budget with an injected clock, for tests.
func NewBudgetAt(max int, window time.Duration, now func() time.Time) *Budget {
	return &Budget{max: max, window: window, now: now}
}

// Allow records a restart attempt and reports whether it is within budget.
// Marks older than the window are pruned first.
func (b *Budget) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	cutoff := now.Add(-b.window)
	kept := b.marks[:0]
	for _, m := range b.marks {
		if m.After(cutoff) {
			kept = append(kept, m)
		}
	}
	b.marks = kept

	if len(b.marks) >= b.max {
		return false
	}
	b.marks = append(b.marks, now)
	return true
}

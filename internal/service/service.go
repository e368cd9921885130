package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/genserv/internal/decl"
	"github.com/roach88/genserv/internal/gen"
	"github.com/roach88/genserv/internal/trace"
)

// ErrInlineMode is returned by Run for inline declarations: inline mode
// starts no process, callers use Inline() and thread state themselves.
var ErrInlineMode = errors.New("service: inline mode has no worker to run")

// Service is a built (but not necessarily running) service: the immutable
// declaration plus its generated artifacts.
type Service struct {
	def   *decl.Service
	impls map[string]gen.ImplFunc
	opts  options

	emitted string
	trace   *trace.Store
}

// Build validates the declaration and generates its implementation
// functions. When the declaration enables diagnostics, the generated
// pure/worker/API rendering is captured (see Emitted) and, if configured,
// a call-trace store is opened.
func Build(def *decl.Service, opts ...Option) (*Service, error) {
	if errs := def.Validate(); len(errs) > 0 {
		agg := make([]error, len(errs))
		for i, e := range errs {
			agg[i] = e
		}
		return nil, fmt.Errorf("service %s: invalid declaration: %w", def.Name, errors.Join(agg...))
	}

	impls, err := gen.Implementations(def)
	if err != nil {
		return nil, fmt.Errorf("service %s: %w", def.Name, err)
	}

	s := &Service{def: def, impls: impls, opts: defaultOptions()}
	for _, opt := range opts {
		opt(&s.opts)
	}

	if def.Diagnostics {
		emitted, err := gen.Emit(def)
		if err != nil {
			return nil, fmt.Errorf("service %s: emit: %w", def.Name, err)
		}
		s.emitted = emitted

		if s.opts.tracePath != "" {
			st, err := trace.Open(s.opts.tracePath)
			if err != nil {
				return nil, fmt.Errorf("service %s: open trace: %w", def.Name, err)
			}
			s.trace = st
		}
	}

	return s, nil
}

// Decl returns the service declaration.
func (s *Service) Decl() *decl.Service { return s.def }

// Emitted returns the diagnostics rendering of the generated code, or ""
// when diagnostics are disabled. Inspection only; no runtime effect.
func (s *Service) Emitted() string { return s.emitted }

// Impl returns the pure implementation function for a clause, the
// designated seam for deterministic testing: it bypasses workers entirely.
func (s *Service) Impl(name string) (gen.ImplFunc, bool) {
	f, ok := s.impls[name]
	return f, ok
}

// Inline generates the inline-mode client functions. Valid in any mode
// (the pure core is mode-independent), but it is the only call surface an
// inline declaration has.
func (s *Service) Inline() (map[string]gen.InlineFunc, error) {
	return gen.InlineAPI(s.def)
}

// Close releases build-time resources (the trace store). Running handles
// must be stopped first.
func (s *Service) Close() error {
	if s.trace != nil {
		return s.trace.Close()
	}
	return nil
}

// Run starts the service with its declared initial state.
func (s *Service) Run(ctx context.Context) (*Handle, error) {
	return s.RunWith(ctx, s.def.InitialState)
}

// RunWith starts the service with an overriding initial state (the
// one-argument run entry point). The override becomes this instance's
// initial state: supervisor restarts reset to it, not to the pre-crash
// state.
func (s *Service) RunWith(ctx context.Context, initial any) (*Handle, error) {
	strat, err := selectStrategy(s, initial)
	if err != nil {
		return nil, err
	}

	h := &Handle{svc: s, strat: strat}
	api, err := gen.API(s.def, h.dispatch)
	if err != nil {
		strat.stop()
		return nil, err
	}
	h.api = api

	if s.def.Mode == decl.Named {
		if err := s.opts.registry.Register(s.def.ServiceName, registryTarget{h}); err != nil {
			strat.stop()
			return nil, err
		}
	}

	s.opts.logger.Info("service running",
		slog.String("service", s.def.Name),
		slog.String("mode", string(s.def.Mode)))
	return h, nil
}

// Handle is a running service instance. It exposes the generated client
// API; state is never observable through it.
type Handle struct {
	svc   *Service
	strat strategy
	api   map[string]gen.ClientFunc

	stopOnce sync.Once
}

// Call invokes a public clause by name and returns the unwrapped reply
// value. When ctx carries no deadline, the configured call timeout
// applies to the reply wait.
func (h *Handle) Call(ctx context.Context, fn string, args ...any) (any, error) {
	f, ok := h.api[fn]
	if !ok {
		return nil, fmt.Errorf("service %s: no public clause %q", h.svc.def.Name, fn)
	}
	return f(ctx, args...)
}

// Func returns the generated client function for one clause.
func (h *Handle) Func(fn string) (gen.ClientFunc, bool) {
	f, ok := h.api[fn]
	return f, ok
}

// Stop terminates the service instance: supervision first, then workers,
// so shutdown never races a restart. Idempotent.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		if h.svc.def.Mode == decl.Named {
			h.svc.opts.registry.Unregister(h.svc.def.ServiceName)
		}
		h.strat.stop()
		h.svc.opts.logger.Info("service stopped",
			slog.String("service", h.svc.def.Name))
	})
}

// dispatch is the single routed call path behind both Call and the
// generated client functions: apply the default timeout, route through the
// mode strategy, record the trace.
func (h *Handle) dispatch(ctx context.Context, fn string, args []any) (any, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && h.svc.opts.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.svc.opts.callTimeout)
		defer cancel()
	}

	started := time.Now()
	value, workerID, err := h.strat.call(ctx, fn, args)

	if h.svc.trace != nil {
		h.record(ctx, fn, workerID, started, err)
	}
	return value, err
}

func (h *Handle) record(ctx context.Context, fn, workerID string, started time.Time, callErr error) {
	rec := trace.Call{
		Service:   h.svc.def.Name,
		WorkerID:  workerID,
		Function:  fn,
		Mode:      string(h.svc.def.Mode),
		Outcome:   "ok",
		ElapsedUS: time.Since(started).Microseconds(),
	}
	if callErr != nil {
		rec.Outcome = "error"
		rec.Error = callErr.Error()
	}
	// The call context may already be done (timeout path); the record
	// still matters.
	if _, err := h.svc.trace.Append(context.WithoutCancel(ctx), rec); err != nil {
		h.svc.opts.logger.Warn("trace append failed",
			slog.String("service", h.svc.def.Name),
			slog.Any("error", err))
	}
}

// registryTarget adapts a Handle to the registry's call shape.
type registryTarget struct {
	h *Handle
}

func (t registryTarget) Call(ctx context.Context, fn string, args []any) (any, error) {
	return t.h.Call(ctx, fn, args...)
}

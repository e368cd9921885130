package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/genserv/internal/fault"
	"github.com/roach88/genserv/internal/gen"
)

// Status is the worker lifecycle state.
type Status int32

const (
	// StatusCreated means the worker exists but has not started its loop.
	StatusCreated Status = iota + 1
	// StatusRunning means the run loop owns the state and serves requests.
	StatusRunning
	// StatusTerminated means no further requests are accepted.
	StatusTerminated
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusRunning:
		return "running"
	case StatusTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// ExitReason distinguishes a requested stop from a crash.
type ExitReason int

const (
	// ExitStop is a normal, explicitly requested termination.
	ExitStop ExitReason = iota + 1
	// ExitFailure is an abnormal termination caused by an implementation
	// failure. The supervisor restarts on this reason only.
	ExitFailure
)

// Exit describes a worker termination event.
type Exit struct {
	WorkerID string
	Reason   ExitReason
	Err      error // cause, set for ExitFailure
}

// Config carries everything a worker needs at construction.
type Config struct {
	// Service is the owning service name, used in errors and logs.
	Service string
	// Impls maps clause names to generated implementation functions.
	Impls map[string]gen.ImplFunc
	// Identity mints the worker id. Defaults to UUIDv7Generator.
	Identity IdentityGenerator
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Worker is a single-threaded actor owning one state value.
type Worker struct {
	id      string
	service string
	impls   map[string]gen.ImplFunc
	mailbox *mailbox
	logger  *slog.Logger

	status atomic.Int32

	// state is owned exclusively by the run loop once Start returns.
	state any

	// exit is set exactly once, before done is closed.
	exitOnce sync.Once
	exit     Exit
	done     chan struct{}
}

// New creates a worker in StatusCreated. It does not start the run loop.
func New(cfg Config) *Worker {
	ident := cfg.Identity
	if ident == nil {
		ident = UUIDv7Generator{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{
		id:      ident.Generate(),
		service: cfg.Service,
		impls:   cfg.Impls,
		mailbox: newMailbox(),
		logger:  logger,
		done:    make(chan struct{}),
	}
	w.status.Store(int32(StatusCreated))
	return w
}

// ID returns the worker's opaque identity.
func (w *Worker) ID() string { return w.id }

// Status returns the current lifecycle state.
func (w *Worker) Status() Status { return Status(w.status.Load()) }

// Done is closed when the worker terminates. Read Exit() after.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Exit returns the termination event. Valid only after Done is closed.
func (w *Worker) Exit() Exit { return w.exit }

// Start moves Created -> Running with the given initial state and spawns
// the run loop. Starting twice or starting a terminated worker is an error.
func (w *Worker) Start(initial any) error {
	if !w.status.CompareAndSwap(int32(StatusCreated), int32(StatusRunning)) {
		return fmt.Errorf("worker %s: start from status %s", w.id, w.Status())
	}
	w.state = initial
	go w.run()
	w.logger.Debug("worker started",
		slog.String("service", w.service),
		slog.String("worker", w.id))
	return nil
}

// Stop requests a normal termination. Requests already queued are served
// before the worker terminates; new requests are rejected immediately.
// Idempotent and non-blocking; wait on Done for completion.
func (w *Worker) Stop() {
	w.mailbox.Close()
}

// Call sends one request and blocks until the reply arrives or ctx is
// done. A caller that gives up abandons only its own wait: the worker
// still completes the in-flight call and commits its state update.
func (w *Worker) Call(ctx context.Context, fn string, args []any) (any, error) {
	req := request{fn: fn, args: args, reply: make(chan response, 1)}
	if !w.mailbox.Enqueue(req) {
		return nil, fault.Unavailable(w.service, fn, w.id, w.exitErr())
	}
	select {
	case resp := <-req.reply:
		return resp.value, resp.err
	case <-ctx.Done():
		return nil, fault.Timeout(w.service, fn, w.id)
	}
}

// run is the worker's single-writer loop. It is the only goroutine that
// reads or writes w.state.
func (w *Worker) run() {
	for {
		req, ok := w.mailbox.Dequeue()
		if !ok {
			w.terminate(Exit{WorkerID: w.id, Reason: ExitStop})
			return
		}
		if err := w.serve(req); err != nil {
			w.terminate(Exit{WorkerID: w.id, Reason: ExitFailure, Err: err})
			return
		}
	}
}

// serve processes one request. A non-nil return is an implementation
// failure and terminates the worker; the state was not touched.
func (w *Worker) serve(req request) (failure error) {
	impl, ok := w.impls[req.fn]
	if !ok {
		// Routing error, not a logic failure: the generated API makes this
		// unreachable, so it only happens on direct misuse. Reply and live.
		req.reply <- response{err: fmt.Errorf("worker %s: unknown function %q", w.id, req.fn)}
		return nil
	}

	defer func() {
		if p := recover(); p != nil {
			failure = fmt.Errorf("%s: panic: %v", req.fn, p)
			req.reply <- response{err: fault.Unavailable(w.service, req.fn, w.id, failure)}
		}
	}()

	r, err := impl(w.state, req.args)
	if err != nil {
		req.reply <- response{err: fault.Unavailable(w.service, req.fn, w.id, err)}
		return err
	}

	// Commit only after a successful return - a failed call can never
	// leave partial state behind.
	if r.Updates() {
		w.state = r.State()
	}
	req.reply <- response{value: r.Value()}
	return nil
}

// terminate moves the worker to StatusTerminated, rejects and drains the
// mailbox, and publishes the exit event.
func (w *Worker) terminate(e Exit) {
	w.status.Store(int32(StatusTerminated))
	w.mailbox.Close()
	for _, req := range w.mailbox.Drain() {
		req.reply <- response{err: fault.Unavailable(w.service, req.fn, w.id, e.Err)}
	}
	w.exitOnce.Do(func() {
		w.exit = e
		close(w.done)
	})
	if e.Reason == ExitFailure {
		w.logger.Warn("worker terminated abnormally",
			slog.String("service", w.service),
			slog.String("worker", w.id),
			slog.Any("error", e.Err))
	} else {
		w.logger.Debug("worker stopped",
			slog.String("service", w.service),
			slog.String("worker", w.id))
	}
}

func (w *Worker) exitErr() error {
	select {
	case <-w.done:
		return w.exit.Err
	default:
		return nil
	}
}

package service

import (
	"context"
	"sync"

	"github.com/roach88/genserv/internal/decl"
	"github.com/roach88/genserv/internal/fault"
	"github.com/roach88/genserv/internal/pool"
	"github.com/roach88/genserv/internal/supervise"
	"github.com/roach88/genserv/internal/worker"
)

// strategy is one of the four deployment shapes behind a handle. All
// strategies share the same generated implementations and client API; the
// only difference is how a call reaches a worker.
type strategy interface {
	// call routes one request and returns the unwrapped value and the id
	// of the worker that served it ("" for inline).
	call(ctx context.Context, fn string, args []any) (value any, workerID string, err error)
	stop()
}

// selectStrategy is the mode selector: the initialization-time branch
// choosing a concrete runtime for the declaration.
func selectStrategy(s *Service, initial any) (strategy, error) {
	switch s.def.Mode {
	case decl.Inline:
		return nil, ErrInlineMode
	case decl.Anonymous, decl.Named:
		return newSingle(s, initial)
	case decl.Pooled:
		return newPooled(s, initial)
	default:
		return nil, fault.Unavailable(s.def.Name, "", "", nil)
	}
}

// spawnWorker builds and starts one worker with this instance's initial
// state. Used for the first start and for every supervisor replacement -
// restarts discard accumulated state by construction.
func spawnWorker(s *Service, initial any) (*worker.Worker, error) {
	w := worker.New(worker.Config{
		Service:  s.def.Name,
		Impls:    s.impls,
		Identity: s.opts.identity,
		Logger:   s.opts.logger,
	})
	if err := w.Start(initial); err != nil {
		return nil, err
	}
	return w, nil
}

// single runs one worker, for anonymous and named modes. The supervisor
// swaps in replacements behind the mutex, so the handle (and any registry
// registration) stays valid across restarts.
type single struct {
	svc *Service

	mu    sync.RWMutex
	w     *worker.Worker
	fatal error

	sup *supervise.Supervisor
}

func newSingle(s *Service, initial any) (*single, error) {
	st := &single{svc: s}

	sup, err := supervise.New(supervise.Config{
		Service: s.def.Name,
		Policy:  supervise.RestartTransient,
		Budget:  supervise.NewBudget(s.opts.restartMax, s.opts.restartWindow),
		Spawn:   func() (*worker.Worker, error) { return spawnWorker(s, initial) },
		OnReplace: func(_, next *worker.Worker) {
			st.mu.Lock()
			st.w = next
			st.mu.Unlock()
		},
		OnFatal: func(err error) {
			st.mu.Lock()
			st.fatal = err
			st.mu.Unlock()
		},
		Logger: s.opts.logger,
	})
	if err != nil {
		return nil, err
	}
	st.sup = sup

	w, err := spawnWorker(s, initial)
	if err != nil {
		return nil, err
	}
	st.w = w
	sup.Watch(w)
	return st, nil
}

func (st *single) call(ctx context.Context, fn string, args []any) (any, string, error) {
	st.mu.RLock()
	w, fatal := st.w, st.fatal
	st.mu.RUnlock()

	if fatal != nil {
		return nil, "", fault.Unavailable(st.svc.def.Name, fn, "", fatal)
	}
	v, err := w.Call(ctx, fn, args)
	return v, w.ID(), err
}

func (st *single) stop() {
	st.sup.Stop()
	st.mu.RLock()
	w := st.w
	st.mu.RUnlock()
	w.Stop()
}

// pooled runs a supervised bounded pool. Every call checks a worker out,
// dispatches, and checks it back in - including on the failure path, where
// the checked-in corpse is dropped and the supervisor's replacement fills
// the slot.
type pooled struct {
	svc *Service

	mu    sync.RWMutex
	fatal error

	p   *pool.Pool
	sup *supervise.Supervisor
}

func newPooled(s *Service, initial any) (*pooled, error) {
	st := &pooled{svc: s}

	var p *pool.Pool
	sup, err := supervise.New(supervise.Config{
		Service: s.def.Name,
		Policy:  supervise.RestartTransient,
		Budget:  supervise.NewBudget(s.opts.restartMax, s.opts.restartWindow),
		Spawn:   func() (*worker.Worker, error) { return spawnWorker(s, initial) },
		OnReplace: func(old, next *worker.Worker) {
			st.mu.RLock()
			pp := st.p
			st.mu.RUnlock()
			if pp != nil {
				pp.Replace(old, next)
			}
		},
		OnFatal: func(err error) {
			st.mu.Lock()
			st.fatal = err
			pp := st.p
			st.mu.Unlock()
			if pp != nil {
				pp.Fail(err)
			}
		},
		Logger: s.opts.logger,
	})
	if err != nil {
		return nil, err
	}

	p, err = pool.New(pool.Config{
		Service:   s.def.Name,
		Min:       s.def.Pool.Min,
		Max:       s.def.Pool.Max,
		Spawn:     func() (*worker.Worker, error) { return spawnWorker(s, initial) },
		Watch:     sup.Watch,
		IdleGrace: s.opts.idleGrace,
		Logger:    s.opts.logger,
	})
	if err != nil {
		sup.Stop()
		return nil, err
	}

	st.mu.Lock()
	st.p = p
	st.sup = sup
	st.mu.Unlock()
	return st, nil
}

func (st *pooled) call(ctx context.Context, fn string, args []any) (any, string, error) {
	st.mu.RLock()
	p, fatal := st.p, st.fatal
	st.mu.RUnlock()

	if fatal != nil {
		return nil, "", fault.Unavailable(st.svc.def.Name, fn, "", fatal)
	}

	checkoutCtx, cancel := context.WithTimeout(ctx, st.svc.opts.checkoutTimeout)
	w, err := p.Checkout(checkoutCtx)
	cancel()
	if err != nil {
		return nil, "", err
	}
	defer p.Checkin(w)

	v, err := w.Call(ctx, fn, args)
	return v, w.ID(), err
}

func (st *pooled) stop() {
	st.sup.Stop()
	st.p.Close()
}

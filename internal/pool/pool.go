// Package pool implements the bounded worker pool for pooled services.
//
// The pool is the sole owner and router of its worker set. Checkout hands
// out an idle worker, growing lazily up to the configured max; beyond max,
// callers block until a worker frees up or their timeout elapses. Checkin
// returns a worker and may retire it when the pool is above min and the
// worker has been idle past the grace period.
//
// Thread-safety: all membership mutation happens under the pool's own
// mutex. Implementation functions never see pool membership.
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/genserv/internal/fault"
	"github.com/roach88/genserv/internal/worker"
)

// Config wires a pool to its service.
type Config struct {
	// Service is the owning service name, for errors and logs.
	Service string
	// Min and Max bound the worker count. Max >= 1, Min <= Max.
	Min, Max uint
	// Spawn builds and starts one worker. Required.
	Spawn func() (*worker.Worker, error)
	// Watch hands every started worker to the supervisor. Optional.
	Watch func(*worker.Worker)
	// IdleGrace is how long a worker above Min may sit idle before being
	// retired on a later checkin. Zero disables retirement.
	IdleGrace time.Duration
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// entry tracks one pool member. lastUsed is meaningful while idle.
type entry struct {
	w        *worker.Worker
	busy     bool
	lastUsed time.Time
}

// Pool maintains a bounded set of workers with checkout/checkin.
type Pool struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	entries []*entry
	waiters []chan *worker.Worker // FIFO, each buffered cap 1
	failed  error
	closed  bool
}

// New creates a pool and eagerly starts Min workers.
func New(cfg Config) (*Pool, error) {
	if cfg.Spawn == nil {
		return nil, fmt.Errorf("pool: nil spawn")
	}
	if cfg.Max == 0 || cfg.Min > cfg.Max {
		return nil, fmt.Errorf("pool: invalid bounds %d..%d", cfg.Min, cfg.Max)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	p := &Pool{cfg: cfg, now: time.Now}
	for i := uint(0); i < cfg.Min; i++ {
		w, err := p.spawn()
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("pool: start minimum workers: %w", err)
		}
		p.entries = append(p.entries, &entry{w: w, lastUsed: p.now()})
	}
	return p, nil
}

func (p *Pool) spawn() (*worker.Worker, error) {
	w, err := p.cfg.Spawn()
	if err != nil {
		return nil, err
	}
	if p.cfg.Watch != nil {
		p.cfg.Watch(w)
	}
	return w, nil
}

// Checkout returns a worker for exclusive use until Checkin. Order of
// preference: an idle worker; a new worker while below Max; otherwise the
// caller waits. An elapsed timeout or canceled context is reported as pool
// exhaustion - never is a worker beyond Max created.
func (p *Pool) Checkout(ctx context.Context) (*worker.Worker, error) {
	p.mu.Lock()
	if p.closed || p.failed != nil {
		err := p.failed
		p.mu.Unlock()
		return nil, fault.Unavailable(p.cfg.Service, "", "", err)
	}

	// Drop members that died while idle; the supervisor refills via
	// Replace, so this only tightens the scan.
	p.pruneLocked()

	for _, e := range p.entries {
		if !e.busy && e.w.Status() == worker.StatusRunning {
			e.busy = true
			p.mu.Unlock()
			return e.w, nil
		}
	}

	if uint(len(p.entries)) < p.cfg.Max {
		w, err := p.spawn()
		if err != nil {
			p.mu.Unlock()
			return nil, fmt.Errorf("pool: grow: %w", err)
		}
		p.entries = append(p.entries, &entry{w: w, busy: true})
		p.mu.Unlock()
		p.cfg.Logger.Debug("pool grew",
			slog.String("service", p.cfg.Service),
			slog.String("worker", w.ID()))
		return w, nil
	}

	// At capacity: wait for a checkin to hand a worker over.
	ch := make(chan *worker.Worker, 1)
	p.waiters = append(p.waiters, ch)
	p.mu.Unlock()

	select {
	case w, ok := <-ch:
		if !ok || w == nil {
			p.mu.Lock()
			err := p.failed
			p.mu.Unlock()
			return nil, fault.Unavailable(p.cfg.Service, "", "", err)
		}
		return w, nil
	case <-ctx.Done():
		p.mu.Lock()
		p.removeWaiterLocked(ch)
		p.mu.Unlock()
		// A checkin may have raced the timeout and already handed us a
		// worker; give it back so it is not stranded busy.
		select {
		case w := <-ch:
			if w != nil {
				p.Checkin(w)
			}
		default:
		}
		return nil, fault.PoolExhausted(p.cfg.Service, "", ctx.Err())
	}
}

// Checkin returns a worker after a call completes. A worker that died
// mid-call is removed here; its slot is refilled by the supervisor through
// Replace, so the failure path still hands later callers a fresh worker.
func (p *Pool) Checkin(w *worker.Worker) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e := p.findLocked(w)
	if e == nil {
		// Already replaced or retired.
		return
	}
	if w.Status() == worker.StatusTerminated {
		p.removeLocked(w)
		return
	}

	if ch, ok := p.popWaiterLocked(); ok {
		// Hand off directly: the worker stays busy, the waiter owns it.
		e.lastUsed = p.now()
		ch <- w
		return
	}

	e.busy = false
	e.lastUsed = p.now()
	p.retireIdleLocked()
}

// Replace swaps a dead member for its supervisor-supplied replacement. If
// the dead member was already removed, the replacement fills a free slot
// instead, or is stopped if the pool shrank to capacity in the meantime.
func (p *Pool) Replace(old, next *worker.Worker) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.failed != nil {
		next.Stop()
		return
	}

	e := p.findLocked(old)
	if e == nil {
		if uint(len(p.entries)) >= p.cfg.Max {
			next.Stop()
			return
		}
		e = &entry{w: next, busy: true}
		p.entries = append(p.entries, e)
	} else {
		e.w = next
		e.busy = true
	}

	if ch, ok := p.popWaiterLocked(); ok {
		e.lastUsed = p.now()
		ch <- next
		return
	}
	e.busy = false
	e.lastUsed = p.now()
}

// Fail marks the pool permanently unavailable (restart budget exceeded).
// All members are stopped and blocked waiters are released.
func (p *Pool) Fail(err error) {
	p.mu.Lock()
	if p.failed == nil {
		p.failed = err
	}
	p.shutdownLocked()
	p.mu.Unlock()
}

// Close stops every member and releases waiters. Idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.shutdownLocked()
	p.mu.Unlock()
}

// Len returns the current member count (busy and idle).
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Idle returns the number of idle members.
func (p *Pool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.entries {
		if !e.busy {
			n++
		}
	}
	return n
}

func (p *Pool) shutdownLocked() {
	for _, e := range p.entries {
		e.w.Stop()
	}
	p.entries = nil
	for _, ch := range p.waiters {
		close(ch)
	}
	p.waiters = nil
}

func (p *Pool) findLocked(w *worker.Worker) *entry {
	for _, e := range p.entries {
		if e.w == w {
			return e
		}
	}
	return nil
}

func (p *Pool) removeLocked(w *worker.Worker) {
	for i, e := range p.entries {
		if e.w == w {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return
		}
	}
}

// pruneLocked drops idle members that terminated behind the pool's back.
func (p *Pool) pruneLocked() {
	kept := p.entries[:0]
	for _, e := range p.entries {
		if !e.busy && e.w.Status() == worker.StatusTerminated {
			continue
		}
		kept = append(kept, e)
	}
	p.entries = kept
}

// retireIdleLocked stops members above Min that have sat idle beyond the
// grace period. Called on checkin only; a zero grace disables retirement.
func (p *Pool) retireIdleLocked() {
	if p.cfg.IdleGrace <= 0 {
		return
	}
	cutoff := p.now().Add(-p.cfg.IdleGrace)
	for uint(len(p.entries)) > p.cfg.Min {
		retired := false
		for i, e := range p.entries {
			if !e.busy && e.lastUsed.Before(cutoff) {
				e.w.Stop()
				p.entries = append(p.entries[:i], p.entries[i+1:]...)
				p.cfg.Logger.Debug("pool retired idle worker",
					slog.String("service", p.cfg.Service),
					slog.String("worker", e.w.ID()))
				retired = true
				break
			}
		}
		if !retired {
			return
		}
	}
}

func (p *Pool) popWaiterLocked() (chan *worker.Worker, bool) {
	if len(p.waiters) == 0 {
		return nil, false
	}
	ch := p.waiters[0]
	p.waiters = p.waiters[1:]
	return ch, true
}

func (p *Pool) removeWaiterLocked(ch chan *worker.Worker) {
	for i, c := range p.waiters {
		if c == ch {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
}

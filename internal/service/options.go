package service

import (
	"log/slog"
	"time"

	"github.com/roach88/genserv/internal/registry"
	"github.com/roach88/genserv/internal/worker"
)

// Defaults for the tunables below.
const (
	DefaultCallTimeout     = 5 * time.Second
	DefaultCheckoutTimeout = 5 * time.Second
	DefaultIdleGrace       = 30 * time.Second
	DefaultRestartMax      = 3
	DefaultRestartWindow   = 5 * time.Second
)

type options struct {
	logger          *slog.Logger
	callTimeout     time.Duration
	checkoutTimeout time.Duration
	idleGrace       time.Duration
	restartMax      int
	restartWindow   time.Duration
	registry        *registry.Registry
	identity        worker.IdentityGenerator
	tracePath       string
}

// Option configures a Service at build time.
type Option func(*options)

func defaultOptions() options {
	return options{
		logger:          slog.Default(),
		callTimeout:     DefaultCallTimeout,
		checkoutTimeout: DefaultCheckoutTimeout,
		idleGrace:       DefaultIdleGrace,
		restartMax:      DefaultRestartMax,
		restartWindow:   DefaultRestartWindow,
		registry:        registry.Default(),
	}
}

// WithLogger sets the structured logger for the service and its workers.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCallTimeout bounds the caller's reply wait when its context carries
// no deadline of its own. The worker still completes and commits a timed-
// out call.
func WithCallTimeout(d time.Duration) Option {
	return func(o *options) { o.callTimeout = d }
}

// WithCheckoutTimeout bounds how long a pooled call may wait for a free
// worker before failing with a pool-exhausted condition.
func WithCheckoutTimeout(d time.Duration) Option {
	return func(o *options) { o.checkoutTimeout = d }
}

// WithIdleGrace sets how long a pool worker above min may sit idle before
// retirement. Zero disables retirement.
func WithIdleGrace(d time.Duration) Option {
	return func(o *options) { o.idleGrace = d }
}

// WithRestartBudget bounds worker restarts to max within window. Exceeding
// the budget makes the service permanently unavailable.
func WithRestartBudget(max int, window time.Duration) Option {
	return func(o *options) {
		o.restartMax = max
		o.restartWindow = window
	}
}

// WithRegistry overrides the process-wide registry used by named mode.
// Tests use this to avoid cross-test name collisions.
func WithRegistry(r *registry.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithIdentityGenerator overrides worker id minting, for deterministic
// tests.
func WithIdentityGenerator(g worker.IdentityGenerator) Option {
	return func(o *options) { o.identity = g }
}

// WithTrace records every client call into a SQLite trace database at
// path. Only honored when the declaration enables diagnostics.
func WithTrace(path string) Option {
	return func(o *options) { o.tracePath = path }
}

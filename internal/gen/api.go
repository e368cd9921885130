package gen

import (
	"context"
	"fmt"

	"github.com/roach88/genserv/internal/decl"
	"github.com/roach88/genserv/internal/reply"
)

// CallFunc routes one request to a worker and returns the unwrapped reply
// value. The mode strategy (single worker, named lookup, pool checkout)
// supplies it; the generated client functions forward to it.
type CallFunc func(ctx context.Context, fn string, args []any) (any, error)

// ClientFunc is a caller-facing function for one public clause. The state
// parameter is elided: callers never observe state.
type ClientFunc func(ctx context.Context, args ...any) (any, error)

// InlineFunc is the inline-mode client shape. No worker exists, so the
// caller threads state explicitly and receives the successor state back
// alongside the value. This is the escape hatch for code that must not pay
// actor overhead.
type InlineFunc func(state any, args ...any) (value any, next any, err error)

// API generates the client function for every public clause, each
// forwarding to call. Arity is checked before dispatch so a misuse fails in
// the caller's stack, not inside a worker.
func API(svc *decl.Service, call CallFunc) (map[string]ClientFunc, error) {
	if call == nil {
		return nil, fmt.Errorf("gen: nil call router")
	}
	api := make(map[string]ClientFunc, len(svc.Clauses))
	for _, c := range svc.Public() {
		name := c.Name
		arity := c.Arity()
		api[name] = func(ctx context.Context, args ...any) (any, error) {
			if len(args) != arity {
				return nil, &ArityError{Clause: name, Want: arity, Got: len(args)}
			}
			return call(ctx, name, args)
		}
	}
	return api, nil
}

// InlineAPI generates the inline-mode client functions, calling the pure
// implementations directly with no actor and no concurrency.
func InlineAPI(svc *decl.Service) (map[string]InlineFunc, error) {
	impls, err := Implementations(svc)
	if err != nil {
		return nil, err
	}
	api := make(map[string]InlineFunc, len(impls))
	for _, c := range svc.Public() {
		impl := impls[c.Name]
		api[c.Name] = func(state any, args ...any) (any, any, error) {
			r, err := impl(state, args)
			if err != nil {
				return nil, state, err
			}
			if r.Kind() == reply.KindWithState {
				return r.Value(), r.State(), nil
			}
			return r.Value(), state, nil
		}
	}
	return api, nil
}

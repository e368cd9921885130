package gen

import (
	"fmt"

	"github.com/roach88/genserv/internal/decl"
	"github.com/roach88/genserv/internal/reply"
)

// ImplFunc is a generated pure implementation: current state in, normalized
// reply out. A returned reply is always Plain or WithState (SetState is
// resolved here). ImplFunc never performs process control; committing the
// successor state is the worker runtime's job.
type ImplFunc func(state any, args []any) (reply.Reply, error)

// ArityError reports a call with the wrong number of arguments. It is a
// generation-layer error, raised before the clause handler runs.
type ArityError struct {
	Clause string
	Want   int
	Got    int
}

// Error implements the error interface.
func (e *ArityError) Error() string {
	return fmt.Sprintf("%s: wrong number of arguments (want %d, got %d)", e.Clause, e.Want, e.Got)
}

// Implementations builds the pure implementation function for every public
// clause of the service. Private helper clauses are passed through
// untouched (they are plain functions, not state entry points) and do not
// appear in the result.
//
// Every public clause must have a handler bound; an unbound clause is a
// build error, not a call-time error.
func Implementations(svc *decl.Service) (map[string]ImplFunc, error) {
	impls := make(map[string]ImplFunc, len(svc.Clauses))
	for _, c := range svc.Public() {
		if c.Handler == nil {
			return nil, fmt.Errorf("gen: clause %q has no handler bound", c.Name)
		}
		impls[c.Name] = implement(c)
	}
	return impls, nil
}

// implement wraps one clause handler with arity checking and reply
// normalization. The clause value is copied so later mutation of the
// declaration cannot change generated behavior.
func implement(c decl.Clause) ImplFunc {
	arity := c.Arity()
	name := c.Name
	handler := c.Handler
	return func(state any, args []any) (reply.Reply, error) {
		if len(args) != arity {
			return reply.Reply{}, &ArityError{Clause: name, Want: arity, Got: len(args)}
		}
		r, err := handler(state, args)
		if err != nil {
			return reply.Reply{}, fmt.Errorf("%s: %w", name, err)
		}
		return reply.Normalize(r)
	}
}

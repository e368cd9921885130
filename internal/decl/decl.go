package decl

import (
	"fmt"

	"github.com/roach88/genserv/internal/reply"
)

// Mode selects the deployment shape of a generated service.
type Mode string

const (
	// Inline generates no process at all. Client functions call the pure
	// implementation directly against a state value threaded by the caller.
	Inline Mode = "inline"
	// Anonymous generates a single unnamed worker reachable only through
	// the handle returned by run.
	Anonymous Mode = "anonymous"
	// Named generates a global singleton worker registered under
	// ServiceName and looked up by name.
	Named Mode = "named"
	// Pooled generates a supervised bounded pool of workers.
	Pooled Mode = "pooled"
)

// ValidModes defines allowed deployment modes.
var ValidModes = map[Mode]bool{
	Inline:    true,
	Anonymous: true,
	Named:     true,
	Pooled:    true,
}

// Visibility marks a clause as a state entry point or an internal helper.
type Visibility string

const (
	// Public clauses become client API functions. Their first parameter is
	// the state slot, renamed to the service's StateVar at emission time.
	Public Visibility = "public"
	// Private clauses are helpers. They are never wrapped and never
	// reachable through the client API.
	Private Visibility = "private"
)

// ValidVisibilities defines allowed clause visibilities.
var ValidVisibilities = map[Visibility]bool{
	Public:  true,
	Private: true,
}

// HandlerFunc is the shape of a public clause body: a pure function of the
// current state and the caller's arguments, returning a reply that either
// leaves state alone (reply.Plain) or carries a successor state
// (reply.WithState / reply.SetState).
//
// Handlers must be deterministic in (state, args) and must not perform
// process control. The worker runtime commits the successor state only
// after the handler returns without error.
type HandlerFunc func(state any, args []any) (reply.Reply, error)

// PoolBounds constrains a pooled service's worker count.
type PoolBounds struct {
	Min uint `json:"min"`
	Max uint `json:"max"`
}

// Clause is one declared function of a service.
//
// For public clauses, Params lists the declared parameter names including
// the leading state slot; the runtime arity seen by callers is
// len(Params)-1. Private clauses declare exactly the parameters they take.
type Clause struct {
	Name       string      `json:"name"`
	Visibility Visibility  `json:"visibility"`
	Params     []string    `json:"params"`
	Doc        string      `json:"doc,omitempty"`
	Handler    HandlerFunc `json:"-"`
}

// Arity returns the number of arguments a caller passes to this clause,
// i.e. the declared parameters minus the state slot for public clauses.
func (c *Clause) Arity() int {
	if c.Visibility == Public && len(c.Params) > 0 {
		return len(c.Params) - 1
	}
	return len(c.Params)
}

// Service is the complete declaration of one stateful service.
//
// Invariants (enforced by Validate):
//   - Pool is present iff Mode is Pooled, with Min <= Max and Max >= 1
//   - ServiceName is present iff Mode is Named
//   - clause names are unique identifiers
//   - every public clause declares at least the state slot
type Service struct {
	Name         string      `json:"name"`
	Mode         Mode        `json:"mode"`
	InitialState any         `json:"state"`
	StateVar     string      `json:"state_name"`
	ServiceName  string      `json:"service_name,omitempty"`
	Pool         *PoolBounds `json:"pool,omitempty"`
	Diagnostics  bool        `json:"diagnostics"`
	Clauses      []Clause    `json:"functions"`
}

// Clause returns the clause with the given name, or nil.
func (s *Service) Clause(name string) *Clause {
	for i := range s.Clauses {
		if s.Clauses[i].Name == name {
			return &s.Clauses[i]
		}
	}
	return nil
}

// Public returns the public clauses in declaration order.
// Declaration order is preserved everywhere downstream so that generated
// output is deterministic.
func (s *Service) Public() []Clause {
	var out []Clause
	for _, c := range s.Clauses {
		if c.Visibility == Public {
			out = append(out, c)
		}
	}
	return out
}

// Bind attaches a handler body to the named public clause.
//
// Declarations loaded from CUE carry clause signatures only; the Go handler
// bodies are bound afterwards, before Build. Binding a private or unknown
// clause is an error.
func (s *Service) Bind(name string, fn HandlerFunc) error {
	c := s.Clause(name)
	if c == nil {
		return fmt.Errorf("bind %s: no such clause", name)
	}
	if c.Visibility != Public {
		return fmt.Errorf("bind %s: clause is private, helpers are not bound", name)
	}
	if fn == nil {
		return fmt.Errorf("bind %s: nil handler", name)
	}
	c.Handler = fn
	return nil
}

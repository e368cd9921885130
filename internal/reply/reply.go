// Package reply defines the normalized reply shape shared by every
// generated implementation function, and the translation from the
// set-state-then-reply idiom into that shape.
//
// reply is a leaf package: it imports nothing internal.
package reply

import "fmt"

// Kind distinguishes reply variants.
type Kind int

const (
	// KindPlain is an ordinary return value. The worker's state is left
	// unchanged.
	KindPlain Kind = iota + 1
	// KindWithState carries a return value together with the successor
	// state the worker must commit before replying.
	KindWithState
	// KindSetState is the set-state-and-return-it shorthand: a new state
	// with the result expression omitted. Normalize resolves it to
	// KindWithState with the value defaulted to the new state itself.
	KindSetState
)

// Reply is the tagged union produced by every clause handler.
//
// Only the constructors below build valid replies. A normalized Reply is
// always KindPlain or KindWithState.
type Reply struct {
	kind  Kind
	value any
	state any
}

// Plain returns a reply that leaves state unchanged.
func Plain(v any) Reply {
	return Reply{kind: KindPlain, value: v}
}

// WithState returns a reply carrying both a value and a successor state.
func WithState(v, state any) Reply {
	return Reply{kind: KindWithState, value: v, state: state}
}

// SetState returns the shorthand reply whose value defaults to the new
// state itself.
func SetState(state any) Reply {
	return Reply{kind: KindSetState, state: state}
}

// Kind reports the reply variant.
func (r Reply) Kind() Kind { return r.kind }

// Value returns the reply value handed back to the caller.
func (r Reply) Value() any { return r.value }

// State returns the successor state. Only meaningful for KindWithState
// and KindSetState replies.
func (r Reply) State() any { return r.state }

// Updates reports whether committing this reply changes worker state.
func (r Reply) Updates() bool {
	return r.kind == KindWithState || r.kind == KindSetState
}

// Normalize classifies a handler reply into the two normalized variants.
//
// The translation is purely structural and idempotent:
//   - Plain stays Plain
//   - WithState stays WithState
//   - SetState becomes WithState(state, state)
//
// A zero Reply (a handler that forgot to use a constructor) is an error
// rather than a silent Plain(nil).
func Normalize(r Reply) (Reply, error) {
	switch r.kind {
	case KindPlain, KindWithState:
		return r, nil
	case KindSetState:
		return Reply{kind: KindWithState, value: r.state, state: r.state}, nil
	default:
		return Reply{}, fmt.Errorf("reply: zero Reply, handlers must use Plain, WithState, or SetState")
	}
}

// String returns a compact debug rendering.
func (r Reply) String() string {
	switch r.kind {
	case KindPlain:
		return fmt.Sprintf("Plain(%v)", r.value)
	case KindWithState:
		return fmt.Sprintf("WithState(%v, %v)", r.value, r.state)
	case KindSetState:
		return fmt.Sprintf("SetState(%v)", r.state)
	default:
		return "Reply(zero)"
	}
}

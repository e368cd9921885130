package gen

import (
	"fmt"
	"strings"

	"github.com/roach88/genserv/internal/decl"
)

// Emit renders the generated pure implementations, client API, and worker
// wiring as Go-like source for inspection. This is the diagnostics surface:
// the output has no runtime effect and is never compiled.
//
// Output is deterministic: clauses appear in declaration order, and the
// rendering depends only on the declaration. Golden tests pin the format.
func Emit(svc *decl.Service) (string, error) {
	if errs := svc.Validate(); len(errs) > 0 {
		return "", fmt.Errorf("gen: emit on invalid declaration: %s", errs[0].Error())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "// Code generated by genserv for service %q. Inspection only.\n", svc.Name)
	fmt.Fprintf(&b, "//\n// mode: %s%s\n", svc.Mode, emitModeDetail(svc))
	if svc.StateVar != "" {
		fmt.Fprintf(&b, "// state variable: %s\n", svc.StateVar)
	}
	b.WriteString("\n")

	emitImpls(&b, svc)
	emitClientAPI(&b, svc)
	emitWiring(&b, svc)

	return b.String(), nil
}

func emitModeDetail(svc *decl.Service) string {
	switch svc.Mode {
	case decl.Pooled:
		return fmt.Sprintf(" (pool %d..%d)", svc.Pool.Min, svc.Pool.Max)
	case decl.Named:
		return fmt.Sprintf(" (registered as %q)", svc.ServiceName)
	default:
		return ""
	}
}

// emitImpls renders one pure implementation per public clause, with the
// declared state slot renamed to the service's state variable. That rename
// is the only trace the state-variable convenience leaves: at runtime the
// binding is just the first parameter.
func emitImpls(b *strings.Builder, svc *decl.Service) {
	b.WriteString("// --- pure implementations ---\n\n")
	for _, c := range svc.Clauses {
		if c.Visibility == decl.Private {
			// Helpers pass through unchanged.
			fmt.Fprintf(b, "func %s(%s) any // private helper, emitted unchanged\n\n", c.Name, paramList(c.Params))
			continue
		}
		params := renameStateSlot(c.Params, svc.StateVar)
		fmt.Fprintf(b, "// %s_impl_%s is pure: identical (state, args) yield an identical reply.\n", svc.Name, c.Name)
		fmt.Fprintf(b, "func %s_impl_%s(%s) reply.Reply // -> Plain | WithState\n\n", svc.Name, c.Name, paramList(params))
	}
}

func emitClientAPI(b *strings.Builder, svc *decl.Service) {
	b.WriteString("// --- client API ---\n\n")
	for _, c := range svc.Public() {
		args := c.Params[1:]
		fmt.Fprintf(b, "// %s(%s) forwards to %s and unwraps the reply; state is never exposed.\n",
			c.Name, strings.Join(args, ", "), routeDescription(svc))
		if svc.Mode == decl.Inline {
			fmt.Fprintf(b, "func %s(state any%s) (value any, next any, err error)\n\n", c.Name, paramTail(args))
		} else {
			fmt.Fprintf(b, "func %s(ctx context.Context%s) (any, error)\n\n", c.Name, paramTail(args))
		}
	}
}

func emitWiring(b *strings.Builder, svc *decl.Service) {
	b.WriteString("// --- worker wiring ---\n\n")
	switch svc.Mode {
	case decl.Inline:
		b.WriteString("// inline mode: no worker is started; callers thread state explicitly.\n")
	case decl.Anonymous:
		b.WriteString("// run() / run(initial) start one anonymous worker owning private state;\n")
		b.WriteString("// requests are served strictly FIFO from its mailbox.\n")
		b.WriteString("func run(initial ...any) (Handle, error)\n")
	case decl.Named:
		fmt.Fprintf(b, "// run() / run(initial) start the singleton worker and register it as %q;\n", svc.ServiceName)
		b.WriteString("// clients resolve the handle by name at call time.\n")
		b.WriteString("func run(initial ...any) error\n")
	case decl.Pooled:
		fmt.Fprintf(b, "// run() / run(initial) start a supervised pool of %d..%d workers; calls\n", svc.Pool.Min, svc.Pool.Max)
		b.WriteString("// checkout a worker, dispatch, and checkin after the reply.\n")
		b.WriteString("func run(initial ...any) (Handle, error)\n")
	}
}

func routeDescription(svc *decl.Service) string {
	switch svc.Mode {
	case decl.Inline:
		return "the pure implementation"
	case decl.Anonymous:
		return "the anonymous worker"
	case decl.Named:
		return fmt.Sprintf("the worker registered as %q", svc.ServiceName)
	case decl.Pooled:
		return "a checked-out pool worker"
	default:
		return "?"
	}
}

func renameStateSlot(params []string, stateVar string) []string {
	if len(params) == 0 || stateVar == "" {
		return params
	}
	out := make([]string, len(params))
	copy(out, params)
	out[0] = stateVar
	return out
}

func paramList(params []string) string {
	if len(params) == 0 {
		return ""
	}
	return strings.Join(params, " any, ") + " any"
}

func paramTail(params []string) string {
	if len(params) == 0 {
		return ""
	}
	return ", " + paramList(params)
}

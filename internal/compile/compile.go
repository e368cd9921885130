// Package compile loads service declarations from CUE files into the
// declaration model.
//
// A declaration file carries the generation-time configuration surface -
// mode, initial state, state-variable name, service name, pool bounds,
// diagnostics - and the clause signatures. Clause bodies are Go functions
// bound afterwards with decl.Service.Bind; compile only establishes the
// shape they must match.
//
// Uses the CUE SDK's Go API directly (not a CLI subprocess).
package compile

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/genserv/internal/decl"
)

// Load reads a CUE file and compiles every service declared under the
// top-level "service" struct, in declaration order.
func Load(path string) ([]*decl.Service, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("compile: read %s: %w", path, err)
	}

	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return Compile(v)
}

// Compile extracts service declarations from a compiled CUE value. The
// value must contain a top-level "service" struct keyed by service name:
//
//	service: counter: {
//	    mode: "pooled"
//	    state: {}
//	    state_name: "cache"
//	    pool: {min: 1, max: 4}
//	    diagnostics: true
//	    functions: [
//	        {name: "fib", params: ["cache", "n"]},
//	    ]
//	}
func Compile(v cue.Value) ([]*decl.Service, error) {
	root := v.LookupPath(cue.ParsePath("service"))
	if !root.Exists() {
		return nil, &CompileError{Field: "service", Message: "no top-level service struct", Pos: v.Pos()}
	}

	iter, err := root.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var services []*decl.Service
	for iter.Next() {
		svc, err := CompileService(iter.Selector().String(), iter.Value())
		if err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	if len(services) == 0 {
		return nil, &CompileError{Field: "service", Message: "no services declared", Pos: root.Pos()}
	}
	return services, nil
}

// CompileService parses one service struct into the declaration model,
// then validates it. Identifiers crossing the CUE boundary are NFC
// normalized so visually identical names can never alias distinct clauses.
func CompileService(name string, v cue.Value) (*decl.Service, error) {
	svc := &decl.Service{Name: ident(name)}

	mode, err := requiredString(v, "mode")
	if err != nil {
		return nil, err
	}
	svc.Mode = decl.Mode(mode)

	if sv := v.LookupPath(cue.ParsePath("state")); sv.Exists() {
		var state any
		if err := sv.Decode(&state); err != nil {
			return nil, formatCUEError(err)
		}
		svc.InitialState = state
	}

	if sn := v.LookupPath(cue.ParsePath("state_name")); sn.Exists() {
		s, err := sn.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		svc.StateVar = ident(s)
	}

	if sn := v.LookupPath(cue.ParsePath("service_name")); sn.Exists() {
		s, err := sn.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if s != "" {
			svc.ServiceName = ident(s)
		}
	}

	if pv := v.LookupPath(cue.ParsePath("pool")); pv.Exists() {
		bounds, err := compilePool(pv)
		if err != nil {
			return nil, err
		}
		svc.Pool = bounds
	}

	if dv := v.LookupPath(cue.ParsePath("diagnostics")); dv.Exists() {
		b, err := dv.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		svc.Diagnostics = b
	}

	clauses, err := compileClauses(v)
	if err != nil {
		return nil, err
	}
	svc.Clauses = clauses

	if errs := svc.Validate(); len(errs) > 0 {
		return nil, &CompileError{
			Field:   svc.Name,
			Message: errs[0].Error(),
			Pos:     v.Pos(),
		}
	}
	return svc, nil
}

func compilePool(v cue.Value) (*decl.PoolBounds, error) {
	min, err := requiredUint(v, "min")
	if err != nil {
		return nil, err
	}
	max, err := requiredUint(v, "max")
	if err != nil {
		return nil, err
	}
	return &decl.PoolBounds{Min: min, Max: max}, nil
}

func compileClauses(v cue.Value) ([]decl.Clause, error) {
	fv := v.LookupPath(cue.ParsePath("functions"))
	if !fv.Exists() {
		return nil, &CompileError{Field: "functions", Message: "functions list is required", Pos: v.Pos()}
	}

	iter, err := fv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var clauses []decl.Clause
	for iter.Next() {
		c, err := compileClause(iter.Value())
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, c)
	}
	return clauses, nil
}

func compileClause(v cue.Value) (decl.Clause, error) {
	c := decl.Clause{Visibility: decl.Public}

	name, err := requiredString(v, "name")
	if err != nil {
		return c, err
	}
	c.Name = ident(name)

	if vis := v.LookupPath(cue.ParsePath("visibility")); vis.Exists() {
		s, err := vis.String()
		if err != nil {
			return c, formatCUEError(err)
		}
		c.Visibility = decl.Visibility(s)
	}

	pv := v.LookupPath(cue.ParsePath("params"))
	if pv.Exists() {
		iter, err := pv.List()
		if err != nil {
			return c, formatCUEError(err)
		}
		for iter.Next() {
			p, err := iter.Value().String()
			if err != nil {
				return c, formatCUEError(err)
			}
			c.Params = append(c.Params, ident(p))
		}
	}

	if dv := v.LookupPath(cue.ParsePath("doc")); dv.Exists() {
		s, err := dv.String()
		if err != nil {
			return c, formatCUEError(err)
		}
		c.Doc = s
	}

	return c, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func requiredUint(v cue.Value, field string) (uint, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	n, err := fv.Uint64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return uint(n), nil
}

// ident NFC-normalizes an identifier from the declaration file.
func ident(s string) string {
	return norm.NFC.String(s)
}

// Package builtin carries the example clause sets shipped with the CLI:
// a memoizing fibonacci cache and a key-value store. They double as
// end-to-end fixtures for the runtime tests.
package builtin

import (
	"fmt"

	"github.com/roach88/genserv/internal/decl"
	"github.com/roach88/genserv/internal/reply"
)

// Absent is the marker returned by kvstore.get for a missing key, so a
// stored nil and a missing key are distinguishable.
var Absent = absent{}

type absent struct{}

func (absent) String() string { return "absent" }

// Known returns the builtin service for a name, or nil.
func Known(name string, mode decl.Mode) *decl.Service {
	switch name {
	case "counter":
		return Counter(mode)
	case "kvstore":
		return KVStore(mode)
	default:
		return nil
	}
}

// Counter declares the memoizing fibonacci service: state is a cache of
// already-computed values, and every call that extends the cache returns
// the updated cache alongside the result.
func Counter(mode decl.Mode) *decl.Service {
	svc := &decl.Service{
		Name:         "counter",
		Mode:         mode,
		InitialState: map[int64]int64{},
		StateVar:     "cache",
		Clauses: []decl.Clause{
			{Name: "fib", Visibility: decl.Public, Params: []string{"cache", "n"},
				Doc: "memoized fibonacci"},
			{Name: "cached", Visibility: decl.Public, Params: []string{"cache"},
				Doc: "number of cached entries"},
		},
	}
	applyMode(svc, "counter_svc")
	must(svc.Bind("fib", fib))
	must(svc.Bind("cached", cached))
	return svc
}

func fib(state any, args []any) (reply.Reply, error) {
	cache := state.(map[int64]int64)
	n, err := asInt(args[0])
	if err != nil {
		return reply.Reply{}, err
	}
	if n < 0 {
		return reply.Reply{}, fmt.Errorf("fib: negative input %d", n)
	}
	if v, ok := cache[n]; ok {
		// Warm cache: plain reply, state untouched.
		return reply.Plain(v), nil
	}

	next := make(map[int64]int64, len(cache)+int(n))
	for k, v := range cache {
		next[k] = v
	}
	next[0], next[1] = 0, 1
	for i := int64(2); i <= n; i++ {
		if _, ok := next[i]; !ok {
			next[i] = next[i-1] + next[i-2]
		}
	}
	return reply.WithState(next[n], next), nil
}

func cached(state any, args []any) (reply.Reply, error) {
	cache := state.(map[int64]int64)
	return reply.Plain(int64(len(cache))), nil
}

// KVStore declares the key-value service over an immutable map state.
func KVStore(mode decl.Mode) *decl.Service {
	svc := &decl.Service{
		Name:         "kvstore",
		Mode:         mode,
		InitialState: map[string]any{},
		StateVar:     "store",
		Clauses: []decl.Clause{
			{Name: "put", Visibility: decl.Public, Params: []string{"store", "key", "value"}},
			{Name: "get", Visibility: decl.Public, Params: []string{"store", "key"}},
			{Name: "del", Visibility: decl.Public, Params: []string{"store", "key"}},
			{Name: "size", Visibility: decl.Public, Params: []string{"store"}},
		},
	}
	applyMode(svc, "kvstore_svc")
	must(svc.Bind("put", kvPut))
	must(svc.Bind("get", kvGet))
	must(svc.Bind("del", kvDel))
	must(svc.Bind("size", kvSize))
	return svc
}

func kvPut(state any, args []any) (reply.Reply, error) {
	store := state.(map[string]any)
	key, ok := args[0].(string)
	if !ok {
		return reply.Reply{}, fmt.Errorf("put: key must be a string, got %T", args[0])
	}
	next := make(map[string]any, len(store)+1)
	for k, v := range store {
		next[k] = v
	}
	next[key] = args[1]
	return reply.WithState(args[1], next), nil
}

func kvGet(state any, args []any) (reply.Reply, error) {
	store := state.(map[string]any)
	key, ok := args[0].(string)
	if !ok {
		return reply.Reply{}, fmt.Errorf("get: key must be a string, got %T", args[0])
	}
	v, ok := store[key]
	if !ok {
		return reply.Plain(Absent), nil
	}
	return reply.Plain(v), nil
}

// kvDel uses the set-state shorthand: no result expression, the reply
// value defaults to the new state.
func kvDel(state any, args []any) (reply.Reply, error) {
	store := state.(map[string]any)
	key, ok := args[0].(string)
	if !ok {
		return reply.Reply{}, fmt.Errorf("del: key must be a string, got %T", args[0])
	}
	next := make(map[string]any, len(store))
	for k, v := range store {
		if k != key {
			next[k] = v
		}
	}
	return reply.SetState(next), nil
}

func kvSize(state any, args []any) (reply.Reply, error) {
	store := state.(map[string]any)
	return reply.Plain(int64(len(store))), nil
}

// applyMode fills in the mode-dependent declaration fields.
func applyMode(svc *decl.Service, serviceName string) {
	switch svc.Mode {
	case decl.Named:
		svc.ServiceName = serviceName
	case decl.Pooled:
		svc.Pool = &decl.PoolBounds{Min: 1, Max: 4}
	}
}

// asInt coerces the numeric types that reach handlers: native ints from
// Go callers, float64 from JSON-decoded CLI arguments.
func asInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

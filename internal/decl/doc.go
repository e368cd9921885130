// Package decl provides the declaration model for genserv services.
//
// This package contains type definitions and validation only. All other
// internal packages import decl; decl imports only the reply kinds its
// handler signature needs. This keeps the declaration model near the
// bottom of the dependency graph with no cycles.
//
// A decl.Service captures everything fixed at generation time: the deployment
// mode, the initial state value, the state-variable name bound inside clause
// bodies, pool bounds, and the set of function clauses. Once validated and
// built, a Service is immutable.
package decl

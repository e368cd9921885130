// Package service assembles a validated declaration into a running
// service. Build generates the pure implementations (and the diagnostics
// rendering when enabled); Run selects one of the four deployment
// strategies - inline, single anonymous worker, named singleton, or
// supervised pool - and returns a handle exposing the client API.
//
// The strategy is chosen once, at run time, and shares the same generated
// implementations and client API regardless of mode.
package service

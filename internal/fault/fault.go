// Package fault defines the typed conditions that cross the service
// boundary. Exactly three conditions are visible to callers: pool
// exhaustion, call timeout, and service unavailability. Every other
// internal failure is converted into one of these or into a worker
// restart.
//
// fault is a leaf package: it imports nothing internal.
package fault

import (
	"errors"
	"fmt"
)

// Sentinel conditions. Match with errors.Is; CallError wraps these so
// callers never need to inspect codes directly.
var (
	// ErrPoolExhausted reports that a pool checkout could not be satisfied
	// within its timeout. Retryable.
	ErrPoolExhausted = errors.New("pool exhausted")

	// ErrCallTimeout reports that the caller gave up waiting for a reply.
	// The in-flight call still completes and commits on the worker.
	ErrCallTimeout = errors.New("call timeout")

	// ErrServiceUnavailable reports a terminated worker, a failed name
	// lookup, or an exceeded restart budget. Not locally recoverable.
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Code categorizes boundary conditions for structured output.
type Code string

const (
	CodePoolExhausted      Code = "POOL_EXHAUSTED"
	CodeCallTimeout        Code = "CALL_TIMEOUT"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
)

// CallError is a boundary condition with call context attached.
//
// It wraps one of the sentinel conditions above so errors.Is works on the
// sentinel while structured fields remain available for diagnostics.
type CallError struct {
	Code     Code
	Service  string
	Function string
	WorkerID string
	Err      error // sentinel, possibly wrapping an underlying cause
}

// Error implements the error interface.
func (e *CallError) Error() string {
	if e.Function != "" && e.WorkerID != "" {
		return fmt.Sprintf("%s: %s.%s: %v (worker=%s)", e.Code, e.Service, e.Function, e.Err, e.WorkerID)
	}
	if e.Function != "" {
		return fmt.Sprintf("%s: %s.%s: %v", e.Code, e.Service, e.Function, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Service, e.Err)
}

// Unwrap exposes the sentinel for errors.Is / errors.As.
func (e *CallError) Unwrap() error { return e.Err }

// PoolExhausted builds a CallError for an unsatisfied checkout.
func PoolExhausted(service, function string, cause error) *CallError {
	return &CallError{
		Code:     CodePoolExhausted,
		Service:  service,
		Function: function,
		Err:      wrap(ErrPoolExhausted, cause),
	}
}

// Timeout builds a CallError for an abandoned reply wait.
func Timeout(service, function, workerID string) *CallError {
	return &CallError{
		Code:     CodeCallTimeout,
		Service:  service,
		Function: function,
		WorkerID: workerID,
		Err:      ErrCallTimeout,
	}
}

// Unavailable builds a CallError for a dead or missing service.
func Unavailable(service, function, workerID string, cause error) *CallError {
	return &CallError{
		Code:     CodeServiceUnavailable,
		Service:  service,
		Function: function,
		WorkerID: workerID,
		Err:      wrap(ErrServiceUnavailable, cause),
	}
}

func wrap(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

// IsRetryable reports whether the caller may retry later with a chance of
// success. Only pool exhaustion and timeouts qualify.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPoolExhausted) || errors.Is(err, ErrCallTimeout)
}

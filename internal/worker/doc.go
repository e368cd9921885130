// Package worker implements the per-service actor runtime.
//
// A Worker owns exactly one state value and serves call requests strictly
// sequentially from a FIFO mailbox. That serialization is the mechanism
// that makes state mutation race-free without locks: state is read and
// written only by the worker's own run-loop goroutine.
//
// Thread-safety model:
//   - Call(): safe from any goroutine
//   - Stop(): safe from any goroutine, idempotent
//   - state: touched only inside the run loop
//
// A failure inside an implementation function terminates the worker. State
// is committed only after the implementation returns successfully, so a
// crashed call can never leave partially-updated state behind.
package worker

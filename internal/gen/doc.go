// Package gen turns a validated declaration into its runnable artifacts:
// the pure implementation functions, the caller-facing client functions,
// and a textual rendering of both for diagnostics.
//
// Generation happens once, at build time. Everything emitted here is
// deterministic in the declaration: clause order is declaration order, and
// no generated artifact depends on worker identity or call history.
package gen

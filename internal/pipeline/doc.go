// Package pipeline holds the static stage definition table and the executor
// that advances artifacts through it.
//
// The Registry maps (artifact kind, stage name) to a Definition: dependency
// set, input builder, and inference adapter. Both built-in graphs, the
// conversation chain with its recap fan-out and the interview chain, are
// plain registrations; the executor and graph helpers work on arbitrary
// acyclic graphs.
//
// The Executor runs a single scheduled stage: it enforces the idempotency
// guard (only pending stages run), the dependency precondition, and the
// atomic pending-to-processing claim, then builds input, invokes the
// adapter, and persists the outcome. Failures are terminal and cascade to
// every pending downstream stage in one ledger write.
package pipeline

// Package daemon coordinates the long-running talkcoach process.
//
// It wires configuration, the stage ledger, the durable job queue, the
// pipeline driver, and the worker pool into a single lifecycle with
// flock-based locking to prevent multiple instances, and exposes a small
// HTTP status API for the CLI and for monitoring.
//
// Keep orchestration logic here: stage semantics live in their own
// packages while the daemon focuses on startup, shutdown, and high level
// coordination.
package daemon

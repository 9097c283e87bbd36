// Package ledger persists per-artifact stage state in SQLite and is the
// pipeline's single source of truth.
//
// Each artifact (a conversation or an interview) owns one row per stage in
// its graph, holding status, an opaque result payload, and a failure message.
// The invariant the store enforces is that a result exists exactly when a
// stage is completed; every other status clears it. ClaimStage provides the
// atomic pending-to-processing transition that keeps concurrently scheduled
// runs of the same stage from both invoking the inference adapter.
//
// The database also carries the scheduler's stage_jobs table so one file on
// disk holds all pipeline state; the scheduler package owns those queries.
// The database is transient pipeline state, not an archive: schema changes
// bump schemaVersion and users start fresh.
package ledger

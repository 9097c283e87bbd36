// Package driver reacts to artifact lifecycle events: creation schedules
// the root stages, a completion schedules whichever dependents just became
// ready, and a regeneration request re-arms a stage and its downstream
// closure. The driver only writes the ledger and the job queue; the stage
// executor does the running.
package driver

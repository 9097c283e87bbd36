// Package scheduler provides the durable stage job queue and the worker
// pool that drains it. Jobs live in the same SQLite database as the stage
// ledger, so scheduled work survives restarts; workers claim due jobs with
// a compare-and-set on the claim column and pass them to the stage
// executor one at a time.
package scheduler

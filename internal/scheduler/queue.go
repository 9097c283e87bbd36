package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"talkcoach/internal/ledger"
)

// Queue is the durable scheduling surface: a (artifact, stage, run-at) row
// survives process restarts, so a scheduled stage run outlives its caller.
// The table lives in the ledger database; workers claim due rows and hand
// them to the stage executor.
type Queue struct {
	store *ledger.Store
	db    *sql.DB
}

// Job is one scheduled stage run.
type Job struct {
	ID         int64
	ArtifactID string
	Stage      string
	RunAt      time.Time
}

// NewQueue builds a queue over the ledger's database handle.
func NewQueue(store *ledger.Store) *Queue {
	return &Queue{store: store, db: store.DB()}
}

// Schedule enqueues a stage run for the artifact after the delay elapses and
// returns the job handle. There is no ordering guarantee between jobs beyond
// run-at, no priority, and no automatic rescheduling of failed runs.
func (q *Queue) Schedule(ctx context.Context, artifactID, stage string, delay time.Duration) (int64, error) {
	if artifactID == "" || stage == "" {
		return 0, errors.New("schedule requires artifact id and stage")
	}
	if delay < 0 {
		delay = 0
	}
	now := time.Now().UTC()
	res, err := q.db.ExecContext(
		ctx,
		`INSERT INTO stage_jobs (artifact_id, stage, run_at, created_at) VALUES (?, ?, ?, ?)`,
		artifactID,
		stage,
		now.Add(delay).Format(ledger.TimeFormat),
		now.Format(ledger.TimeFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("schedule stage %s: %w", stage, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("schedule job id: %w", err)
	}
	return id, nil
}

// Next claims the earliest due job. It returns nil when nothing is due or a
// concurrent worker won the claim; callers poll again after their interval.
func (q *Queue) Next(ctx context.Context) (*Job, error) {
	now := time.Now().UTC()
	row := q.db.QueryRowContext(
		ctx,
		`SELECT id, artifact_id, stage, run_at FROM stage_jobs
         WHERE claimed_at IS NULL AND run_at <= ?
         ORDER BY run_at, id LIMIT 1`,
		now.Format(ledger.TimeFormat),
	)
	var (
		job   Job
		runAt string
	)
	if err := row.Scan(&job.ID, &job.ArtifactID, &job.Stage, &runAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("next job: %w", err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, runAt); err == nil {
		job.RunAt = ts
	}

	res, err := q.db.ExecContext(
		ctx,
		`UPDATE stage_jobs SET claimed_at = ? WHERE id = ? AND claimed_at IS NULL`,
		now.Format(ledger.TimeFormat),
		job.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("claim job %d: %w", job.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claim job rows: %w", err)
	}
	if affected == 0 {
		// Lost the race to a concurrent worker.
		return nil, nil
	}
	return &job, nil
}

// Finish removes a claimed job once its run returned, successfully or not.
func (q *Queue) Finish(ctx context.Context, jobID int64) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM stage_jobs WHERE id = ?`, jobID); err != nil {
		return fmt.Errorf("finish job %d: %w", jobID, err)
	}
	return nil
}

// ReleaseStale returns jobs whose claim outlived the timeout to the unclaimed
// pool and re-arms their stuck ledger rows. A worker that dies mid-run leaves
// the job claimed and the stage in processing; clearing only the claim would
// replay into the executor's pending guard and the stage would never finish.
// Stages that reached a terminal status before the worker died keep that
// outcome (ReleaseStage only moves processing rows), so the replay no-ops
// in that case and the job is simply removed.
func (q *Queue) ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	rows, err := q.db.QueryContext(
		ctx,
		`SELECT id, artifact_id, stage FROM stage_jobs WHERE claimed_at IS NOT NULL AND claimed_at < ?`,
		cutoff.UTC().Format(ledger.TimeFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("find stale jobs: %w", err)
	}
	stale := make([]Job, 0, 4)
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.ArtifactID, &job.Stage); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan stale job: %w", err)
		}
		stale = append(stale, job)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("scan stale jobs: %w", err)
	}
	rows.Close()

	var released int64
	for _, job := range stale {
		res, err := q.db.ExecContext(
			ctx,
			`UPDATE stage_jobs SET claimed_at = NULL WHERE id = ? AND claimed_at IS NOT NULL`,
			job.ID,
		)
		if err != nil {
			return released, fmt.Errorf("release job %d: %w", job.ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return released, fmt.Errorf("release job rows: %w", err)
		}
		if affected == 0 {
			continue
		}
		if _, err := q.store.ReleaseStage(ctx, job.ArtifactID, job.Stage); err != nil {
			return released, fmt.Errorf("release stage for job %d: %w", job.ID, err)
		}
		released++
	}
	return released, nil
}

// Pending counts jobs not yet claimed, for diagnostics and the status API.
func (q *Queue) Pending(ctx context.Context) (int, error) {
	var count int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM stage_jobs WHERE claimed_at IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending jobs: %w", err)
	}
	return count, nil
}

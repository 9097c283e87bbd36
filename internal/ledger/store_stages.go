package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SetStage writes one stage's status atomically. The result is persisted only
// when status is StatusCompleted; any other status clears it, preserving the
// result-iff-completed invariant.
func (s *Store) SetStage(ctx context.Context, id, stage string, status Status, result json.RawMessage, errorMessage string) error {
	if _, ok := ParseStatus(string(status)); !ok {
		return fmt.Errorf("unknown status %q", status)
	}

	var resultValue any
	if status == StatusCompleted {
		if len(result) == 0 {
			return fmt.Errorf("stage %s: completed status requires a result", stage)
		}
		resultValue = string(result)
	}
	if status != StatusFailed {
		errorMessage = ""
	}

	now := time.Now().UTC().Format(TimeFormat)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE artifact_stages SET status = ?, result_json = ?, error_message = ?, updated_at = ?
         WHERE artifact_id = ? AND stage = ?`,
		status,
		resultValue,
		strings.TrimSpace(errorMessage),
		now,
		id,
		stage,
	)
	if err != nil {
		return fmt.Errorf("set stage %s: %w", stage, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set stage rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return s.touchArtifact(ctx, id, now)
}

// ClaimStage performs the atomic pending-to-processing transition for one
// stage run. It reports false when another run already claimed the stage or
// the stage is no longer pending, which makes duplicate schedule calls for
// the same stage harmless.
func (s *Store) ClaimStage(ctx context.Context, id, stage string) (bool, error) {
	now := time.Now().UTC().Format(TimeFormat)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE artifact_stages SET status = ?, error_message = '', updated_at = ?
         WHERE artifact_id = ? AND stage = ? AND status = ?`,
		StatusProcessing,
		now,
		id,
		stage,
		StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("claim stage %s: %w", stage, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim stage rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}
	return true, s.touchArtifact(ctx, id, now)
}

// ReleaseStage returns a stuck processing stage to pending so a replayed
// job re-runs it. The compare-and-swap only moves processing rows; a stage
// that reached a terminal status before its worker died keeps that outcome.
// Callers own the judgement that the original run is dead (the scheduler
// ties this to the claim timeout).
func (s *Store) ReleaseStage(ctx context.Context, id, stage string) (bool, error) {
	now := time.Now().UTC().Format(TimeFormat)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE artifact_stages SET status = ?, error_message = '', updated_at = ?
         WHERE artifact_id = ? AND stage = ? AND status = ?`,
		StatusPending,
		now,
		id,
		stage,
		StatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("release stage %s: %w", stage, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("release stage rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}
	return true, s.touchArtifact(ctx, id, now)
}

// ResetStages re-arms the named stages: status pending, result and error
// cleared. Callers pass the downstream closure of the regenerated stage.
func (s *Store) ResetStages(ctx context.Context, id string, stages ...string) error {
	if len(stages) == 0 {
		return nil
	}
	now := time.Now().UTC().Format(TimeFormat)
	query := `UPDATE artifact_stages SET status = ?, result_json = NULL, error_message = '', updated_at = ?
        WHERE artifact_id = ? AND stage IN (` + placeholders(len(stages)) + `)`
	args := make([]any, 0, len(stages)+3)
	args = append(args, StatusPending, now, id)
	for _, stage := range stages {
		args = append(args, stage)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("reset stages: %w", err)
	}
	return s.touchArtifact(ctx, id, now)
}

// FailStages marks the named stages failed with the given message, but only
// those still pending: completed and already-failed stages keep their state.
// It returns the number of stages transitioned. This is the cascading-failure
// primitive; one call covers the whole downstream closure of a failed stage.
func (s *Store) FailStages(ctx context.Context, id, message string, stages ...string) (int64, error) {
	if len(stages) == 0 {
		return 0, nil
	}
	now := time.Now().UTC().Format(TimeFormat)
	query := `UPDATE artifact_stages SET status = ?, result_json = NULL, error_message = ?, updated_at = ?
        WHERE artifact_id = ? AND status = ? AND stage IN (` + placeholders(len(stages)) + `)`
	args := make([]any, 0, len(stages)+5)
	args = append(args, StatusFailed, strings.TrimSpace(message), now, id, StatusPending)
	for _, stage := range stages {
		args = append(args, stage)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("fail stages: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("fail stages rows: %w", err)
	}
	if affected > 0 {
		if err := s.touchArtifact(ctx, id, now); err != nil {
			return affected, err
		}
	}
	return affected, nil
}

func (s *Store) touchArtifact(ctx context.Context, id, timestamp string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE artifacts SET updated_at = ? WHERE id = ?`, timestamp, id); err != nil {
		return fmt.Errorf("touch artifact: %w", err)
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

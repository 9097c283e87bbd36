package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"talkcoach/internal/config"
)

// ErrNotFound indicates the requested artifact no longer exists. Stage
// executors treat this as a silent abort: the artifact was deleted between
// scheduling and execution.
var ErrNotFound = errors.New("artifact not found")

// Store manages artifact ledger persistence backed by SQLite. The same
// database also holds the scheduler's stage_jobs table; see the scheduler
// package for its queue operations.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying handle for the scheduler queue, which shares
// this database.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// NewArtifactParams describes an artifact to insert. Stages lists the stage
// names of the artifact kind's graph; each is seeded as pending.
type NewArtifactParams struct {
	Kind        Kind
	Title       string
	SourceReady bool
	AudioPath   string
	AnswerAudio []string
	Stages      []string
}

// Create inserts a new artifact with every stage pending.
func (s *Store) Create(ctx context.Context, params NewArtifactParams) (*Artifact, error) {
	if params.Kind != KindConversation && params.Kind != KindInterview {
		return nil, fmt.Errorf("unknown artifact kind %q", params.Kind)
	}
	if len(params.Stages) == 0 {
		return nil, errors.New("artifact requires at least one stage")
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	timestamp := now.Format(TimeFormat)

	answers := params.AnswerAudio
	if answers == nil {
		answers = []string{}
	}
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("marshal answer audio: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO artifacts (id, kind, title, source_ready, audio_path, answer_audio_json, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		params.Kind,
		strings.TrimSpace(params.Title),
		boolToInt(params.SourceReady),
		strings.TrimSpace(params.AudioPath),
		string(answersJSON),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert artifact: %w", err)
	}

	for _, stage := range params.Stages {
		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO artifact_stages (artifact_id, stage, status, updated_at) VALUES (?, ?, ?, ?)`,
			id,
			stage,
			StatusPending,
			timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("insert stage %s: %w", stage, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create: %w", err)
	}

	return s.Get(ctx, id)
}

// Get loads an artifact and its full stage ledger.
func (s *Store) Get(ctx context.Context, id string) (*Artifact, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, kind, title, source_ready, audio_path, answer_audio_json, created_at, updated_at
         FROM artifacts WHERE id = ?`,
		id,
	)
	artifact, err := scanArtifact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load artifact: %w", err)
	}

	if err := s.loadStages(ctx, artifact); err != nil {
		return nil, err
	}
	return artifact, nil
}

// List returns all artifacts, newest first, with their stage ledgers.
func (s *Store) List(ctx context.Context) ([]*Artifact, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, kind, title, source_ready, audio_path, answer_audio_json, created_at, updated_at
         FROM artifacts ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []*Artifact
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		artifacts = append(artifacts, artifact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}

	for _, artifact := range artifacts {
		if err := s.loadStages(ctx, artifact); err != nil {
			return nil, err
		}
	}
	return artifacts, nil
}

// Delete removes an artifact; its stage ledger and any queued jobs go with it.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete artifact rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	// stage_jobs has no foreign key so orphaned jobs are swept here; a job
	// that slips through aborts harmlessly on the NotFound guard.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM stage_jobs WHERE artifact_id = ?`, id); err != nil {
		return fmt.Errorf("delete stage jobs: %w", err)
	}
	return nil
}

// Health reports aggregate stage counts for diagnostics and the status API.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	var summary HealthSummary
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM artifacts`).Scan(&summary.Artifacts); err != nil {
		return summary, fmt.Errorf("count artifacts: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM artifact_stages GROUP BY status`)
	if err != nil {
		return summary, fmt.Errorf("count stages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return summary, fmt.Errorf("scan stage count: %w", err)
		}
		switch status {
		case StatusPending:
			summary.Pending = count
		case StatusProcessing:
			summary.Processing = count
		case StatusCompleted:
			summary.Completed = count
		case StatusFailed:
			summary.Failed = count
		}
	}
	return summary, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (*Artifact, error) {
	var (
		artifact    Artifact
		sourceReady int
		answersJSON string
		createdAt   string
		updatedAt   string
	)
	if err := row.Scan(
		&artifact.ID,
		&artifact.Kind,
		&artifact.Title,
		&sourceReady,
		&artifact.AudioPath,
		&answersJSON,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	artifact.SourceReady = sourceReady != 0
	if err := json.Unmarshal([]byte(answersJSON), &artifact.AnswerAudio); err != nil {
		return nil, fmt.Errorf("parse answer audio: %w", err)
	}
	artifact.CreatedAt = parseTimestamp(createdAt)
	artifact.UpdatedAt = parseTimestamp(updatedAt)
	artifact.Stages = make(map[string]StageState)
	return &artifact, nil
}

func (s *Store) loadStages(ctx context.Context, artifact *Artifact) error {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT stage, status, result_json, error_message, updated_at
         FROM artifact_stages WHERE artifact_id = ?`,
		artifact.ID,
	)
	if err != nil {
		return fmt.Errorf("load stages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name      string
			state     StageState
			result    sql.NullString
			updatedAt string
		)
		if err := rows.Scan(&name, &state.Status, &result, &state.ErrorMessage, &updatedAt); err != nil {
			return fmt.Errorf("scan stage: %w", err)
		}
		if result.Valid && result.String != "" {
			state.Result = json.RawMessage(result.String)
		}
		state.UpdatedAt = parseTimestamp(updatedAt)
		artifact.Stages[name] = state
	}
	return rows.Err()
}

func parseTimestamp(value string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

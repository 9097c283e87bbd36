package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"talkcoach/internal/ledger"
	"talkcoach/internal/logging"
	"talkcoach/internal/services"
)

// Completions is the executor's view of the pipeline driver: after a stage
// completes, the driver decides which downstream stages are now schedulable.
type Completions interface {
	OnStageCompleted(ctx context.Context, artifactID, stage string) error
}

// Executor runs one stage for one artifact. All side effects are confined to
// the ledger and, through Completions, the scheduling of further stage runs;
// the single Invoke call is the only external interaction.
type Executor struct {
	store       *ledger.Store
	registry    *Registry
	completions Completions
	logger      *slog.Logger
}

// NewExecutor constructs a stage executor.
func NewExecutor(store *ledger.Store, registry *Registry, completions Completions, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Executor{
		store:       store,
		registry:    registry,
		completions: completions,
		logger:      logging.NewComponentLogger(logger, "stage-executor"),
	}
}

// Run executes the named stage of the named artifact. A handled stage
// failure returns nil: the failure lives in the ledger, not in the error
// return. A non-nil error means infrastructure trouble (ledger IO) and the
// run's effect on the ledger is undefined.
func (e *Executor) Run(ctx context.Context, artifactID, stage string) error {
	ctx = services.WithArtifactID(ctx, artifactID)
	ctx = services.WithStage(ctx, stage)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, e.logger)

	artifact, err := e.store.Get(ctx, artifactID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			// Deleted between scheduling and execution; not a failure.
			logger.Debug("artifact gone before stage run", logging.String(logging.FieldEventType, "stage_abort"))
			return nil
		}
		return fmt.Errorf("load artifact: %w", err)
	}

	def, ok := e.registry.Lookup(artifact.Kind, stage)
	if !ok {
		logger.Warn("no stage definition for artifact kind",
			logging.String("kind", string(artifact.Kind)),
			logging.String(logging.FieldEventType, "stage_abort"),
		)
		return nil
	}

	state, ok := artifact.Stage(stage)
	if !ok {
		logger.Warn("stage missing from ledger", logging.String(logging.FieldEventType, "stage_abort"))
		return nil
	}
	if state.Status != ledger.StatusPending {
		// Duplicate scheduling guard: re-running a processing, completed,
		// or failed stage is a no-op.
		logger.Debug("stage not pending, skipping run",
			logging.String("status", string(state.Status)),
			logging.String(logging.FieldEventType, "stage_skip"),
		)
		return nil
	}

	for _, dep := range def.Dependencies {
		if !artifact.StageCompleted(dep) {
			depErr := services.Wrap(services.ErrDependency, stage, "precondition",
				fmt.Sprintf("dependency %s is not completed", dep), nil)
			return e.failStage(ctx, logger, artifact, stage, depErr)
		}
	}

	claimed, err := e.store.ClaimStage(ctx, artifactID, stage)
	if err != nil {
		return fmt.Errorf("claim stage: %w", err)
	}
	if !claimed {
		logger.Debug("stage claimed by concurrent run", logging.String(logging.FieldEventType, "stage_skip"))
		return nil
	}

	stageStart := time.Now()
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	input, err := def.BuildInput(artifact)
	if err != nil {
		if !isClassified(err) {
			err = services.Wrap(services.ErrInvalidInput, stage, "build input", "", err)
		}
		return e.failStage(ctx, logger, artifact, stage, err)
	}

	result, err := def.Invoke(ctx, input)
	if err != nil {
		if !isClassified(err) {
			err = services.Wrap(services.ErrAdapter, stage, "invoke", "", err)
		}
		return e.failStage(ctx, logger, artifact, stage, err)
	}
	if emptyResult(result) {
		err = services.Wrap(services.ErrAdapter, stage, "invoke", "adapter returned an empty result", nil)
		return e.failStage(ctx, logger, artifact, stage, err)
	}

	if err := e.store.SetStage(ctx, artifactID, stage, ledger.StatusCompleted, result, ""); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			logger.Debug("artifact deleted during stage run", logging.String(logging.FieldEventType, "stage_abort"))
			return nil
		}
		return fmt.Errorf("persist stage result: %w", err)
	}

	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)

	if e.completions != nil {
		if err := e.completions.OnStageCompleted(ctx, artifactID, stage); err != nil {
			return fmt.Errorf("schedule downstream stages: %w", err)
		}
	}
	return nil
}

// failStage records a terminal failure for the stage and cascade-fails every
// pending stage transitively downstream of it, so no stage sits pending
// forever behind a prerequisite that can never complete.
func (e *Executor) failStage(ctx context.Context, logger *slog.Logger, artifact *ledger.Artifact, stage string, stageErr error) error {
	message := services.Message(stageErr)
	logger.Error("stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String(logging.FieldErrorKind, services.Kind(stageErr)),
		logging.Error(stageErr),
	)

	if err := e.store.SetStage(ctx, artifact.ID, stage, ledger.StatusFailed, nil, message); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("persist stage failure: %w", err)
	}

	downstream := e.registry.Downstream(artifact.Kind, stage)
	if len(downstream) == 0 {
		return nil
	}
	failed, err := e.store.FailStages(ctx, artifact.ID, fmt.Sprintf("upstream stage %s failed", stage), downstream...)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("cascade failure: %w", err)
	}
	if failed > 0 {
		logger.Info("cascaded failure to downstream stages",
			logging.Int64("stages_failed", failed),
			logging.String(logging.FieldEventType, "stage_cascade"),
		)
	}
	return nil
}

func isClassified(err error) bool {
	return errors.Is(err, services.ErrMissingSource) ||
		errors.Is(err, services.ErrDependency) ||
		errors.Is(err, services.ErrInvalidInput) ||
		errors.Is(err, services.ErrAdapter) ||
		errors.Is(err, services.ErrConfiguration)
}

func emptyResult(result []byte) bool {
	trimmed := bytes.TrimSpace(result)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

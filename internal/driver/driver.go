package driver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"talkcoach/internal/config"
	"talkcoach/internal/ledger"
	"talkcoach/internal/logging"
	"talkcoach/internal/pipeline"
	"talkcoach/internal/services"
)

// Scheduler is the driver's view of the durable job queue.
type Scheduler interface {
	Schedule(ctx context.Context, artifactID, stage string, delay time.Duration) (int64, error)
}

// Driver reacts to artifact lifecycle events and decides which stage runs
// to schedule. It never runs a stage itself; all execution goes through the
// scheduler so that decisions survive restarts.
type Driver struct {
	cfg       *config.Config
	store     *ledger.Store
	registry  *pipeline.Registry
	scheduler Scheduler
	logger    *slog.Logger
}

// New constructs a pipeline driver.
func New(cfg *config.Config, store *ledger.Store, registry *pipeline.Registry, scheduler Scheduler, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Driver{
		cfg:       cfg,
		store:     store,
		registry:  registry,
		scheduler: scheduler,
		logger:    logging.NewComponentLogger(logger, "pipeline-driver"),
	}
}

func (d *Driver) stageDelay() time.Duration {
	return time.Duration(d.cfg.Workflow.StageDelay) * time.Second
}

// OnArtifactCreated schedules the root stages of a freshly created artifact.
// When the source media is not ready the whole graph fails immediately:
// every stage depends, directly or through its ancestors, on the source.
func (d *Driver) OnArtifactCreated(ctx context.Context, artifactID string) error {
	artifact, err := d.store.Get(ctx, artifactID)
	if err != nil {
		return fmt.Errorf("load artifact %s: %w", artifactID, err)
	}
	logger := d.logger.With(logging.String(logging.FieldArtifactID, artifact.ID))

	roots := d.registry.Roots(artifact.Kind)
	if len(roots) == 0 {
		return fmt.Errorf("no root stages registered for kind %s", artifact.Kind)
	}

	if !artifact.SourceReady {
		message := services.ErrMissingSource.Error()
		stages := make(map[string]struct{})
		for _, root := range roots {
			stages[root] = struct{}{}
			for _, down := range d.registry.Downstream(artifact.Kind, root) {
				stages[down] = struct{}{}
			}
		}
		names := make([]string, 0, len(stages))
		for name := range stages {
			names = append(names, name)
		}
		if _, err := d.store.FailStages(ctx, artifact.ID, message, names...); err != nil {
			return fmt.Errorf("fail stages for missing source: %w", err)
		}
		logger.Warn("artifact created without ready source, pipeline failed",
			logging.String(logging.FieldEventType, "pipeline_failed"),
			logging.Int("stages", len(names)),
		)
		return nil
	}

	for _, root := range roots {
		if _, err := d.scheduler.Schedule(ctx, artifact.ID, root, d.stageDelay()); err != nil {
			return fmt.Errorf("schedule root stage %s: %w", root, err)
		}
		logger.Info("scheduled root stage",
			logging.String(logging.FieldStage, root),
			logging.String(logging.FieldEventType, "stage_scheduled"),
		)
	}
	return nil
}

// OnStageCompleted schedules every dependent stage whose dependencies are
// now all completed. Stages with an unfinished second dependency are left
// alone; the completion of that dependency schedules them later.
func (d *Driver) OnStageCompleted(ctx context.Context, artifactID, stage string) error {
	artifact, err := d.store.Get(ctx, artifactID)
	if err != nil {
		return fmt.Errorf("load artifact %s: %w", artifactID, err)
	}

	for _, next := range d.registry.ReadyAfter(artifact, stage) {
		if _, err := d.scheduler.Schedule(ctx, artifact.ID, next, d.stageDelay()); err != nil {
			return fmt.Errorf("schedule stage %s: %w", next, err)
		}
		d.logger.Info("scheduled downstream stage",
			logging.String(logging.FieldArtifactID, artifact.ID),
			logging.String(logging.FieldStage, next),
			logging.String(logging.FieldEventType, "stage_scheduled"),
		)
	}
	return nil
}

// OnUpstreamRegenerated re-arms the named stage and its entire downstream
// closure to pending, wiping previous results and errors, then schedules
// the stage. Stages outside the closure keep their state. Regeneration is
// rejected while any stage in the closure is processing.
func (d *Driver) OnUpstreamRegenerated(ctx context.Context, artifactID, stage string) error {
	artifact, err := d.store.Get(ctx, artifactID)
	if err != nil {
		return fmt.Errorf("load artifact %s: %w", artifactID, err)
	}
	if _, ok := d.registry.Lookup(artifact.Kind, stage); !ok {
		return services.Wrap(services.ErrInvalidInput, stage, "regenerate",
			fmt.Sprintf("stage %s is not part of the %s pipeline", stage, artifact.Kind), nil)
	}
	if !artifact.SourceReady {
		return services.Wrap(services.ErrMissingSource, stage, "regenerate",
			"source media is not ready", nil)
	}

	names := append([]string{stage}, d.registry.Downstream(artifact.Kind, stage)...)
	// A processing stage in the closure has an in-flight run that would
	// overwrite the re-armed state with its pre-regeneration result.
	for _, name := range names {
		if state, ok := artifact.Stage(name); ok && state.Status == ledger.StatusProcessing {
			return services.Wrap(services.ErrInvalidInput, stage, "regenerate",
				fmt.Sprintf("stage %s is currently processing; regenerate after it finishes", name), nil)
		}
	}
	if err := d.store.ResetStages(ctx, artifact.ID, names...); err != nil {
		return fmt.Errorf("reset stages: %w", err)
	}
	if _, err := d.scheduler.Schedule(ctx, artifact.ID, stage, d.stageDelay()); err != nil {
		return fmt.Errorf("schedule regenerated stage %s: %w", stage, err)
	}
	d.logger.Info("regeneration armed",
		logging.String(logging.FieldArtifactID, artifact.ID),
		logging.String(logging.FieldStage, stage),
		logging.String(logging.FieldEventType, "stage_rearmed"),
		logging.Int("stages_reset", len(names)),
	)
	return nil
}

// Status returns the full per-stage snapshot of an artifact.
func (d *Driver) Status(ctx context.Context, artifactID string) (*ledger.Artifact, error) {
	return d.store.Get(ctx, artifactID)
}

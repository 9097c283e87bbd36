package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"talkcoach/internal/config"
	"talkcoach/internal/logging"
)

// StageRunner is the worker pool's view of the stage executor.
type StageRunner interface {
	Run(ctx context.Context, artifactID, stage string) error
}

// Workers polls the queue and feeds due jobs into the stage executor.
// Workers share no in-memory state; any worker in any process attached to
// the same database may pick up any job.
type Workers struct {
	cfg    *config.Config
	queue  *Queue
	runner StageRunner
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWorkers constructs a worker pool.
func NewWorkers(cfg *config.Config, queue *Queue, runner StageRunner, logger *slog.Logger) *Workers {
	return &Workers{
		cfg:    cfg,
		queue:  queue,
		runner: runner,
		logger: logging.NewComponentLogger(logger, "scheduler"),
	}
}

// Start begins background processing.
func (w *Workers) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("scheduler already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true

	count := w.cfg.Workflow.Workers
	w.wg.Add(count)
	for i := 0; i < count; i++ {
		go w.runWorker(runCtx, i)
	}
	w.logger.Info("scheduler started", logging.Int("workers", count))
	return nil
}

// Stop terminates background processing and waits for in-flight runs.
func (w *Workers) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
}

// Running reports whether the pool is processing jobs.
func (w *Workers) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Workers) runWorker(ctx context.Context, index int) {
	defer w.wg.Done()
	logger := w.logger.With(logging.Int("worker", index))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if index == 0 {
			cutoff := time.Now().Add(-time.Duration(w.cfg.Workflow.ClaimTimeout) * time.Second)
			if released, err := w.queue.ReleaseStale(ctx, cutoff); err != nil {
				logger.Warn("release stale jobs failed", logging.Error(err))
			} else if released > 0 {
				logger.Info("released stale job claims", logging.Int64("jobs", released))
			}
		}

		job, err := w.queue.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to fetch next job", logging.Error(err))
			w.sleep(ctx, time.Duration(w.cfg.Workflow.ErrorRetryInterval)*time.Second)
			continue
		}
		if job == nil {
			w.sleep(ctx, time.Duration(w.cfg.Workflow.PollInterval)*time.Second)
			continue
		}

		if err := w.runner.Run(ctx, job.ArtifactID, job.Stage); err != nil {
			if errors.Is(err, context.Canceled) {
				// Leave the claim; the stale release returns the job to the
				// pool after restart and re-arms the stage so the replay
				// actually runs it.
				return
			}
			logger.Error("stage run failed",
				logging.String(logging.FieldArtifactID, job.ArtifactID),
				logging.String(logging.FieldStage, job.Stage),
				logging.Error(err),
			)
		}

		if err := w.queue.Finish(ctx, job.ID); err != nil {
			logger.Error("failed to remove finished job", logging.Int64("job_id", job.ID), logging.Error(err))
		}
	}
}

func (w *Workers) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		d = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

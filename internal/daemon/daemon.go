package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"talkcoach/internal/config"
	"talkcoach/internal/driver"
	"talkcoach/internal/ledger"
	"talkcoach/internal/logging"
	"talkcoach/internal/scheduler"
)

// Daemon coordinates the worker pool and the status API, and enforces
// single-instance execution through a lock file.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *ledger.Store
	queue   *scheduler.Queue
	drv     *driver.Driver
	workers *scheduler.Workers
	api     *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Ledger       ledger.HealthSummary
	QueuePending int
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *ledger.Store, queue *scheduler.Queue, drv *driver.Driver, workers *scheduler.Workers, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || queue == nil || drv == nil || workers == nil {
		return nil, errors.New("daemon requires config, store, queue, driver, and workers")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "talkcoachd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		queue:    queue,
		drv:      drv,
		workers:  workers,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock and launches the worker pool and the
// status API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another talkcoach daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	if err := d.workers.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start workers: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.workers.Stop()
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start api server: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("talkcoach daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workers.Stop()
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("talkcoach daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Driver exposes the pipeline driver for the API and CLI surfaces.
func (d *Daemon) Driver() *driver.Driver {
	return d.drv
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	health, err := d.store.Health(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("ledger health: %w", err)
	}
	pending, err := d.queue.Pending(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("queue pending: %w", err)
	}
	return Status{
		Running:      d.running.Load(),
		Ledger:       health,
		QueuePending: pending,
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
	}, nil
}

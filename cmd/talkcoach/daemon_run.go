package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"talkcoach/internal/daemon"
	"talkcoach/internal/driver"
	"talkcoach/internal/ledger"
	"talkcoach/internal/logging"
	"talkcoach/internal/pipeline"
	"talkcoach/internal/scheduler"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:          "daemon",
		Short:        "Run the talkcoach daemon in the foreground",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemonProcess(cmd.Context(), ctx)
		},
	}
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext) error {
	if ctx == nil {
		return fmt.Errorf("command context is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	store, err := ledger.Open(cfg)
	if err != nil {
		logger.Error("open ledger store", logging.Error(err))
		return err
	}
	defer store.Close()

	registry, err := ctx.newRegistry()
	if err != nil {
		return fmt.Errorf("build stage registry: %w", err)
	}

	queue := scheduler.NewQueue(store)
	drv := driver.New(cfg, store, registry, queue, logger)
	executor := pipeline.NewExecutor(store, registry, drv, logger)
	workers := scheduler.NewWorkers(cfg, queue, executor, logger)

	d, err := daemon.New(cfg, store, queue, drv, workers, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("daemon start: %w", err)
	}

	<-signalCtx.Done()
	logger.Info("talkcoach daemon shutting down")
	return nil
}

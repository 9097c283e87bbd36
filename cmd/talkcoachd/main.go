package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"talkcoach/internal/config"
	"talkcoach/internal/daemon"
	"talkcoach/internal/driver"
	"talkcoach/internal/ledger"
	"talkcoach/internal/logging"
	"talkcoach/internal/pipeline"
	"talkcoach/internal/scheduler"
	"talkcoach/internal/services/llm"
	"talkcoach/internal/services/transcribe"
	"talkcoach/internal/stages"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := ledger.Open(cfg)
	if err != nil {
		logger.Error("open ledger store", logging.Error(err))
		return
	}

	adapters := stages.Adapters{
		Chat:        llm.NewClient(cfg.LLM),
		Transcriber: transcribe.NewClient(cfg.Transcription),
	}
	registry, err := pipeline.NewRegistry(stages.Definitions(cfg, adapters)...)
	if err != nil {
		logger.Error("build stage registry", logging.Error(err))
		_ = store.Close()
		return
	}

	queue := scheduler.NewQueue(store)
	drv := driver.New(cfg, store, registry, queue, logger)
	executor := pipeline.NewExecutor(store, registry, drv, logger)
	workers := scheduler.NewWorkers(cfg, queue, executor, logger)

	d, err := daemon.New(cfg, store, queue, drv, workers, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		_ = store.Close()
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("talkcoachd shutting down")
}

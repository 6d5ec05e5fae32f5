// Command reframed runs the background daemon: it owns the job registry,
// the media store, the transformation pipeline, and the HTTP API.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"reframe/internal/blobstore"
	"reframe/internal/config"
	"reframe/internal/daemon"
	"reframe/internal/logging"
	"reframe/internal/orchestrator"
	"reframe/internal/registry"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := registry.Open(cfg)
	if err != nil {
		logger.Error("open registry", logging.Error(err))
		return
	}

	blobs, err := blobstore.New(cfg)
	if err != nil {
		logger.Error("open media store", logging.Error(err))
		return
	}

	manager, err := orchestrator.NewManager(cfg, store, blobs, logger,
		orchestrator.DefaultPipeline(cfg, blobs, logger))
	if err != nil {
		logger.Error("build orchestrator", logging.Error(err))
		return
	}

	d, err := daemon.New(cfg, store, blobs, manager, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("reframed shutting down")
}

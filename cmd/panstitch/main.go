package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"panstitch/internal/cli"
	"panstitch/internal/config"
	"panstitch/internal/logging"
	"panstitch/internal/pipeline"
	"panstitch/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "panstitch: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}

	store, err := storage.New(cfg.Paths.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pipe := pipeline.New(ctx, cfg.Processing.ParallelJobs, logger, store, cfg)
	defer pipe.Stop()

	rootCmd := cli.NewRootCmd(cfg, logger, store, pipe)
	return rootCmd.ExecuteContext(ctx)
}

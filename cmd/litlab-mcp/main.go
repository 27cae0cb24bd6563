// Package main provides the entry point for the litlab MCP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/litlab/internal/app"
	"github.com/raphaelgruber/litlab/internal/config"
	"github.com/raphaelgruber/litlab/internal/server"
	"golang.org/x/sync/errgroup"
)

const version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "litlab-mcp: %v\n", err)
		return 1
	}

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = cleanup() }()

	logger.Info("litlab-mcp starting",
		"version", version,
		"store", cfg.Store,
		"llm_provider", cfg.LLMProvider,
		"embedding_model", cfg.EmbedModel,
		"queue", cfg.RedisAddr != "",
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	lab, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return 1
	}
	defer func() {
		if err := lab.Close(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}()

	srv := server.New(version, logger)
	srv.Setup(lab.ToolDeps())

	g, gctx := errgroup.WithContext(ctx)

	// queued jobs are also consumed here so a single process is enough
	if w, err := lab.Worker(); err == nil {
		g.Go(func() error { return w.Run(gctx) })
	} else if !errors.Is(err, app.ErrNoQueue) {
		logger.Error("failed to start worker", "error", err)
		return 1
	}

	logger.Info("server ready, awaiting connections")
	g.Go(func() error {
		// the stdio session ends when the client disconnects
		defer cancel()
		if err := srv.Run(gctx); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		return 1
	}

	logger.Info("shutdown complete")
	return 0
}

// Package app wires configuration into stores, providers and services.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/litlab/internal/arousal"
	"github.com/raphaelgruber/litlab/internal/chunkstore"
	"github.com/raphaelgruber/litlab/internal/config"
	"github.com/raphaelgruber/litlab/internal/db"
	"github.com/raphaelgruber/litlab/internal/llm"
	"github.com/raphaelgruber/litlab/internal/metrics"
	"github.com/raphaelgruber/litlab/internal/parser"
	"github.com/raphaelgruber/litlab/internal/queue"
	"github.com/raphaelgruber/litlab/internal/retrieval"
	"github.com/raphaelgruber/litlab/internal/service"
	"github.com/raphaelgruber/litlab/internal/sqlstore"
	"github.com/raphaelgruber/litlab/internal/tools"
)

// ErrNoQueue is returned by Worker when no Redis address is configured.
var ErrNoQueue = errors.New("no queue configured (set REDIS_ADDR)")

// App holds the wired services of one process.
type App struct {
	Config      config.Config
	Metrics     *metrics.Collector
	Store       service.Store
	Chunks      *chunkstore.Store
	Embedder    *llm.Embedder
	Scorer      *arousal.GradioClient
	Queue       *queue.Queue // nil when jobs run inline
	Coordinator *service.Coordinator
	Ingest      *service.IngestService
	Search      *service.SearchService

	log *slog.Logger
}

// New builds an App from cfg. Close releases the store and queue.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	m := metrics.NewCollector()

	store, err := OpenStore(ctx, cfg, log, m)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Metrics: m, Store: store, log: log}

	if err := a.wire(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Config

	embedder, err := llm.NewEmbedder(cfg, a.Metrics)
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}
	model, err := llm.NewModel(cfg, a.Metrics)
	if err != nil {
		return fmt.Errorf("init model: %w", err)
	}
	a.Embedder = embedder

	a.Scorer = arousal.NewGradioClient(arousal.GradioConfig{
		BaseURL:        cfg.ArousalSpaceURL,
		RequestTimeout: cfg.ArousalRequestTimeout,
		StreamTimeout:  cfg.ArousalStreamTimeout,
	}, a.Metrics)

	if cfg.RedisAddr != "" {
		q, err := queue.Dial(ctx, cfg.RedisAddr, cfg.QueueKey)
		if err != nil {
			return fmt.Errorf("connect queue: %w", err)
		}
		a.Queue = q
	}

	a.Chunks = chunkstore.New(a.Store, a.Metrics)
	selector := retrieval.NewSelector(a.Chunks, embedder, a.Scorer, a.Store, cfg.ArousalMaxWorkers)

	var enqueuer service.Enqueuer
	if a.Queue != nil {
		enqueuer = a.Queue
	}
	a.Coordinator = service.NewCoordinator(a.Store, selector, llm.NewLessonGenerator(model), enqueuer, service.CoordinatorConfig{
		DirectedTopK: cfg.DirectedTopK,
		SampleSize:   cfg.RandomSampleSize,
		RandomTopK:   cfg.RandomTopK,
		RandomPrompt: cfg.RandomPrompt,
		StaleAfter:   cfg.JobStaleAfter,
	}, a.Metrics, a.log)

	a.Ingest = service.NewIngestService(a.Store, a.Chunks, embedder, parser.ChunkConfig{
		SizeWords:    cfg.ChunkSizeWords,
		OverlapWords: cfg.ChunkOverlapWords,
		MaxChunks:    cfg.ChunkMax,
	})
	a.Search = service.NewSearchService(a.Store, a.Store, selector)

	a.log.Debug("services wired",
		"store", cfg.Store,
		"llm", model.Model(),
		"embedding_model", embedder.Model(),
		"queue", a.Queue != nil)
	return nil
}

// OpenStore opens the configured storage backend.
func OpenStore(ctx context.Context, cfg config.Config, log *slog.Logger, m *metrics.Collector) (service.Store, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		return sqlstore.Open(ctx, cfg.SQLitePath, log, m)

	case config.StoreSurrealDB:
		client, err := db.NewClient(ctx, db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, log, m)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := client.InitSchema(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("initialize schema: %w", err)
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unsupported store %q", cfg.Store)
	}
}

// Worker returns a queue consumer executing jobs through the coordinator.
func (a *App) Worker() (*queue.Worker, error) {
	if a.Queue == nil {
		return nil, ErrNoQueue
	}
	return queue.NewWorker(a.Queue, a.Coordinator, queue.WorkerConfig{StaleAfter: a.Config.JobStaleAfter}, a.log), nil
}

// ToolDeps returns the MCP tool dependencies backed by this App.
func (a *App) ToolDeps() *tools.Dependencies {
	cfg := a.Config
	return &tools.Dependencies{
		Lab:     a.Coordinator,
		Search:  a.Search,
		Metrics: a.Metrics,
		Config:  &cfg,
		Logger:  a.log,
	}
}

// Close releases the queue connection and the store.
func (a *App) Close() error {
	var errs []error
	if a.Queue != nil {
		if err := a.Queue.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close queue: %w", err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}

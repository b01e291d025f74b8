package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/docintel/internal/config"
	"github.com/kirillkom/docintel/internal/core/annotation"
	"github.com/kirillkom/docintel/internal/core/ports"
	"github.com/kirillkom/docintel/internal/core/usecase"
	"github.com/kirillkom/docintel/internal/infrastructure/chunking"
	"github.com/kirillkom/docintel/internal/infrastructure/extractor"
	"github.com/kirillkom/docintel/internal/infrastructure/extractor/ocr/tesseract"
	"github.com/kirillkom/docintel/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/docintel/internal/infrastructure/queue/inproc"
	natsqueue "github.com/kirillkom/docintel/internal/infrastructure/queue/nats"
	"github.com/kirillkom/docintel/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/docintel/internal/infrastructure/resilience"
	"github.com/kirillkom/docintel/internal/infrastructure/storage/localfs"
	miniostorage "github.com/kirillkom/docintel/internal/infrastructure/storage/minio"
	"github.com/kirillkom/docintel/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Repo      ports.DocumentRepository
	Queue     ports.JobQueue
	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
	SearchUC  ports.DocumentSearcher

	WorkerMetrics *metrics.WorkerMetrics

	db   *sql.DB
	nats *natsqueue.Queue
	pool *inproc.Pool
}

// New wires every adapter. With the inproc backend the worker pool runs
// inside the calling process; with nats jobs are only published here.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)

	storage, err := newObjectStorage(ctx, cfg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	templates, err := annotation.LoadTemplates(cfg.PromptsFile)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load prompt templates: %w", err)
	}

	ollamaClient := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		ResilienceExecutor: resilience.NewExecutorWithLogger(resilienceConfig(cfg, 0), logger.With("dependency", "ollama")),
	})
	var embedder ports.Embedder = usecase.NoopEmbedder{}
	if cfg.EmbeddingsEnabled {
		embedder = ollama.NewEmbedder(ollamaClient, chunking.NewSplitter(cfg.EmbedChunkSize, cfg.EmbedChunkOverlap, cfg.EmbedMaxChunks))
	}

	textExtractor := extractor.NewDefault(tesseract.NewEngine(cfg.OCRLanguages...))
	processUC := usecase.NewProcessDocumentUseCase(
		repo,
		storage,
		textExtractor,
		annotation.NewProvider(ollamaClient, templates),
		embedder,
		logger,
	)

	app := &App{
		Config:        cfg,
		Logger:        logger,
		Repo:          repo,
		ProcessUC:     processUC,
		SearchUC:      usecase.NewSearchUseCase(repo, cfg.SearchDefaultLimit, cfg.SearchMaxLimit),
		WorkerMetrics: metrics.NewWorkerMetrics("docintel-worker"),
		db:            db,
	}

	switch cfg.QueueBackend {
	case config.QueueBackendNATS:
		queue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
			ResilienceExecutor: resilience.NewExecutorWithLogger(resilienceConfig(cfg, 2*time.Second), logger.With("dependency", "nats")),
			Logger:             logger,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.nats = queue
		app.Queue = queue
	default:
		app.pool = app.newPool()
		app.Queue = app.pool
	}

	app.IngestUC = usecase.NewIngestDocumentUseCase(repo, storage, app.Queue, textExtractor, cfg.MaxUploadBytes)
	return app, nil
}

// RunWorker consumes jobs from NATS into a local pool until ctx is done.
func (a *App) RunWorker(ctx context.Context) error {
	if a.nats == nil {
		return errors.New("worker process requires QUEUE_BACKEND=nats")
	}
	if a.pool == nil {
		a.pool = a.newPool()
	}
	a.Logger.Info("worker_subscribed", "subject", a.Config.NATSSubject, "concurrency", a.Config.WorkerConcurrency)
	return a.nats.Subscribe(ctx, a.pool.Submit)
}

// InProcessWorker reports whether documents are processed inside this process.
func (a *App) InProcessWorker() bool {
	return a.pool != nil
}

// Close drains the pool within ctx and releases connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.pool != nil {
		if err := a.pool.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close worker pool: %w", err))
		}
	}
	if a.nats != nil {
		a.nats.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close postgres: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) newPool() *inproc.Pool {
	return inproc.NewPool(a.ProcessUC.Process, inproc.Options{
		Workers:    a.Config.WorkerConcurrency,
		QueueSize:  a.Config.WorkerQueueSize,
		JobTimeout: time.Duration(a.Config.ProcessTimeoutSeconds) * time.Second,
		Logger:     a.Logger,
		Observer:   a.WorkerMetrics,
	})
}

func newObjectStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendMinIO:
		return miniostorage.New(ctx, miniostorage.Config{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
	default:
		return localfs.New(cfg.StoragePath)
	}
}

func resilienceConfig(cfg config.Config, attemptTimeout time.Duration) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	rc.BreakerEnabled = cfg.ResilienceBreakerEnabled
	rc.AttemptTimeout = attemptTimeout
	return rc
}

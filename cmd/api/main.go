package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/docintel/internal/adapters/http"
	"github.com/kirillkom/docintel/internal/bootstrap"
	"github.com/kirillkom/docintel/internal/config"
	"github.com/kirillkom/docintel/internal/observability/logging"
	"github.com/kirillkom/docintel/internal/observability/metrics"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("load env: %v", err)
	}
	cfg := config.Load()

	logger, logCloser := logging.New(logging.Options{
		Service:    "docintel-api",
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	defer logCloser.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}

	httpMetrics := metrics.NewHTTPServerMetrics("docintel-api")
	router := httpadapter.NewRouter(cfg, app.IngestUC, app.Repo, app.SearchUC, httpMetrics).Handler()
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var workerMetricsServer *http.Server
	if app.InProcessWorker() {
		workerMetricsServer = &http.Server{
			Addr:              ":" + cfg.WorkerMetricsPort,
			Handler:           app.WorkerMetrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
			if err := workerMetricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("worker_metrics_server_failed", "error", err)
			}
		}()
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort, "queue_backend", cfg.QueueBackend, "storage_backend", cfg.StorageBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
	if workerMetricsServer != nil {
		_ = workerMetricsServer.Shutdown(shutdownCtx)
	}
	if err := app.Close(shutdownCtx); err != nil {
		logger.Error("app_close_failed", "error", err)
	}
}

package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/docintel/internal/adapters/mcp"
	"github.com/kirillkom/docintel/internal/bootstrap"
	"github.com/kirillkom/docintel/internal/config"
	"github.com/kirillkom/docintel/internal/observability/logging"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("load env: %v", err)
	}
	cfg := config.Load()

	logger, logCloser := logging.New(logging.Options{
		Service:    "docintel-mcp",
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Console:    os.Stderr,
	})
	defer logCloser.Close()

	app, err := bootstrap.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = app.Close(ctx)
	}()

	tools := mcpadapter.NewTools(app.Repo, app.SearchUC, logger)
	logger.Info("mcp_serving_stdio")
	if err := server.ServeStdio(tools.NewServer()); err != nil {
		logger.Error("mcp_server_failed", "error", err)
	}
}

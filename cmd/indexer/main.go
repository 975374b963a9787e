// Command indexer consumes contract events from Kafka, materializes weather
// reports and serves the report query API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/weather-oracle/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/weather-oracle/internal/adapter/kafka"
	"github.com/couchcryptid/weather-oracle/internal/config"
	"github.com/couchcryptid/weather-oracle/internal/indexer"
	"github.com/couchcryptid/weather-oracle/internal/observability"
	"github.com/couchcryptid/weather-oracle/internal/pipeline"
	"github.com/couchcryptid/weather-oracle/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reports, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open report store", "error", err)
		return 1
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("report store close error", "error", err)
		}
	}()

	ix, err := indexer.New(reports, cfg.ReportCacheSize, logger, metrics)
	if err != nil {
		logger.Error("failed to create indexer", "error", err)
		return 1
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	p := pipeline.New(reader, pipeline.NewTransformer(logger), ix, logger, metrics, cfg.BatchSize)

	ready := httpadapter.ReadinessFunc(func(ctx context.Context) error {
		if p.CheckReadiness(ctx) == nil {
			return nil
		}
		return ix.CheckReadiness(ctx)
	})
	srv := httpadapter.NewServer(cfg.IndexerHTTPAddr, ready, logger, httpadapter.WithReports(reports))

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start indexer pipeline. A malformed event stops the process.
	pipelineErr := make(chan error, 1)
	go func() {
		pipelineErr <- p.Run(ctx)
		stop()
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	exitCode := 0
	select {
	case err := <-pipelineErr:
		if err != nil {
			logger.Error("pipeline error", "error", err)
			exitCode = 1
		}
	case <-shutdownCtx.Done():
		logger.Error("pipeline did not stop before shutdown timeout")
		exitCode = 1
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}

	logger.Info("shutdown complete")
	return exitCode
}

// openStore uses SQLite when REPORT_DB_PATH is set and memory otherwise.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.ReportStore, func() error, error) {
	if cfg.ReportDBPath == "" {
		logger.Warn("REPORT_DB_PATH not set, reports are kept in memory only")
		return store.NewMemoryStore(), func() error { return nil }, nil
	}
	s, err := store.NewSQLiteStore(ctx, cfg.ReportDBPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("report store opened", "path", cfg.ReportDBPath)
	return s, s.Close, nil
}

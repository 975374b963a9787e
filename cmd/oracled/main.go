// Command oracled hosts the weather request contract. It serves the request,
// callback, escrow and configuration API and relays contract events to Kafka.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/weather-oracle/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/weather-oracle/internal/adapter/kafka"
	"github.com/couchcryptid/weather-oracle/internal/config"
	"github.com/couchcryptid/weather-oracle/internal/domain"
	"github.com/couchcryptid/weather-oracle/internal/observability"
	"github.com/couchcryptid/weather-oracle/internal/oracle"
	"github.com/couchcryptid/weather-oracle/internal/relay"
	"github.com/couchcryptid/weather-oracle/internal/store"
	"github.com/ethereum/go-ethereum/common"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.ValidateOracle()
	}
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	contract, relayOpts, closeState, err := openContract(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to open contract", "error", err)
		return 1
	}
	defer func() {
		if err := closeState(); err != nil {
			logger.Error("contract state close error", "error", err)
		}
	}()

	writer := kafkaadapter.NewWriter(cfg, logger)
	r := relay.New(contract.Events(), writer, contract.Address(), cfg.RelayBatchSize, logger, metrics, relayOpts...)

	alwaysReady := httpadapter.ReadinessFunc(func(context.Context) error { return nil })
	srv := httpadapter.NewServer(cfg.HTTPAddr, alwaysReady, logger, httpadapter.WithOracle(contract))

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start event relay.
	relayErr := make(chan error, 1)
	go func() {
		relayErr <- r.Run(ctx)
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
	case err := <-relayErr:
		if err != nil {
			logger.Error("relay error", "error", err)
			exitCode = 1
		}
	case <-shutdownCtx.Done():
		logger.Error("relay did not stop before shutdown timeout")
		exitCode = 1
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete", "relay_cursor", r.Cursor(), "log_length", contract.Events().Len())
	return exitCode
}

// openContract restores the contract from STATE_DB_PATH when it is set, and
// resumes the relay from the stored cursor. Without it the contract lives in
// memory and a restart starts over from the configured state.
func openContract(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*oracle.Contract, []relay.Option, func() error, error) {
	fee, err := domain.ParseTokenAmount(cfg.Fee)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("FEE: %w", err)
	}
	escrow, err := domain.ParseTokenAmount(cfg.InitialEscrow)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("INITIAL_ESCROW: %w", err)
	}
	var taskID common.Hash
	if cfg.TaskID != "" {
		if taskID, err = domain.TaskIDFromString(cfg.TaskID); err != nil {
			return nil, nil, nil, fmt.Errorf("TASK_ID: %w", err)
		}
	}

	address := common.HexToAddress(cfg.ContractAddress)
	owner := common.HexToAddress(cfg.OwnerAddress)
	contractCfg := oracle.Configuration{
		CallbackAuthority: common.HexToAddress(cfg.CallbackAuthority),
		TaskID:            taskID,
		Fee:               fee,
	}
	opts := []oracle.Option{
		oracle.WithEscrow(escrow),
		oracle.WithLogger(logger),
		oracle.WithMetrics(metrics),
	}

	if cfg.StateDBPath == "" {
		logger.Warn("STATE_DB_PATH not set, contract state is kept in memory only")
		c, err := oracle.New(address, owner, contractCfg, opts...)
		if err != nil {
			return nil, nil, nil, err
		}
		return c, nil, func() error { return nil }, nil
	}

	s, err := store.NewContractStore(ctx, cfg.StateDBPath)
	if err != nil {
		return nil, nil, nil, err
	}
	c, err := oracle.Open(ctx, s, address, owner, contractCfg, opts...)
	if err != nil {
		_ = s.Close()
		return nil, nil, nil, err
	}
	cursor, err := s.Cursor(ctx, address)
	if err != nil {
		_ = s.Close()
		return nil, nil, nil, fmt.Errorf("load relay cursor: %w", err)
	}
	logger.Info("contract state opened", "path", cfg.StateDBPath, "relay_cursor", cursor)
	return c, []relay.Option{relay.WithCursor(cursor), relay.WithCheckpoint(s)}, s.Close, nil
}

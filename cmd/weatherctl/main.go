// Command weatherctl is the operator and client CLI for the weather oracle.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/weather-oracle/internal/client"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	// Settings may also come from a .env file in the working directory.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "weatherctl",
		Usage:     "Request, fulfill and administer weather oracle requests",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api",
				Usage:   "oracle API base URL",
				EnvVars: []string{"WEATHER_ORACLE_API"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "indexer-api",
				Usage:   "indexer API base URL",
				EnvVars: []string{"WEATHER_INDEXER_API"},
				Value:   "http://localhost:8081",
			},
			&cli.StringFlag{
				Name:    "caller",
				Usage:   "address to act as (sent in the X-Caller header)",
				EnvVars: []string{"WEATHER_CALLER"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "per-call HTTP timeout",
				Value: 10 * time.Second,
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log API calls to stderr",
			},
		},
		Commands: []*cli.Command{
			requestCmd,
			fulfillCmd,
			pendingCmd,
			escrowCmd,
			depositCmd,
			withdrawCmd,
			configCmd,
			setFeeCmd,
			setCallbackCmd,
			setTaskCmd,
			transferOwnershipCmd,
			reportsCmd,
		},
	}
}

func callerAddress(cctx *cli.Context) (common.Address, error) {
	raw := cctx.String("caller")
	if raw == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("--caller %q is not a hex address", raw)
	}
	return common.HexToAddress(raw), nil
}

func newClient(cctx *cli.Context, baseURL string) (*client.Client, error) {
	caller, err := callerAddress(cctx)
	if err != nil {
		return nil, err
	}
	level := slog.LevelWarn
	if cctx.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cctx.App.ErrWriter, &slog.HandlerOptions{Level: level}))
	return client.New(baseURL, caller, cctx.Duration("timeout"), logger), nil
}

// oracleClient targets the oracle API.
func oracleClient(cctx *cli.Context) (*client.Client, error) {
	return newClient(cctx, cctx.String("api"))
}

// indexerClient targets the indexer API.
func indexerClient(cctx *cli.Context) (*client.Client, error) {
	return newClient(cctx, cctx.String("indexer-api"))
}

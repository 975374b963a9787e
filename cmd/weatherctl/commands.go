package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	httpadapter "github.com/couchcryptid/weather-oracle/internal/adapter/http"
	"github.com/couchcryptid/weather-oracle/internal/client"
	"github.com/couchcryptid/weather-oracle/internal/domain"
	"github.com/urfave/cli/v2"
)

var requestCmd = &cli.Command{
	Name:      "request",
	Usage:     "request the current weather for a city, paid from escrow",
	ArgsUsage: "<city>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return errors.New("expected exactly one city argument")
		}
		api, err := oracleClient(cctx)
		if err != nil {
			return err
		}
		req, err := api.Request(cctx.Context, cctx.Args().First())
		if err != nil {
			return err
		}
		fmt.Fprintf(cctx.App.Writer, "Request ID: %s\n", req.ID)
		fmt.Fprintf(cctx.App.Writer, "City: %s\nFee: %s\n", req.City, req.Fee)
		return nil
	},
}

var fulfillCmd = &cli.Command{
	Name:  "fulfill",
	Usage: "deliver a weather result as the callback authority",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "id", Usage: "request ID", Required: true},
		&cli.StringFlag{Name: "city", Usage: "city name", Required: true},
		&cli.StringFlag{Name: "temperature", Usage: "temperature in Celsius, e.g. 15.5", Required: true},
		&cli.StringFlag{Name: "description", Usage: "conditions, e.g. Cloudy", Required: true},
		&cli.Int64Flag{Name: "timestamp", Usage: "observation time in unix seconds (default: now)"},
	},
	Action: func(cctx *cli.Context) error {
		temp, err := domain.ParseTemperature(cctx.String("temperature"))
		if err != nil {
			return err
		}
		ts := cctx.Int64("timestamp")
		if !cctx.IsSet("timestamp") {
			ts = time.Now().Unix()
		}
		api, err := oracleClient(cctx)
		if err != nil {
			return err
		}
		if err := api.Fulfill(cctx.Context, cctx.String("id"), cctx.String("city"), temp, cctx.String("description"), ts); err != nil {
			return err
		}
		fmt.Fprintf(cctx.App.Writer, "Fulfilled %s: %s, %s\n", cctx.String("id"), temp, cctx.String("description"))
		return nil
	},
}

var pendingCmd = &cli.Command{
	Name:  "pending",
	Usage: "list pending requests",
	Action: func(cctx *cli.Context) error {
		api, err := oracleClient(cctx)
		if err != nil {
			return err
		}
		reqs, err := api.Pending(cctx.Context)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cctx.App.Writer, 2, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCITY\tREQUESTER\tCREATED\tFEE")
		for _, r := range reqs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.City, r.Requester, formatUnix(r.CreatedAt), r.Fee)
		}
		return tw.Flush()
	},
}

var escrowCmd = &cli.Command{
	Name:  "escrow",
	Usage: "show the escrow balance",
	Action: func(cctx *cli.Context) error {
		api, err := oracleClient(cctx)
		if err != nil {
			return err
		}
		out, err := api.Escrow(cctx.Context)
		if err != nil {
			return err
		}
		fmt.Fprintf(cctx.App.Writer, "Balance: %s\n", out.Balance)
		return nil
	},
}

var depositCmd = &cli.Command{
	Name:      "deposit",
	Usage:     "fund the escrow",
	ArgsUsage: "<amount>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return errors.New("expected exactly one amount argument")
		}
		api, err := oracleClient(cctx)
		if err != nil {
			return err
		}
		out, err := api.Deposit(cctx.Context, cctx.Args().First())
		if err != nil {
			return err
		}
		fmt.Fprintf(cctx.App.Writer, "Balance: %s\n", out.Balance)
		return nil
	},
}

var withdrawCmd = &cli.Command{
	Name:      "withdraw",
	Usage:     "withdraw from escrow to the owner",
	ArgsUsage: "<amount>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return errors.New("expected exactly one amount argument")
		}
		api, err := oracleClient(cctx)
		if err != nil {
			return err
		}
		out, err := api.Withdraw(cctx.Context, cctx.Args().First())
		if err != nil {
			return err
		}
		fmt.Fprintf(cctx.App.Writer, "Withdrawn: %s\nBalance: %s\n", out.Amount, out.Balance)
		return nil
	},
}

var configCmd = &cli.Command{
	Name:  "config",
	Usage: "show the contract configuration",
	Action: func(cctx *cli.Context) error {
		api, err := oracleClient(cctx)
		if err != nil {
			return err
		}
		cfg, err := api.Config(cctx.Context)
		if err != nil {
			return err
		}
		printConfig(cctx, cfg)
		return nil
	},
}

var setFeeCmd = configSetter("set-fee", "set the fee charged per request", "<fee>", (*client.Client).SetFee)

var setCallbackCmd = configSetter("set-callback", "set the callback authority", "<address>", (*client.Client).SetCallbackAuthority)

var setTaskCmd = configSetter("set-task", "set the oracle job identifier", "<task-id>", (*client.Client).SetTaskID)

var transferOwnershipCmd = configSetter("transfer-ownership", "hand the contract to a new owner", "<address>", (*client.Client).TransferOwnership)

var reportsCmd = &cli.Command{
	Name:  "reports",
	Usage: "list materialized weather reports from the indexer",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "city", Usage: "only reports for this city"},
		&cli.StringFlag{Name: "requester", Usage: "only reports requested by this address"},
		&cli.IntFlag{Name: "limit", Usage: "maximum number of reports"},
	},
	Action: func(cctx *cli.Context) error {
		api, err := indexerClient(cctx)
		if err != nil {
			return err
		}
		reports, err := api.Reports(cctx.Context, client.ReportQuery{
			City:      cctx.String("city"),
			Requester: cctx.String("requester"),
			Limit:     cctx.Int("limit"),
		})
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cctx.App.Writer, 2, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tCITY\tTEMPERATURE\tDESCRIPTION\tREQUEST")
		for _, r := range reports {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", formatUnix(r.Timestamp), r.City, r.TemperatureFormatted, r.Description, r.ID)
		}
		return tw.Flush()
	},
}

func configSetter(name, usage, argsUsage string, set func(*client.Client, context.Context, string) (httpadapter.ConfigView, error)) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: argsUsage,
		Action: func(cctx *cli.Context) error {
			if cctx.NArg() != 1 {
				return fmt.Errorf("expected exactly one argument: %s", argsUsage)
			}
			api, err := oracleClient(cctx)
			if err != nil {
				return err
			}
			cfg, err := set(api, cctx.Context, cctx.Args().First())
			if err != nil {
				return err
			}
			printConfig(cctx, cfg)
			return nil
		},
	}
}

func printConfig(cctx *cli.Context, cfg httpadapter.ConfigView) {
	w := cctx.App.Writer
	fmt.Fprintf(w, "Contract: %s\n", cfg.Contract)
	fmt.Fprintf(w, "Owner: %s\n", cfg.Owner)
	fmt.Fprintf(w, "Callback authority: %s\n", cfg.CallbackAuthority)
	fmt.Fprintf(w, "Task ID: %s\n", cfg.TaskID)
	fmt.Fprintf(w, "Fee: %s\n", cfg.Fee)
}

func formatUnix(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/brojonat/sniper/client"
	"github.com/urfave/cli/v2"
)

func clientCommands() *cli.Command {
	return &cli.Command{
		Name:  "client",
		Usage: "HTTP client commands for interacting with the sniper service",
		Subcommands: []*cli.Command{
			submitCommand(),
			previewCommand(),
			txCommand(),
		},
	}
}

func newCLIClient(c *cli.Context) *client.Client {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only errors to stderr
	}))
	return client.NewClient(c.String("server-url"), &http.Client{Timeout: c.Duration("timeout")}, logger).
		WithAPIToken(c.String("api-token"))
}

func timeoutFlag() cli.Flag {
	return &cli.DurationFlag{
		Name:    "timeout",
		Aliases: []string{"t"},
		Value:   time.Minute,
		Usage:   "How long to wait for the server",
	}
}

func submitCommand() *cli.Command {
	return &cli.Command{
		Name:      "submit",
		Usage:     "Submit a post and wait for the outcome",
		ArgsUsage: "[TEXT]",
		Description: `Send a post to the server. A valid post triggers a real transfer.

The post is read from the arguments, or from stdin when there are none.
The command fails unless the transfer is confirmed.

Example:
  sniper client submit "Token Address: So11111111111111111111111111111111111111112 Amount: 1000"`,
		Flags: []cli.Flag{
			timeoutFlag(),
			&cli.StringFlag{
				Name:  "id",
				Usage: "Event id (generated by the server when empty)",
			},
		},
		Action: func(c *cli.Context) error {
			text, err := readPostText(c)
			if err != nil {
				return err
			}

			result, err := newCLIClient(c).SubmitEvent(context.Background(), c.String("id"), text)
			if err != nil {
				return fmt.Errorf("failed to submit post: %w", err)
			}

			if c.Bool("json") {
				data, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal result: %w", err)
				}
				fmt.Fprintln(c.App.Writer, string(data))
			} else {
				printResult(c, result)
			}

			if !result.Confirmed() {
				return fmt.Errorf("post %s: %s", result.Outcome, result.ErrorKind)
			}
			return nil
		},
	}
}

func previewCommand() *cli.Command {
	return &cli.Command{
		Name:      "preview",
		Usage:     "Show the transfer a post would trigger, without submitting it",
		ArgsUsage: "[TEXT]",
		Flags: []cli.Flag{
			timeoutFlag(),
		},
		Action: func(c *cli.Context) error {
			text, err := readPostText(c)
			if err != nil {
				return err
			}

			preview, err := newCLIClient(c).Preview(context.Background(), text)
			if err != nil {
				return fmt.Errorf("failed to preview post: %w", err)
			}

			if c.Bool("json") {
				data, err := json.MarshalIndent(preview, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal preview: %w", err)
				}
				fmt.Fprintln(c.App.Writer, string(data))
				return nil
			}

			fmt.Fprintf(c.App.Writer, "From:        %s\n", preview.From)
			fmt.Fprintf(c.App.Writer, "Destination: %s\n", preview.Destination)
			fmt.Fprintf(c.App.Writer, "Amount:      %d lamports\n", preview.Lamports)
			fmt.Fprintf(c.App.Writer, "Priority:    %s\n", preview.Priority)
			return nil
		},
	}
}

func txCommand() *cli.Command {
	return &cli.Command{
		Name:      "tx",
		Usage:     "Show the on-chain status of a submitted transfer",
		ArgsUsage: "SIGNATURE",
		Description: `Look up a transaction by the signature a submit returned.

The command fails when the transaction landed with an error.

Example:
  sniper client tx 5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7`,
		Flags: []cli.Flag{
			timeoutFlag(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("exactly one signature is required")
			}

			tx, err := newCLIClient(c).Transaction(context.Background(), c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to look up transaction: %w", err)
			}

			if c.Bool("json") {
				data, err := json.MarshalIndent(tx, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal transaction: %w", err)
				}
				fmt.Fprintln(c.App.Writer, string(data))
			} else {
				printTransaction(c, tx)
			}

			if tx.Found && tx.Err != nil {
				return fmt.Errorf("transaction failed on chain: %s", *tx.Err)
			}
			return nil
		},
	}
}

func printTransaction(c *cli.Context, tx *client.Transaction) {
	w := c.App.Writer
	if !tx.Found {
		fmt.Fprintf(w, "⏳ Transaction not found (yet)\n")
		fmt.Fprintf(w, "   Signature: %s\n", tx.Signature)
		return
	}

	if tx.Succeeded() {
		fmt.Fprintf(w, "✅ Transaction landed\n")
	} else {
		fmt.Fprintf(w, "❌ Transaction failed\n")
		fmt.Fprintf(w, "   Error:     %s\n", *tx.Err)
	}
	fmt.Fprintf(w, "   Signature: %s\n", tx.Signature)
	fmt.Fprintf(w, "   Slot:      %d\n", tx.Slot)
	if tx.BlockTime != nil {
		fmt.Fprintf(w, "   Time:      %s\n", tx.BlockTime.Format(time.RFC3339))
	}
	if tx.From != nil && tx.To != nil {
		fmt.Fprintf(w, "   Transfer:  %d lamports %s -> %s\n", tx.Lamports, *tx.From, *tx.To)
	}
	if tx.Memo != nil {
		fmt.Fprintf(w, "   Memo:      %s\n", *tx.Memo)
	}
}

func printResult(c *cli.Context, r *client.Result) {
	w := c.App.Writer
	switch {
	case r.Confirmed():
		fmt.Fprintf(w, "✅ Transfer confirmed\n")
		fmt.Fprintf(w, "   Signature:   %s\n", r.Signature)
		fmt.Fprintf(w, "   Destination: %s\n", r.Destination)
		fmt.Fprintf(w, "   Amount:      %d lamports\n", r.Lamports)
	default:
		fmt.Fprintf(w, "❌ Post %s at %s stage\n", r.Outcome, r.Stage)
		fmt.Fprintf(w, "   Kind:  %s\n", r.ErrorKind)
		fmt.Fprintf(w, "   Error: %s\n", r.Error)
	}
	fmt.Fprintf(w, "   Event: %s\n", r.EventID)
}

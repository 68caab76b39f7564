package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "sniper",
		Usage: "Post-triggered Solana transfer service CLI",
		Description: `A command-line tool for operating and debugging the sniper service.

Use this CLI to test intent extraction, manage signing keys, submit posts to a
running server and watch posts and results on NATS.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Offline intent commands
			{
				Name:  "intent",
				Usage: "Intent extraction commands",
				Subcommands: []*cli.Command{
					intentParseCommand(),
				},
			},
			// Signing key commands
			walletCommands(),
			// Client commands (HTTP API)
			clientCommands(),
			// NATS post and result commands
			{
				Name:  "nats",
				Usage: "NATS post and result streaming commands",
				Subcommands: []*cli.Command{
					publishPostCommand(),
					resultsCommand(),
				},
			},
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Sniper server URL",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "api-token",
				Usage:   "Bearer token for the /api/v1 routes",
				EnvVars: []string{"API_TOKEN"},
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}
}

package main

import (
	"encoding/json"
	"fmt"

	"github.com/brojonat/sniper/service/wallet"
	"github.com/urfave/cli/v2"
)

func walletCommands() *cli.Command {
	return &cli.Command{
		Name:  "wallet",
		Usage: "Signing key commands",
		Subcommands: []*cli.Command{
			walletKeygenCommand(),
			walletPubkeyCommand(),
		},
	}
}

func walletKeygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "Generate a new signing keypair",
		Description: `Generate a keypair. With --out it is written in the solana-keygen JSON format
and existing files are never overwritten; point PRIVATE_KEY_FILE at the result.
Without --out the base58 secret is printed for use as PRIVATE_KEY.

Example:
  sniper wallet keygen --out ./sniper-key.json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Path of the keypair file to create",
			},
		},
		Action: func(c *cli.Context) error {
			key, err := wallet.Generate()
			if err != nil {
				return err
			}

			path := c.String("out")
			if path == "" {
				return printKeypair(c, key.PublicKey().String(), key.String())
			}
			if err := wallet.WriteKeygenFile(path, key); err != nil {
				return err
			}

			return printPubkey(c, key.PublicKey().String(), path)
		},
	}
}

func walletPubkeyCommand() *cli.Command {
	return &cli.Command{
		Name:  "pubkey",
		Usage: "Show the public key of the configured credential",
		Description: `Load the credential the server would use and print its public key.
The secret is never printed.`,
		Flags: credentialFlags(),
		Action: func(c *cli.Context) error {
			cred, err := loadCredential(c)
			if err != nil {
				return err
			}
			return printPubkey(c, cred.PublicKey().String(), c.String("private-key-file"))
		},
	}
}

// credentialFlags are the settings the server reads its signing key from.
func credentialFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "private-key",
			Usage:   "Base58-encoded keypair",
			EnvVars: []string{"PRIVATE_KEY"},
		},
		&cli.StringFlag{
			Name:    "private-key-file",
			Usage:   "solana-keygen JSON keypair file",
			EnvVars: []string{"PRIVATE_KEY_FILE"},
		},
		&cli.StringFlag{
			Name:    "rpc-url",
			Usage:   "Solana RPC endpoint",
			EnvVars: []string{"SOLANA_RPC_URL"},
			Value:   "https://api.mainnet-beta.solana.com",
		},
	}
}

func hasCredential(c *cli.Context) bool {
	return c.String("private-key") != "" || c.String("private-key-file") != ""
}

func loadCredential(c *cli.Context) (*wallet.Credential, error) {
	return wallet.Load(wallet.CredentialConfig{
		PrivateKey:     c.String("private-key"),
		PrivateKeyFile: c.String("private-key-file"),
		RPCEndpoint:    c.String("rpc-url"),
	})
}

func printPubkey(c *cli.Context, pubkey, path string) error {
	if c.Bool("json") {
		data, err := json.Marshal(map[string]string{
			"pubkey": pubkey,
			"file":   path,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		fmt.Fprintln(c.App.Writer, string(data))
		return nil
	}

	fmt.Fprintf(c.App.Writer, "Public key: %s\n", pubkey)
	if path != "" {
		fmt.Fprintf(c.App.Writer, "Keypair:    %s\n", path)
	}
	return nil
}

func printKeypair(c *cli.Context, pubkey, secret string) error {
	if c.Bool("json") {
		data, err := json.Marshal(map[string]string{
			"pubkey":      pubkey,
			"private_key": secret,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		fmt.Fprintln(c.App.Writer, string(data))
		return nil
	}

	fmt.Fprintf(c.App.Writer, "Public key:  %s\n", pubkey)
	fmt.Fprintf(c.App.Writer, "Private key: %s\n", secret)
	return nil
}

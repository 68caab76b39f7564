package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/brojonat/sniper/service/intent"
	"github.com/brojonat/sniper/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"
)

// intentParseCommand runs extraction and validation locally, without a server.
func intentParseCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "Extract the trade intent from a post",
		ArgsUsage: "[TEXT]",
		Description: `Run intent extraction and transfer validation on a post without submitting anything.

The post is read from the first argument, or from stdin when no argument is given.
The transfer is built from --from, else from the configured signing key
(PRIVATE_KEY or PRIVATE_KEY_FILE), else from the zero key.

Example:
  sniper intent parse "Token Address: So11111111111111111111111111111111111111112 Amount: 1000"
  cat post.txt | sniper intent parse --json`,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "from",
				Usage: "Source account to build the transfer for (optional)",
			},
		}, credentialFlags()...),
		Action: func(c *cli.Context) error {
			text, err := readPostText(c)
			if err != nil {
				return err
			}

			in, err := intent.Extract(text)
			if err != nil {
				return err
			}

			from, err := sourceAccount(c)
			if err != nil {
				return err
			}
			inst, err := solana.Build(in, from, "")
			if err != nil {
				return err
			}

			if c.Bool("json") {
				out := map[string]any{
					"destination": inst.To.String(),
					"amount":      inst.Lamports,
				}
				if !from.IsZero() {
					out["from"] = from.String()
				}
				data, err := json.Marshal(out)
				if err != nil {
					return fmt.Errorf("failed to marshal intent: %w", err)
				}
				fmt.Fprintln(c.App.Writer, string(data))
				return nil
			}

			fmt.Fprintf(c.App.Writer, "✓ Valid trade intent\n")
			fmt.Fprintf(c.App.Writer, "  Destination: %s\n", inst.To)
			fmt.Fprintf(c.App.Writer, "  Amount:      %d lamports\n", inst.Lamports)
			if !from.IsZero() {
				fmt.Fprintf(c.App.Writer, "  From:        %s\n", from)
			}
			return nil
		},
	}
}

// sourceAccount picks the account a parsed transfer is built from.
// With neither --from nor a key, the zero key still lets destination and amount be validated.
func sourceAccount(c *cli.Context) (solanago.PublicKey, error) {
	if f := c.String("from"); f != "" {
		from, err := solanago.PublicKeyFromBase58(f)
		if err != nil {
			return solanago.PublicKey{}, fmt.Errorf("invalid --from: %w", err)
		}
		return from, nil
	}
	if !hasCredential(c) {
		return solanago.PublicKey{}, nil
	}
	cred, err := loadCredential(c)
	if err != nil {
		return solanago.PublicKey{}, err
	}
	return cred.PublicKey(), nil
}

// readPostText returns the joined arguments, or stdin when there are none.
func readPostText(c *cli.Context) (string, error) {
	if c.NArg() > 0 {
		return strings.Join(c.Args().Slice(), " "), nil
	}
	data, err := io.ReadAll(c.App.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to read post from stdin: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("post text is required (as an argument or on stdin)")
	}
	return string(data), nil
}

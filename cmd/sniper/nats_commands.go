package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	natspkg "github.com/brojonat/sniper/service/nats"
	"github.com/google/uuid"
	"github.com/itchyny/gojq"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

// publishPostCommand publishes a post to the posts stream, as an upstream feed would.
func publishPostCommand() *cli.Command {
	return &cli.Command{
		Name:      "post",
		Usage:     "Publish a post to the posts stream",
		ArgsUsage: "[TEXT]",
		Description: `Publish a post for the server's NATS consumer to pick up.

The post is read from the arguments, or from stdin when there are none.
Every post gets a unique message id so JetStream drops accidental duplicates.

Example:
  sniper nats post --subject posts.telegram "Token Address: So11111111111111111111111111111111111111112 Amount: 1000"`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "subject",
				Usage:   "Subject to publish on",
				EnvVars: []string{"EVENT_SUBJECT"},
				Value:   "posts.cli",
			},
			&cli.StringFlag{
				Name:  "id",
				Usage: "Message id (random when empty)",
			},
		},
		Action: func(c *cli.Context) error {
			text, err := readPostText(c)
			if err != nil {
				return err
			}

			logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
			publisher, err := natspkg.NewPublisher(c.String("nats-url"), nil, logger)
			if err != nil {
				return err
			}
			defer publisher.Close()

			subject := c.String("subject")
			if err := publisher.EnsurePostStream(subject); err != nil {
				return err
			}

			id := c.String("id")
			if id == "" {
				id = uuid.NewString()
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := publisher.PublishPost(ctx, subject, id, []byte(text)); err != nil {
				return err
			}

			fmt.Fprintf(c.App.Writer, "📨 Published post %s to %s\n", id, subject)
			return nil
		},
	}
}

// resultsCommand streams pipeline results from JetStream.
func resultsCommand() *cli.Command {
	return &cli.Command{
		Name:  "results",
		Usage: "Stream pipeline result events",
		Description: `Subscribe to the result events the server publishes for every post.

Events are published to the subject: snipes.{outcome}
Each --filter is a jq expression evaluated against the event; all must be truthy.

Example:
  sniper nats results --outcome confirmed
  sniper nats results --filter '.amount > 1000000' --count 1 --json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "outcome",
				Usage: "Only show one outcome (confirmed, rejected, invalid)",
			},
			&cli.StringSliceFlag{
				Name:    "filter",
				Aliases: []string{"f"},
				Usage:   "jq filter over the result event (repeatable)",
			},
			&cli.IntFlag{
				Name:  "count",
				Usage: "Exit after this many matching events (0 = forever)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Give up after this long (0 = no timeout)",
			},
		},
		Action: func(c *cli.Context) error {
			filters, err := compileFilters(c.StringSlice("filter"))
			if err != nil {
				return err
			}

			subject := natspkg.ResultStreamSubjects
			if outcome := c.String("outcome"); outcome != "" {
				subject = natspkg.ResultSubject(outcome)
			}

			return streamResults(c, subject, filters, c.Int("count"), c.Duration("timeout"))
		},
	}
}

// streamResults connects to NATS and prints matching result events.
func streamResults(c *cli.Context, subject string, filters []*gojq.Code, count int, timeout time.Duration) error {
	jsonOutput := c.Bool("json")

	// Connect to NATS
	nc, err := nats.Connect(c.String("nats-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// Ephemeral consumer that only sees new results
	cons, err := js.OrderedConsumer(ctx, natspkg.ResultStreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{subject},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	if !jsonOutput {
		fmt.Fprintf(c.App.Writer, "📡 Subscribing to: %s\n", subject)
		fmt.Fprintf(c.App.Writer, "\nWaiting for results... (Ctrl-C to exit)\n\n")
	}

	msgChan := make(chan jetstream.Msg, 10)
	cc, err := cons.Consume(func(msg jetstream.Msg) {
		msgChan <- msg
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer cc.Stop()

	matched := 0
	for {
		select {
		case msg := <-msgChan:
			var event natspkg.ResultEvent
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				fmt.Fprintf(os.Stderr, "Error parsing event: %v\n", err)
				continue
			}

			ok, err := matchesFilters(filters, msg.Data())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error evaluating filter: %v\n", err)
				continue
			}
			if !ok {
				continue
			}

			matched++
			printResultEvent(c, &event, msg.Data())

			if count > 0 && matched >= count {
				return nil
			}

		case <-ctx.Done():
			if timeout > 0 && matched == 0 && ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("no matching results received in %s", timeout)
			}
			return nil
		}
	}
}

// compileFilters parses and compiles jq filters.
func compileFilters(exprs []string) ([]*gojq.Code, error) {
	codes := make([]*gojq.Code, len(exprs))
	for i, filter := range exprs {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		codes[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
	}
	return codes, nil
}

// matchesFilters reports whether every filter is truthy for the JSON document data.
func matchesFilters(filters []*gojq.Code, data []byte) (bool, error) {
	if len(filters) == 0 {
		return true, nil
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return false, fmt.Errorf("event is not valid JSON: %w", err)
	}

	for _, code := range filters {
		iter := code.Run(doc)
		v, ok := iter.Next()
		if !ok {
			return false, nil
		}
		if err, isErr := v.(error); isErr {
			return false, err
		}
		if !isTruthy(v) {
			return false, nil
		}
	}
	return true, nil
}

// isTruthy checks if a jq result value is truthy.
// In jq, false and null are falsy, everything else is truthy.
func isTruthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

func printResultEvent(c *cli.Context, event *natspkg.ResultEvent, raw []byte) {
	w := c.App.Writer
	if c.Bool("json") {
		fmt.Fprintln(w, string(raw))
		return
	}

	switch event.Outcome {
	case "confirmed":
		fmt.Fprintf(w, "✅ %s confirmed\n", event.EventID)
		fmt.Fprintf(w, "   Signature:   %s\n", event.Signature)
		fmt.Fprintf(w, "   Destination: %s\n", event.Destination)
		fmt.Fprintf(w, "   Amount:      %d lamports\n", event.Amount)
	default:
		fmt.Fprintf(w, "❌ %s %s at %s stage (%s)\n", event.EventID, event.Outcome, event.Stage, event.ErrorKind)
		if event.Reason != "" {
			fmt.Fprintf(w, "   Reason: %s\n", event.Reason)
		}
	}
	fmt.Fprintf(w, "   Source: %s\n", event.Source)
	fmt.Fprintf(w, "   Published: %s\n\n", event.PublishedAt.Format(time.RFC3339))
}

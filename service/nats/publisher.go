package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/sniper/service/metrics"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher defines the interface for publishing to NATS.
type Publisher interface {
	// PublishResult publishes a pipeline result to JetStream.
	// The event is published to the subject "snipes.{outcome}".
	PublishResult(ctx context.Context, event *ResultEvent) error

	// PublishPost publishes a raw post to the events stream.
	// A non-empty id is sent as the Nats-Msg-Id header.
	PublishPost(ctx context.Context, subject, id string, data []byte) error

	// Close closes the connection to NATS.
	Close() error
}

// JetStreamPublisher publishes result events and posts to NATS JetStream.
type JetStreamPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	metrics *metrics.Metrics
	logger  *slog.Logger
}

const (
	// ResultStreamName is the name of the JetStream stream for pipeline results.
	ResultStreamName = "SNIPES"

	// ResultSubjectPrefix prefixes every result subject.
	ResultSubjectPrefix = "snipes."

	// ResultStreamSubjects is the subject pattern for the result stream.
	ResultStreamSubjects = "snipes.*"

	// PostStreamName is the name of the JetStream stream inbound posts arrive on.
	PostStreamName = "POSTS"

	// StreamRetention is how long messages are retained (7 days by default).
	StreamRetention = 7 * 24 * time.Hour
)

// connect dials NATS and creates a JetStream context.
func connect(natsURL, name string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name(name),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1), // Unlimited reconnects
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return nc, js, nil
}

// NewPublisher creates a new JetStream publisher.
// It connects to NATS and ensures the result stream exists.
// If metrics is nil, no metrics will be recorded.
func NewPublisher(natsURL string, m *metrics.Metrics, logger *slog.Logger) (*JetStreamPublisher, error) {
	nc, js, err := connect(natsURL, "sniper-publisher")
	if err != nil {
		return nil, err
	}

	publisher := &JetStreamPublisher{
		nc:      nc,
		js:      js,
		metrics: m,
		logger:  logger,
	}

	if err := ensureStream(js, jetstream.StreamConfig{
		Name:        ResultStreamName,
		Description: "Outcomes of post-triggered transfers",
		Subjects:    []string{ResultStreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	}, logger); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"stream", ResultStreamName,
	)

	return publisher, nil
}

// ensureStream creates the JetStream stream if it doesn't exist.
func ensureStream(js jetstream.JetStream, cfg jetstream.StreamConfig, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Try to get existing stream
	stream, err := js.Stream(ctx, cfg.Name)
	if err == nil {
		info, err := stream.Info(ctx)
		if err == nil {
			logger.Debug("JetStream stream already exists",
				"stream", cfg.Name,
				"messages", info.State.Msgs,
			)
		}
		return nil
	}

	logger.Info("creating JetStream stream", "stream", cfg.Name, "subjects", cfg.Subjects)

	if _, err := js.CreateStream(ctx, cfg); err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	logger.Info("JetStream stream created successfully", "stream", cfg.Name)
	return nil
}

// PublishResult publishes a single result event.
func (p *JetStreamPublisher) PublishResult(ctx context.Context, event *ResultEvent) error {
	subject := ResultSubject(event.Outcome)
	if event.PublishedAt.IsZero() {
		event.PublishedAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal result event: %w", err)
	}

	if err := p.publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish result: %w", err)
	}

	p.logger.DebugContext(ctx, "published result event",
		"subject", subject,
		"event_id", event.EventID,
		"signature", event.Signature,
	)

	return nil
}

// PublishPost publishes a raw post. The subject must be covered by the posts stream.
func (p *JetStreamPublisher) PublishPost(ctx context.Context, subject, id string, data []byte) error {
	var opts []jetstream.PublishOpt
	if id != "" {
		opts = append(opts, jetstream.WithMsgID(id))
	}
	if err := p.publish(ctx, subject, data, opts...); err != nil {
		return fmt.Errorf("failed to publish post: %w", err)
	}
	return nil
}

func (p *JetStreamPublisher) publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) error {
	start := time.Now()
	_, err := p.js.Publish(ctx, subject, data, opts...)
	if p.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		p.metrics.RecordNATSPublish(subject, status, time.Since(start).Seconds())
	}
	return err
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}

// EnsurePostStream creates the posts stream covering subject if it doesn't exist.
func (p *JetStreamPublisher) EnsurePostStream(subject string) error {
	return ensureStream(p.js, postStreamConfig(subject), p.logger)
}

func postStreamConfig(subject string) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        PostStreamName,
		Description: "Inbound posts awaiting intent extraction",
		Subjects:    []string{subject},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	}
}

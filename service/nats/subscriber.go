package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/sniper/service/metrics"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// PostHandler processes one post. It is called synchronously, one post at a time.
type PostHandler func(ctx context.Context, post Post)

// SubscriberConfig configures the posts consumer.
type SubscriberConfig struct {
	URL          string
	Subject      string // e.g. "posts.>"
	ConsumerName string // durable consumer name
}

// Subscriber delivers posts from JetStream to a PostHandler.
//
// Delivery is at-most-once: each message is acked before it is handled and the
// consumer never redelivers, so a post can never trigger two transfers.
type Subscriber struct {
	nc       *nats.Conn
	consumer jetstream.Consumer
	decoder  *TextDecoder
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewSubscriber connects to NATS, ensures the posts stream exists and creates the
// durable consumer. If metrics is nil, no metrics will be recorded.
func NewSubscriber(cfg SubscriberConfig, decoder *TextDecoder, m *metrics.Metrics, logger *slog.Logger) (*Subscriber, error) {
	nc, js, err := connect(cfg.URL, "sniper-subscriber")
	if err != nil {
		return nil, err
	}

	if err := ensureStream(js, postStreamConfig(cfg.Subject), logger); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	consumer, err := js.CreateOrUpdateConsumer(ctx, PostStreamName, jetstream.ConsumerConfig{
		Durable:       cfg.ConsumerName,
		Description:   "sniper post consumer",
		FilterSubject: cfg.Subject,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	logger.Info("NATS subscriber initialized",
		"url", cfg.URL,
		"stream", PostStreamName,
		"subject", cfg.Subject,
		"consumer", cfg.ConsumerName,
	)

	return &Subscriber{
		nc:       nc,
		consumer: consumer,
		decoder:  decoder,
		metrics:  m,
		logger:   logger,
	}, nil
}

// Run consumes posts until ctx is done. Posts already handed to handler run to
// completion after ctx is done; only the dispatcher's own timeout bounds them.
func (s *Subscriber) Run(ctx context.Context, handler PostHandler) error {
	handlerCtx := context.WithoutCancel(ctx)
	cc, err := s.consumer.Consume(func(msg jetstream.Msg) {
		s.handleMsg(handlerCtx, msg, handler)
	}, jetstream.ConsumeErrHandler(func(_ jetstream.ConsumeContext, err error) {
		s.logger.WarnContext(ctx, "consume error", "error", err)
	}))
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	<-ctx.Done()
	cc.Drain()
	<-cc.Closed()
	s.logger.Info("NATS subscriber stopped")
	return nil
}

func (s *Subscriber) handleMsg(ctx context.Context, msg jetstream.Msg, handler PostHandler) {
	received := time.Now().UTC()

	// Ack first: a post that fails part way must not come back.
	if err := msg.Ack(); err != nil {
		s.logger.ErrorContext(ctx, "failed to ack post, skipping", "subject", msg.Subject(), "error", err)
		s.recordConsume("ack_error")
		return
	}

	text, err := s.decoder.Decode(msg.Data())
	if err != nil {
		s.logger.WarnContext(ctx, "dropping undecodable post", "subject", msg.Subject(), "error", err)
		s.recordConsume("decode_error")
		return
	}

	post := Post{
		Subject:    msg.Subject(),
		Text:       text,
		ReceivedAt: received,
	}
	if h := msg.Headers(); h != nil {
		post.ID = h.Get(jetstream.MsgIDHeader)
	}

	s.recordConsume("success")
	handler(ctx, post)
}

func (s *Subscriber) recordConsume(status string) {
	if s.metrics != nil {
		s.metrics.RecordNATSConsume(status)
	}
}

// Close closes the connection to NATS.
func (s *Subscriber) Close() error {
	if s.nc != nil {
		s.nc.Close()
	}
	return nil
}

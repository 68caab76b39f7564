package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/brojonat/sniper/service/metrics"
	natspkg "github.com/brojonat/sniper/service/nats"
)

// Event sources.
const (
	SourceHTTP = "http"
	SourceNATS = "nats"
)

// publishTimeout bounds publishing a result after the pipeline has finished.
const publishTimeout = 5 * time.Second

// ResultPublisher defines the NATS publishing operations needed by the dispatcher.
// This allows for easy mocking in tests.
type ResultPublisher interface {
	PublishResult(ctx context.Context, event *natspkg.ResultEvent) error
}

// Event is one post handed to the dispatcher by a transport.
type Event struct {
	ID         string // optional; a fresh id is used when empty
	Source     string
	Text       string
	ReceivedAt time.Time
}

// Dispatcher is the outermost caller of the pipeline. It bounds each run with a
// timeout, logs the outcome, records metrics and publishes a result event.
// Handle never fails, so transports keep delivering.
type Dispatcher struct {
	pipeline  *Pipeline
	publisher ResultPublisher
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher.
// publisher and metrics may be nil; timeout <= 0 means no timeout.
func NewDispatcher(p *Pipeline, publisher ResultPublisher, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		pipeline:  p,
		publisher: publisher,
		timeout:   timeout,
		metrics:   m,
		logger:    logger,
	}
}

// Pipeline returns the pipeline the dispatcher runs.
func (d *Dispatcher) Pipeline() *Pipeline {
	return d.pipeline
}

// Handle runs one event through the pipeline and reports the result.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) *Result {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now().UTC()
	}
	if d.metrics != nil {
		d.metrics.RecordEventReceived(ev.Source)
	}

	runCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	res, err := d.pipeline.Process(runCtx, ev.Text)
	if ev.ID != "" {
		res.EventID = ev.ID
	}

	logger := d.logger.With("event_id", res.EventID, "source", ev.Source)
	switch {
	case err == nil:
		logger.InfoContext(ctx, "transfer submitted",
			"signature", res.Signature.String(),
			"to", res.Instruction.To.String(),
			"lamports", res.Instruction.Lamports,
			"priority", res.Instruction.Priority,
		)
	case res.Outcome == OutcomeInvalid:
		logger.WarnContext(ctx, "post ignored",
			"stage", res.Stage,
			"kind", res.ErrorKind,
			"error", err,
		)
	default:
		logger.ErrorContext(ctx, "transfer failed",
			"stage", res.Stage,
			"kind", res.ErrorKind,
			"error", err,
		)
	}

	if d.metrics != nil {
		if err != nil {
			d.metrics.RecordStageFailure(res.Stage, res.ErrorKind)
		}
		d.metrics.RecordOutcome(string(res.Outcome), time.Since(ev.ReceivedAt).Seconds())
	}

	d.publish(ctx, res.ResultEvent(ev))
	return res
}

// HandlePost adapts Handle to the NATS subscriber.
func (d *Dispatcher) HandlePost(ctx context.Context, post natspkg.Post) {
	d.Handle(ctx, Event{
		ID:         post.ID,
		Source:     SourceNATS + ":" + post.Subject,
		Text:       post.Text,
		ReceivedAt: post.ReceivedAt,
	})
}

func (d *Dispatcher) publish(ctx context.Context, event *natspkg.ResultEvent) {
	if d.publisher == nil {
		return
	}
	// Publish even if the caller's context is already done.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := d.publisher.PublishResult(ctx, event); err != nil {
		d.logger.ErrorContext(ctx, "failed to publish result",
			"event_id", event.EventID,
			"outcome", event.Outcome,
			"error", err,
		)
	}
}

// ResultEvent converts the result into the event published to NATS.
func (r *Result) ResultEvent(ev Event) *natspkg.ResultEvent {
	event := &natspkg.ResultEvent{
		EventID:    r.EventID,
		Source:     ev.Source,
		Outcome:    string(r.Outcome),
		Stage:      r.Stage,
		ErrorKind:  r.ErrorKind,
		ReceivedAt: ev.ReceivedAt,
	}
	if r.Err != nil {
		event.Reason = r.Err.Error()
	}
	if r.Intent != nil {
		event.Destination = r.Intent.DestinationAddress
		event.Amount = r.Intent.Amount
	}
	if r.Instruction != nil {
		event.Priority = r.Instruction.Priority
	}
	if !r.Signature.IsZero() {
		event.Signature = r.Signature.String()
	}
	return event
}

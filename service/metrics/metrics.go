package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal    *prometheus.CounterVec
	solanaRPCCallDuration  *prometheus.HistogramVec
	solanaRPCRateLimitHits *prometheus.CounterVec

	// Pipeline Metrics
	eventsReceivedTotal  *prometheus.CounterVec
	stageFailuresTotal   *prometheus.CounterVec
	pipelineOutcomes     *prometheus.CounterVec
	pipelineDuration     *prometheus.HistogramVec
	submissionsTotal     *prometheus.CounterVec
	submissionDuration   *prometheus.HistogramVec
	transferLamportsSent *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
	natsMessagesConsumed  *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		solanaRPCRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_rate_limit_hits_total",
				Help: "Total number of Solana RPC rate limit hits (429 errors)",
			},
			[]string{"endpoint"},
		),

		// Pipeline Metrics
		eventsReceivedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sniper_events_received_total",
				Help: "Total number of post events received by source",
			},
			[]string{"source"},
		),
		stageFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sniper_stage_failures_total",
				Help: "Total number of events that failed at a pipeline stage",
			},
			[]string{"stage", "kind"},
		),
		pipelineOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sniper_pipeline_outcomes_total",
				Help: "Total number of processed events by outcome",
			},
			[]string{"outcome"},
		),
		pipelineDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sniper_pipeline_duration_seconds",
				Help:    "Duration from event receipt to outcome in seconds",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"outcome"},
		),
		submissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sniper_submissions_total",
				Help: "Total number of transfer submissions by final status and priority",
			},
			[]string{"status", "priority"},
		),
		submissionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sniper_submission_duration_seconds",
				Help:    "Duration of sign-and-send in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"status"},
		),
		transferLamportsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sniper_transfer_lamports_total",
				Help: "Total lamports in transfers accepted by the network",
			},
			[]string{"priority"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
		natsMessagesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_consumed_total",
				Help: "Total number of NATS messages consumed",
			},
			[]string{"status"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRateLimitHit records a rate limit hit (429 error).
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.solanaRPCRateLimitHits.WithLabelValues(endpoint).Inc()
}

// Pipeline metric helpers

// RecordEventReceived records a post event entering the pipeline.
func (m *Metrics) RecordEventReceived(source string) {
	m.eventsReceivedTotal.WithLabelValues(source).Inc()
}

// RecordStageFailure records an event stopped at a pipeline stage.
func (m *Metrics) RecordStageFailure(stage, kind string) {
	m.stageFailuresTotal.WithLabelValues(stage, kind).Inc()
}

// RecordOutcome records the final outcome of one event.
func (m *Metrics) RecordOutcome(outcome string, duration float64) {
	m.pipelineOutcomes.WithLabelValues(outcome).Inc()
	m.pipelineDuration.WithLabelValues(outcome).Observe(duration)
}

// RecordSubmission records one sign-and-send attempt.
func (m *Metrics) RecordSubmission(status, priority string, duration float64) {
	m.submissionsTotal.WithLabelValues(status, priority).Inc()
	m.submissionDuration.WithLabelValues(status).Observe(duration)
}

// RecordLamportsSent records the value of an accepted transfer.
func (m *Metrics) RecordLamportsSent(priority string, lamports uint64) {
	m.transferLamportsSent.WithLabelValues(priority).Add(float64(lamports))
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// RecordNATSConsume records a message taken off the event stream.
func (m *Metrics) RecordNATSConsume(status string) {
	m.natsMessagesConsumed.WithLabelValues(status).Inc()
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}

package nats

import (
	"time"
)

// Post is one inbound post taken off the events stream.
type Post struct {
	ID         string // Nats-Msg-Id header, empty if the producer did not set one
	Subject    string
	Text       string
	ReceivedAt time.Time
}

// ResultEvent represents the outcome of one post going through the pipeline.
// This is published to the subject "snipes.{outcome}" in JetStream.
type ResultEvent struct {
	// Event identifiers
	EventID string `json:"event_id"`
	Source  string `json:"source"` // "nats:{subject}" or "http"

	// Outcome: "confirmed", "rejected" or "invalid"
	Outcome   string `json:"outcome"`
	Stage     string `json:"stage,omitempty"`      // failing stage, empty on success
	ErrorKind string `json:"error_kind,omitempty"` // e.g. "malformed_input", "connectivity"
	Reason    string `json:"reason,omitempty"`

	// Transfer details, set once the intent was extracted
	Destination string `json:"destination,omitempty"`
	Amount      uint64 `json:"amount,omitempty"` // lamports
	Priority    string `json:"priority,omitempty"`
	Signature   string `json:"signature,omitempty"`

	// Timing information
	ReceivedAt  time.Time `json:"received_at"`
	PublishedAt time.Time `json:"published_at"`
}

// ResultSubject returns the subject a result with the given outcome is published to.
func ResultSubject(outcome string) string {
	return ResultSubjectPrefix + outcome
}

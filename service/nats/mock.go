package nats

import (
	"context"
	"sync"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu              sync.RWMutex
	publishedEvents []*ResultEvent
	publishedPosts  []MockPost
	publishError    error
	closed          bool
}

// MockPost is a post recorded by MockPublisher.
type MockPost struct {
	Subject string
	ID      string
	Data    []byte
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		publishedEvents: make([]*ResultEvent, 0),
	}
}

// PublishResult records the event and returns any configured error.
func (m *MockPublisher) PublishResult(ctx context.Context, event *ResultEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}

	m.publishedEvents = append(m.publishedEvents, event)
	return nil
}

// PublishPost records the post and returns any configured error.
func (m *MockPublisher) PublishPost(ctx context.Context, subject, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}

	m.publishedPosts = append(m.publishedPosts, MockPost{Subject: subject, ID: id, Data: data})
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetPublishedEvents returns all published result events (for testing).
func (m *MockPublisher) GetPublishedEvents() []*ResultEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to avoid race conditions
	events := make([]*ResultEvent, len(m.publishedEvents))
	copy(events, m.publishedEvents)
	return events
}

// GetPublishedEventCount returns the number of published result events.
func (m *MockPublisher) GetPublishedEventCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.publishedEvents)
}

// GetPublishedEventsForOutcome returns result events published with the given outcome.
func (m *MockPublisher) GetPublishedEventsForOutcome(outcome string) []*ResultEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*ResultEvent, 0)
	for _, event := range m.publishedEvents {
		if event.Outcome == outcome {
			events = append(events, event)
		}
	}
	return events
}

// GetPublishedPosts returns all published posts.
func (m *MockPublisher) GetPublishedPosts() []MockPost {
	m.mu.RLock()
	defer m.mu.RUnlock()

	posts := make([]MockPost, len(m.publishedPosts))
	copy(posts, m.publishedPosts)
	return posts
}

// SetPublishError configures the mock to return an error on every publish.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// Reset clears all published events and errors.
func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishedEvents = make([]*ResultEvent, 0)
	m.publishedPosts = nil
	m.publishError = nil
	m.closed = false
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

package pubsub

import (
	"sync"

	"github.com/Billy-Davies-2/glitch-pits/internal/logger"
)

const defaultMockRetention = 1000

// MockNATSPubSub stands in for the JetStream bridge when no NATS server is
// wanted. It keeps the last events it saw, the way the stream would.
type MockNATSPubSub struct {
	subject     string
	subscribers []chan Event
	mu          sync.RWMutex
	messages    []Event
	maxMessages int
}

// NewMockNATSPubSub creates the in-process upstream.
func NewMockNATSPubSub(subject string) *MockNATSPubSub {
	logger.Info("Using mock NATS pub/sub", "subject", subject)
	return &MockNATSPubSub{
		subject:     subject,
		maxMessages: defaultMockRetention,
	}
}

// Publish stores the event and delivers it to every subscriber without blocking.
func (p *MockNATSPubSub) Publish(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.messages = append(p.messages, event)
	if len(p.messages) > p.maxMessages {
		p.messages = p.messages[len(p.messages)-p.maxMessages:]
	}

	for _, sub := range p.subscribers {
		select {
		case sub <- event:
		default:
			logger.Warn("Mock NATS: skipping slow subscriber", "event_type", event.Type)
		}
	}
	logger.Debug("Mock NATS: published event", "event_type", event.Type, "subject", p.subject)
}

func (p *MockNATSPubSub) Subscribe() chan Event {
	ch := make(chan Event, 100)

	p.mu.Lock()
	p.subscribers = append(p.subscribers, ch)
	p.mu.Unlock()
	return ch
}

func (p *MockNATSPubSub) Unsubscribe(ch chan Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, sub := range p.subscribers {
		if sub == ch {
			p.subscribers = append(p.subscribers[:i], p.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// Recent returns up to n retained events, oldest first.
func (p *MockNATSPubSub) Recent(n int) []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()

	start := len(p.messages) - n
	if start < 0 {
		start = 0
	}
	return append([]Event(nil), p.messages[start:]...)
}

// MessageCount returns the number of retained events.
func (p *MockNATSPubSub) MessageCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.messages)
}

func (p *MockNATSPubSub) SubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscribers)
}

// Ping always succeeds.
func (p *MockNATSPubSub) Ping() error { return nil }

// Close ends every subscription.
func (p *MockNATSPubSub) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, sub := range p.subscribers {
		close(sub)
	}
	p.subscribers = nil
}

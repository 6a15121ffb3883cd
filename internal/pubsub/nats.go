package pubsub

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Billy-Davies-2/glitch-pits/internal/logger"
	"github.com/nats-io/nats.go"
)

// NATSOptions configures the JetStream bridge.
type NATSOptions struct {
	Subject    string
	StreamName string
	Storage    nats.StorageType // zero value is file storage
	MaxAge     time.Duration    // defaults to DefaultStreamMaxAge
	MaxMsgs    int64            // defaults to DefaultStreamMaxMsgs
}

const (
	// Subscribers start at DeliverNew, so retained history is only kept
	// for operators inspecting the stream.
	DefaultStreamMaxAge  = time.Hour
	DefaultStreamMaxMsgs = 100_000

	// outboxSize bounds events waiting for a JetStream ack; beyond it events are dropped.
	outboxSize = 1024
)

// NATSPubSub implements Upstream on top of NATS JetStream. Every instance
// subscribes to the subject, so an event published by any instance reaches the
// local subscribers of all of them.
type NATSPubSub struct {
	nc          *nats.Conn
	js          nats.JetStreamContext
	sub         *nats.Subscription
	subject     string
	subscribers []chan Event
	mu          sync.RWMutex

	outbox  chan []byte
	closed  bool
	flushed chan struct{}
}

// NewNATSPubSub connects to an external NATS server.
func NewNATSPubSub(natsURL string, opts NATSOptions) (*NATSPubSub, error) {
	nc, err := nats.Connect(natsURL, nats.Name("glitch-pits"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	p, err := newNATSPubSub(nc, opts)
	if err != nil {
		nc.Close()
		return nil, err
	}
	logger.Info("Connected to NATS", "url", natsURL, "subject", opts.Subject, "stream", opts.StreamName)
	return p, nil
}

func newNATSPubSub(nc *nats.Conn, opts NATSOptions) (*NATSPubSub, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultStreamMaxAge
	}
	if opts.MaxMsgs <= 0 {
		opts.MaxMsgs = DefaultStreamMaxMsgs
	}

	if _, err := js.StreamInfo(opts.StreamName); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     opts.StreamName,
			Subjects: []string{opts.Subject},
			Storage:  opts.Storage,
			MaxAge:   opts.MaxAge,
			MaxMsgs:  opts.MaxMsgs,
			Discard:  nats.DiscardOld,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create stream: %w", err)
		}
		logger.Info("JetStream stream created", "stream", opts.StreamName, "subject", opts.Subject)
	}

	p := &NATSPubSub{
		nc:      nc,
		js:      js,
		subject: opts.Subject,
		outbox:  make(chan []byte, outboxSize),
		flushed: make(chan struct{}),
	}

	p.sub, err = js.Subscribe(opts.Subject, p.deliver, nats.ManualAck(), nats.DeliverNew())
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", opts.Subject, err)
	}
	go p.flush()
	return p, nil
}

// flush publishes queued events in order, waiting for each JetStream ack.
func (p *NATSPubSub) flush() {
	defer close(p.flushed)
	for data := range p.outbox {
		if p.nc.IsClosed() {
			continue
		}
		if _, err := p.js.Publish(p.subject, data); err != nil {
			logger.Error("Failed to publish to NATS", "error", err, "subject", p.subject)
			continue
		}
		logger.Debug("Published event to NATS", "subject", p.subject)
	}
}

func (p *NATSPubSub) deliver(msg *nats.Msg) {
	var event Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.Error("Failed to unmarshal event from JetStream", "error", err)
		_ = msg.Term()
		return
	}

	p.mu.RLock()
	for _, sub := range p.subscribers {
		select {
		case sub <- event:
		default:
			logger.Warn("NATS: Skipping slow subscriber", "event_type", event.Type)
		}
	}
	p.mu.RUnlock()

	_ = msg.Ack()
}

// Publish queues an event for JetStream and never blocks. Local delivery
// happens when the message comes back through the subscription. While NATS is
// unreachable the queue fills and further events are dropped.
func (p *NATSPubSub) Publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.outbox <- data:
	default:
		logger.Warn("NATS: outbox full, dropping event", "event_type", event.Type)
	}
}

// Subscribe creates a subscription channel for events
func (p *NATSPubSub) Subscribe() chan Event {
	ch := make(chan Event, 100)

	p.mu.Lock()
	p.subscribers = append(p.subscribers, ch)
	p.mu.Unlock()

	return ch
}

// Unsubscribe removes a subscription channel
func (p *NATSPubSub) Unsubscribe(ch chan Event) {
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

// SubscriberCount returns the number of active local subscribers
func (p *NATSPubSub) SubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscribers)
}

// Ping reports whether the NATS connection is usable.
func (p *NATSPubSub) Ping() error {
	if status := p.nc.Status(); status != nats.CONNECTED {
		return fmt.Errorf("nats connection %s", status)
	}
	return nil
}

// Close drains the subscription and closes the connection. Events still
// queued are attempted once more and fail fast on the closed connection.
func (p *NATSPubSub) Close() {
	if p.sub != nil {
		_ = p.sub.Unsubscribe()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.outbox)
	for _, sub := range p.subscribers {
		close(sub)
	}
	p.subscribers = nil
	p.mu.Unlock()

	if p.nc != nil {
		p.nc.Close()
	}
	<-p.flushed
}

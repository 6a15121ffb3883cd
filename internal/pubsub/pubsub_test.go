package pubsub

import (
	"sync"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	ps := New()
	if ps == nil {
		t.Fatal("New() returned nil")
	}
	if ps.subscribers == nil {
		t.Error("subscribers slice should be initialized")
	}
	if ps.upstream != nil {
		t.Error("upstream should be nil for basic PubSub")
	}
}

func TestSubscribeMultiple(t *testing.T) {
	ps := New()

	for i := 0; i < 3; i++ {
		if ch := ps.Subscribe(); ch == nil {
			t.Fatal("Subscribe() returned nil channel")
		}
	}
	if n := ps.SubscriberCount(); n != 3 {
		t.Errorf("expected 3 subscribers, got %d", n)
	}
}

func TestUnsubscribe(t *testing.T) {
	ps := New()

	ch := ps.Subscribe()
	ps.Unsubscribe(ch)

	if n := ps.SubscriberCount(); n != 0 {
		t.Errorf("expected 0 subscribers after unsubscribe, got %d", n)
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("channel should be closed after unsubscribe")
		}
	default:
		t.Error("channel should be closed and readable")
	}
}

func TestUnsubscribeMiddle(t *testing.T) {
	ps := New()

	ch1 := ps.Subscribe()
	ch2 := ps.Subscribe()
	ch3 := ps.Subscribe()

	ps.Unsubscribe(ch2)

	if n := ps.SubscriberCount(); n != 2 {
		t.Errorf("expected 2 subscribers, got %d", n)
	}

	ps.Publish(Event{Type: "test"})

	for i, ch := range []chan Event{ch1, ch3} {
		select {
		case <-ch:
		case <-time.After(100 * time.Millisecond):
			t.Errorf("subscriber %d should have received event", i)
		}
	}
}

func TestPublishNoSubscribers(t *testing.T) {
	ps := New()
	ps.Publish(Event{Type: "test"})
}

func TestNewEventEncodesPayload(t *testing.T) {
	evt := NewEvent("balanceUpdate", map[string]int{"balance": 4000})
	if string(evt.Payload) != `{"balance":4000}` {
		t.Fatalf("payload = %s", evt.Payload)
	}
	if !evt.Broadcast() {
		t.Fatal("new events are broadcast by default")
	}

	targeted := evt.To("conn-1")
	if targeted.Target != "conn-1" || targeted.Broadcast() {
		t.Fatalf("To did not address the event: %+v", targeted)
	}
	if evt.Target != "" {
		t.Fatal("To must not modify the original event")
	}

	var got struct{ Balance int }
	if err := targeted.Decode(&got); err != nil || got.Balance != 4000 {
		t.Fatalf("Decode = %+v, %v", got, err)
	}
}

func TestNewEventWithoutPayload(t *testing.T) {
	evt := NewEvent("ping", nil)
	if evt.Payload != nil {
		t.Fatalf("expected no payload, got %s", evt.Payload)
	}
}

func TestPublishSingleSubscriber(t *testing.T) {
	ps := New()
	ch := ps.Subscribe()

	ps.Publish(NewEvent("glitchLog", map[string]string{"message": "hi"}).To("abc"))

	select {
	case received := <-ch:
		if received.Type != "glitchLog" || received.Target != "abc" {
			t.Errorf("unexpected event %+v", received)
		}
		var p map[string]string
		if err := received.Decode(&p); err != nil || p["message"] != "hi" {
			t.Errorf("payload mismatch: %v %v", p, err)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for event")
	}
}

func TestPublishDropsWhenChannelFull(t *testing.T) {
	ps := New()
	ch := ps.Subscribe()

	for i := 0; i < subscriberBuffer+5; i++ {
		ps.Publish(Event{Type: "fill"})
	}

	count := 0
	for {
		select {
		case <-ch:
			count++
			continue
		default:
		}
		break
	}
	if count != subscriberBuffer {
		t.Errorf("expected %d events (buffer size), got %d", subscriberBuffer, count)
	}
}

func TestConcurrentSubscribeUnsubscribe(t *testing.T) {
	ps := New()

	var wg sync.WaitGroup
	const n = 50

	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ch := ps.Subscribe()
			time.Sleep(time.Millisecond)
			ps.Unsubscribe(ch)
		}()
		go func() {
			defer wg.Done()
			ps.Publish(Event{Type: "concurrent"})
		}()
	}

	wg.Wait()

	if subCount := ps.SubscriberCount(); subCount != 0 {
		t.Errorf("expected 0 subscribers after all unsubscribe, got %d", subCount)
	}
}

// MockUpstream implements Upstream for testing
type MockUpstream struct {
	mu          sync.Mutex
	published   []Event
	subscribers []chan Event
}

func NewMockUpstream() *MockUpstream {
	return &MockUpstream{}
}

func (m *MockUpstream) Publish(event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, event)
	for _, ch := range m.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

func (m *MockUpstream) Subscribe() chan Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan Event, 100)
	m.subscribers = append(m.subscribers, ch)
	return ch
}

func (m *MockUpstream) Unsubscribe(ch chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, sub := range m.subscribers {
		if sub == ch {
			close(ch)
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			break
		}
	}
}

func (m *MockUpstream) PublishedEvents() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]Event, len(m.published))
	copy(result, m.published)
	return result
}

func TestPublishWithUpstream(t *testing.T) {
	upstream := NewMockUpstream()
	ps := NewWithUpstream(upstream)
	if ps.upstream != upstream {
		t.Fatal("upstream not set correctly")
	}

	ch := ps.Subscribe()
	ps.Publish(NewEvent("rumbleEvent", map[string]string{"type": "kill"}))

	published := upstream.PublishedEvents()
	if len(published) != 1 || published[0].Type != "rumbleEvent" {
		t.Fatalf("expected one rumbleEvent upstream, got %+v", published)
	}

	select {
	case received := <-ch:
		if received.Type != "rumbleEvent" {
			t.Errorf("expected type rumbleEvent, got %s", received.Type)
		}
	case <-time.After(time.Second):
		t.Error("timeout waiting for event from upstream")
	}
}

func TestUpstreamBroadcastToLocalSubscribers(t *testing.T) {
	upstream := NewMockUpstream()
	ps := NewWithUpstream(upstream)

	ch1 := ps.Subscribe()
	ch2 := ps.Subscribe()

	// Simulates another instance publishing.
	upstream.Publish(Event{Type: "external:event"})

	for i, ch := range []chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			if received.Type != "external:event" {
				t.Errorf("subscriber %d: expected type external:event, got %s", i, received.Type)
			}
		case <-time.After(time.Second):
			t.Errorf("subscriber %d: timeout waiting for event", i)
		}
	}
}

func TestUnsubscribeNonexistent(t *testing.T) {
	ps := New()
	ch := make(chan Event, 1)

	ps.Unsubscribe(ch)

	select {
	case ch <- Event{Type: "test"}:
	default:
		t.Fatal("foreign channel should stay open")
	}
}

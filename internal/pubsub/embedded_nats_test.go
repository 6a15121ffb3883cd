package pubsub

import (
	"sync"
	"testing"
	"time"
)

func newEmbedded(t *testing.T) *EmbeddedNATSPubSub {
	t.Helper()
	ps, err := NewEmbeddedNATSPubSub(DefaultEmbeddedNATSOptions())
	if err != nil {
		t.Fatalf("Failed to create embedded NATS: %v", err)
	}
	t.Cleanup(ps.Close)
	return ps
}

func TestNewEmbeddedNATSPubSub(t *testing.T) {
	ps := newEmbedded(t)

	if ps.server == nil {
		t.Error("server should not be nil")
	}
	if ps.nc == nil || ps.js == nil {
		t.Error("connection and JetStream context should be set")
	}
	if ps.ServerURL() == "" {
		t.Error("server URL should not be empty")
	}
	if err := ps.Ping(); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestEmbeddedNATSUnsubscribe(t *testing.T) {
	ps := newEmbedded(t)

	ch := ps.Subscribe()
	if ps.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", ps.SubscriberCount())
	}
	ps.Unsubscribe(ch)

	if ps.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers after unsubscribe, got %d", ps.SubscriberCount())
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}
}

func TestEmbeddedNATSPublishAndReceive(t *testing.T) {
	ps := newEmbedded(t)
	ch := ps.Subscribe()

	ps.Publish(NewEvent("balanceUpdate", map[string]int{"balance": 4200}).To("conn-7"))

	select {
	case received := <-ch:
		if received.Type != "balanceUpdate" || received.Target != "conn-7" {
			t.Fatalf("unexpected event %+v", received)
		}
		var p struct{ Balance int }
		if err := received.Decode(&p); err != nil || p.Balance != 4200 {
			t.Errorf("payload mismatch: %+v %v", p, err)
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for event")
	}
}

func TestEmbeddedNATSAsPubSubUpstream(t *testing.T) {
	ps := NewWithUpstream(newEmbedded(t))
	ch1 := ps.Subscribe()
	ch2 := ps.Subscribe()

	ps.Publish(Event{Type: "rumbleState"})

	for i, ch := range []chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			if received.Type != "rumbleState" {
				t.Errorf("subscriber %d: got %s", i, received.Type)
			}
		case <-time.After(2 * time.Second):
			t.Errorf("subscriber %d: timeout waiting for event", i)
		}
	}
}

func TestEmbeddedNATSConcurrentPublish(t *testing.T) {
	ps := newEmbedded(t)
	ch := ps.Subscribe()

	var wg sync.WaitGroup
	const publishers, perPublisher = 5, 10

	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perPublisher; j++ {
				ps.Publish(NewEvent("glitchLog", map[string]int{"publisher": id, "seq": j}))
			}
		}(i)
	}
	wg.Wait()

	received := 0
	timeout := time.After(5 * time.Second)
	for received < publishers*perPublisher {
		select {
		case <-ch:
			received++
		case <-timeout:
			t.Fatalf("received %d/%d events before timeout", received, publishers*perPublisher)
		}
	}
}

func TestEmbeddedNATSClose(t *testing.T) {
	ps, err := NewEmbeddedNATSPubSub(DefaultEmbeddedNATSOptions())
	if err != nil {
		t.Fatalf("Failed to create embedded NATS: %v", err)
	}

	ch := ps.Subscribe()
	ps.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("channel should be closed after Close()")
		}
	default:
		t.Error("channel should be closed and readable")
	}
}

func TestEmbeddedNATSCustomOptions(t *testing.T) {
	ps, err := NewEmbeddedNATSPubSub(EmbeddedNATSOptions{
		Subject:    "custom.events",
		StreamName: "CUSTOM_STREAM",
	})
	if err != nil {
		t.Fatalf("Failed to create embedded NATS with custom options: %v", err)
	}
	defer ps.Close()

	if ps.subject != "custom.events" {
		t.Errorf("expected subject custom.events, got %s", ps.subject)
	}
	if _, err := ps.js.StreamInfo("CUSTOM_STREAM"); err != nil {
		t.Errorf("stream not created: %v", err)
	}
}

func TestDefaultEmbeddedNATSOptions(t *testing.T) {
	opts := DefaultEmbeddedNATSOptions()

	if opts.Port != -1 {
		t.Errorf("expected port -1 (random), got %d", opts.Port)
	}
	if opts.Subject != "pit.events" {
		t.Errorf("expected subject pit.events, got %s", opts.Subject)
	}
	if opts.StreamName != "PIT_EVENTS" {
		t.Errorf("expected stream name PIT_EVENTS, got %s", opts.StreamName)
	}
}

func TestEmbeddedNATSStreamIsBounded(t *testing.T) {
	ps := newEmbedded(t)

	info, err := ps.js.StreamInfo(DefaultEmbeddedNATSOptions().StreamName)
	if err != nil {
		t.Fatalf("StreamInfo: %v", err)
	}
	if info.Config.MaxAge != time.Hour {
		t.Errorf("MaxAge = %s, want 1h", info.Config.MaxAge)
	}
	if info.Config.MaxMsgs != DefaultStreamMaxMsgs {
		t.Errorf("MaxMsgs = %d, want %d", info.Config.MaxMsgs, DefaultStreamMaxMsgs)
	}
}

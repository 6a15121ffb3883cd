package pubsub

import (
	"fmt"
	"testing"
	"time"
)

func TestMockNATSRetainsRecentEvents(t *testing.T) {
	m := NewMockNATSPubSub("pit.events")
	m.maxMessages = 3

	for i := 0; i < 5; i++ {
		m.Publish(NewEvent("glitchLog", fmt.Sprintf("line %d", i)))
	}

	if got := m.MessageCount(); got != 3 {
		t.Fatalf("MessageCount() = %d, want 3", got)
	}
	recent := m.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("Recent(2) returned %d events", len(recent))
	}
	var last string
	if err := recent[1].Decode(&last); err != nil || last != "line 4" {
		t.Fatalf("newest = %q, %v", last, err)
	}
	if got := len(m.Recent(10)); got != 3 {
		t.Fatalf("Recent(10) returned %d events", got)
	}
}

func TestMockNATSAsUpstream(t *testing.T) {
	m := NewMockNATSPubSub("pit.events")
	defer m.Close()

	ps := NewWithUpstream(m)
	ch := ps.Subscribe()

	ps.Publish(NewEvent("rumbleState", nil).To("conn-1"))

	select {
	case evt := <-ch:
		if evt.Type != "rumbleState" || evt.Target != "conn-1" {
			t.Fatalf("got %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("event did not come back through the mock upstream")
	}
	if m.MessageCount() != 1 {
		t.Fatalf("MessageCount() = %d", m.MessageCount())
	}
	if err := m.Ping(); err != nil {
		t.Fatal(err)
	}
}

func TestMockNATSCloseEndsSubscriptions(t *testing.T) {
	m := NewMockNATSPubSub("pit.events")
	ch := m.Subscribe()
	other := m.Subscribe()
	m.Unsubscribe(other)

	if m.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount() = %d", m.SubscriberCount())
	}

	m.Close()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
	if m.SubscriberCount() != 0 {
		t.Fatal("subscribers left after Close")
	}
}

package events

import (
	"testing"
	"time"
)

func TestPublishReachesSubscriber(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish(IngestEvent{IngestID: "a1", Status: "done", At: time.Now()})
	select {
	case ev := <-ch:
		if ev.IngestID != "a1" || ev.Status != "done" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestCancelledSubscriberStopsReceiving(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe()
	cancel()

	b.Publish(IngestEvent{IngestID: "a2"})
	select {
	case ev := <-ch:
		t.Fatalf("unexpected delivery %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := NewBus()
	_, cancel := b.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		// Channel buffer is 16; publishing more must not block.
		for i := 0; i < 100; i++ {
			b.Publish(IngestEvent{IngestID: "x"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
}

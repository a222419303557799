// Package events carries ingest lifecycle notifications to SSE subscribers.
package events

import (
	"sync"
	"time"
)

// IngestEvent describes a state change for one ingest attempt.
type IngestEvent struct {
	IngestID   string    `json:"ingest_id"`
	MeetingKey string    `json:"meeting_key,omitempty"`
	Filename   string    `json:"filename"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// Bus is in-process pub/sub. Slow subscribers lose events rather than block
// publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan IngestEvent]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[chan IngestEvent]struct{})}
}

// Subscribe registers a buffered channel for future events. The returned
// cancel func must be called to release the subscription.
func (b *Bus) Subscribe() (<-chan IngestEvent, func()) {
	ch := make(chan IngestEvent, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	cancel := func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish fans the event out to every subscriber without blocking.
func (b *Bus) Publish(ev IngestEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

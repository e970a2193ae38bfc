// Package events provides the in-process domain event bus.
// Fan-out pattern: 1 publisher -> N subscribers (gateway, broker adapter).
package events

import (
	"log/slog"
	"sync"

	"support-chat/internal/core/domain"
)

const subscriberBufferSize = 256

// Bus is a non-blocking publish/subscribe fan-out for domain events.
// Publishing must never block the core services: a subscriber whose buffer
// is full misses the event (drop-if-full strategy).
type Bus struct {
	mu   sync.RWMutex
	subs []chan domain.Event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a new subscriber and returns its event channel.
func (b *Bus) Subscribe() <-chan domain.Event {
	ch := make(chan domain.Event, subscriberBufferSize)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Publish delivers ev to every subscriber without blocking.
func (b *Bus) Publish(ev domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber buffer full. Eventing must never block the
			// request path, so the event is dropped for this subscriber.
			slog.Warn("event subscriber buffer full, dropping event",
				"event_type", ev.Type,
				"room_id", ev.RoomID,
			)
		}
	}
}

// Close closes all subscriber channels. Call only after publishers stopped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}

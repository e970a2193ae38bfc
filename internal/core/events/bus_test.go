package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-chat/internal/core/domain"
)

func TestBusFanOut(t *testing.T) {
	bus := NewBus()
	first := bus.Subscribe()
	second := bus.Subscribe()

	ev := domain.NewEvent(domain.EventRoomCreated)
	ev.RoomID = "room-1"
	bus.Publish(ev)

	for _, ch := range []<-chan domain.Event{first, second} {
		select {
		case got := <-ch:
			assert.Equal(t, domain.EventRoomCreated, got.Type)
			assert.Equal(t, "room-1", got.RoomID)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus()
	slow := bus.Subscribe()

	// Saturate the subscriber buffer and then some; Publish must not block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBufferSize+10; i++ {
			bus.Publish(domain.NewEvent(domain.EventMessageCreated))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	// The buffered events are still there; the overflow was dropped.
	received := 0
	for {
		select {
		case <-slow:
			received++
			continue
		default:
		}
		break
	}
	assert.Equal(t, subscriberBufferSize, received)
}

func TestBusClose(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	bus.Close()

	_, open := <-sub
	require.False(t, open, "close must close subscriber channels")
}

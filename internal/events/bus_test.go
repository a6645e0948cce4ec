package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestPublishFansOut checks every subscriber receives a published event.
func TestPublishFansOut(t *testing.T) {
	t.Parallel()

	bus := NewBus(4)
	a := bus.Subscribe("a")
	b := bus.Subscribe("b")
	require.Equal(t, 2, bus.SubscriberCount())

	bus.Publish(Event{Type: AlertCreated, Subject: "alert-1", Summary: "critical alert"})

	for _, ch := range []<-chan Event{a, b} {
		select {
		case evt := <-ch:
			require.Equal(t, AlertCreated, evt.Type)
			require.Equal(t, "alert-1", evt.Subject)
			require.False(t, evt.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

// TestPublishDropsForFullSubscribers checks that publishing never blocks.
func TestPublishDropsForFullSubscribers(t *testing.T) {
	t.Parallel()

	bus := NewBus(1)
	ch := bus.Subscribe("slow")

	bus.Publish(Event{Type: ModuleRegistered, Subject: "m1"})
	bus.Publish(Event{Type: ModuleRegistered, Subject: "m2"})

	evt := <-ch
	require.Equal(t, "m1", evt.Subject)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected event %v", extra)
	default:
	}
}

// TestSubscribeReplacesAndUnsubscribeCloses checks channel lifecycle.
func TestSubscribeReplacesAndUnsubscribeCloses(t *testing.T) {
	t.Parallel()

	bus := NewBus(0)
	first := bus.Subscribe("x")
	second := bus.Subscribe("x")

	_, ok := <-first
	require.False(t, ok)
	require.Equal(t, 1, bus.SubscriberCount())

	bus.Unsubscribe("x")
	_, ok = <-second
	require.False(t, ok)
	require.Zero(t, bus.SubscriberCount())

	bus.Unsubscribe("x")
}

// TestNilBusPublishIsNoop checks the nil receiver guard.
func TestNilBusPublishIsNoop(t *testing.T) {
	t.Parallel()

	var bus *Bus
	require.NotPanics(t, func() { bus.Publish(Event{Type: AlertResolved}) })
}

// TestEventJSON checks the wire shape of an event.
func TestEventJSON(t *testing.T) {
	t.Parallel()

	evt := Event{
		Type:      ProtocolActivated,
		Subject:   "fire-response",
		Summary:   "Protocol activated",
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(evt.JSON(), &decoded))
	require.Equal(t, "protocol.activated", decoded["type"])
	require.Equal(t, "fire-response", decoded["subject"])
	require.NotContains(t, decoded, "detail")
}

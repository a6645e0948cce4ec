// Package events provides the pub/sub bus carrying alert, protocol and module
// lifecycle events to the websocket stream and other in-process listeners.
package events

import (
	"encoding/json"
	"sync"
	"time"
)

// EventType classifies lifecycle events
type EventType string

const (
	AlertCreated        EventType = "alert.created"
	AlertAcknowledged   EventType = "alert.acknowledged"
	AlertResolved       EventType = "alert.resolved"
	AlertEscalated      EventType = "alert.escalated"
	ProtocolActivated   EventType = "protocol.activated"
	ProtocolDrill       EventType = "protocol.drill"
	ProtocolDeactivated EventType = "protocol.deactivated"
	ProtocolStepDone    EventType = "protocol.step_completed"
	ModuleRegistered    EventType = "module.registered"
	ModuleDisconnected  EventType = "module.disconnected"
)

// Event is one lifecycle change
type Event struct {
	Type      EventType `json:"type"`
	Subject   string    `json:"subject"`
	Summary   string    `json:"summary"`
	Detail    any       `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// JSON returns the event as a JSON byte slice.
func (e Event) JSON() []byte {
	data, _ := json.Marshal(e)
	return data
}

// Bus is a simple pub/sub event bus.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	bufferSize  int
}

// NewBus creates an event bus.
func NewBus(bufferSize int) *Bus {
	if bufferSize < 1 {
		bufferSize = 64
	}
	return &Bus{
		subscribers: make(map[string]chan Event),
		bufferSize:  bufferSize,
	}
}

// Publish sends an event to all subscribers.
// Non-blocking: a subscriber with a full buffer misses the event.
func (b *Bus) Publish(evt Event) {
	if b == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribe returns a channel of events. Call Unsubscribe with the same id when done.
func (b *Bus) Subscribe(id string) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.subscribers[id]; ok {
		close(old)
	}
	ch := make(chan Event, b.bufferSize)
	b.subscribers[id] = ch
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

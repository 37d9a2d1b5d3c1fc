// Package events provides a publish/subscribe event bus connecting the
// agent session subsystem to outside observers (the UI layer). Events
// flow from components (session manager, message streamer, tool-call
// bridge) to subscribers. The bus is nil-safe: calling Publish on a
// nil *Bus is a no-op, so components do not need guard checks.
package events

import (
	"sync"
	"time"
)

// Source constants identify which component published an event.
const (
	// SourceSession identifies events from the session state machine.
	SourceSession = "session"
	// SourceStream identifies events from the message streamer.
	SourceStream = "stream"
	// SourceBridge identifies events from the tool-call bridge.
	SourceBridge = "bridge"
)

// Kind constants describe the type of event within a source.
const (
	// KindStateChanged signals a session state transition.
	// Data: state, previous.
	KindStateChanged = "state_changed"

	// KindChunk signals a streamed content fragment for a turn.
	// Data: request_id, thread_id, content.
	KindChunk = "chunk"
	// KindReasoning signals a streamed reasoning fragment.
	// Data: request_id, thread_id, content.
	KindReasoning = "reasoning"
	// KindToolStart signals the backend agent began a tool call.
	// Data: request_id, thread_id, content.
	KindToolStart = "tool_start"
	// KindToolEnd signals the backend agent finished a tool call.
	// Data: request_id, thread_id, content.
	KindToolEnd = "tool_end"
	// KindMessage signals a thread message carried by an agent update.
	// Data: message_id, thread_id, sender, content, type.
	KindMessage = "message"

	// KindToolCall signals an inbound tool invocation from the backend.
	// Data: request_id, tool.
	KindToolCall = "tool_call"
	// KindToolDone signals completion of an inbound tool invocation.
	// Data: request_id, tool, ok, duration_ms.
	KindToolDone = "tool_done"
)

// Event represents a single operational event published by a component.
type Event struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"ts"`
	// Source identifies the component that published the event.
	Source string `json:"source"`
	// Kind describes the type of event within the source.
	Kind string `json:"kind"`
	// Data holds event-specific key/value pairs.
	Data map[string]any `json:"data,omitempty"`
}

// Bus is a non-blocking broadcast event bus. Subscribers receive events
// on buffered channels; slow subscribers miss events rather than
// blocking publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
	// recvToSend maps the receive-only channel returned by Subscribe
	// back to the bidirectional channel stored in subs. This allows
	// Unsubscribe to accept <-chan Event (the caller's view) without
	// an illegal type conversion.
	recvToSend map[<-chan Event]chan Event
}

// New creates a new event bus ready for use.
func New() *Bus {
	return &Bus{
		subs:       make(map[chan Event]struct{}),
		recvToSend: make(map[<-chan Event]chan Event),
	}
}

// Publish sends an event to all subscribers. Non-blocking: if a
// subscriber's channel is full, the event is dropped for that
// subscriber. Safe to call on a nil receiver (no-op).
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Subscriber is full; drop the event rather than block.
		}
	}
}

// Subscribe returns a channel that receives published events. The
// caller must eventually call Unsubscribe to avoid resource leaks.
// bufSize controls the channel buffer; 64 is a reasonable default for
// UI consumers.
func (b *Bus) Subscribe(bufSize int) <-chan Event {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	b.recvToSend[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes the channel. Safe to
// call with a channel that is already unsubscribed (no-op).
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sendCh, ok := b.recvToSend[ch]
	if !ok {
		return
	}
	delete(b.subs, sendCh)
	delete(b.recvToSend, ch)
	close(sendCh)
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

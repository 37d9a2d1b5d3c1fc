// Package stream submits user turns to the agent backend and resolves
// them from the correlated update stream.
//
// One call to [Streamer.Submit] is one logical turn: the user's
// message goes out once, intermediate updates (chunks, reasoning,
// tool activity) are republished to observers, and the call returns
// when the backend signals completion or failure, or when the
// fixed deadline passes. The deadline is measured from submission,
// not from last activity; a turn that keeps streaming but never
// completes still times out.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alphahumanxyz/courier/internal/channel"
	"github.com/alphahumanxyz/courier/internal/events"
)

// Agent update event types.
const (
	UpdateChunk     = "chunk"
	UpdateReasoning = "reasoning"
	UpdateToolStart = "toolStart"
	UpdateToolEnd   = "toolEnd"
	UpdateComplete  = "complete"
	UpdateError     = "error"
)

// DefaultTimeout bounds a turn from submission to terminal event.
const DefaultTimeout = 60 * time.Second

// ErrTimeout is returned by Submit when no terminal event arrives
// within the deadline.
var ErrTimeout = errors.New("agent turn timed out")

// ThreadMessage is one message in a conversation thread. The session
// subsystem only ever appends these; it never mutates or deletes them.
type ThreadMessage struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"threadId"`
	Sender    string    `json:"sender"` // user or agent
	Content   string    `json:"content"`
	Type      string    `json:"type,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// AgentUpdateEvent is the payload of an agentUpdates frame.
type AgentUpdateEvent struct {
	EventType string        `json:"eventType"`
	RequestID string        `json:"requestId"`
	Message   ThreadMessage `json:"message"`
}

// TurnError is the rejection produced when the backend reports a turn
// failed; its text is the error message the backend streamed.
type TurnError struct {
	Message string
}

// Error implements the error interface.
func (e *TurnError) Error() string {
	return fmt.Sprintf("agent turn failed: %s", e.Message)
}

// Recorder persists message-bearing agent updates. Implemented by the
// thread store; nil disables persistence.
type Recorder interface {
	Append(ctx context.Context, msg ThreadMessage) error
}

// streamRequest is the payload of a streamMessageForUser frame.
type streamRequest struct {
	RequestID string        `json:"requestId"`
	Data      streamPayload `json:"data"`
}

type streamPayload struct {
	ThreadID string `json:"threadId,omitempty"`
	Content  string `json:"content"`
}

// turnResult settles one submitted turn. messageID is the id of the
// completing agent message.
type turnResult struct {
	messageID string
	err       error
}

// Streamer submits turns and demultiplexes the agent update stream.
type Streamer struct {
	socket   *channel.Socket
	bus      *events.Bus
	recorder Recorder
	logger   *slog.Logger
	timeout  time.Duration

	mu    sync.Mutex
	turns map[string]chan turnResult

	sub int64
}

// Config holds the dependencies for a Streamer.
type Config struct {
	Socket *channel.Socket
	// Bus receives intermediate update events; may be nil.
	Bus *events.Bus
	// Recorder persists message-bearing updates; may be nil.
	Recorder Recorder
	// Timeout bounds a turn; zero means DefaultTimeout.
	Timeout time.Duration
	Logger  *slog.Logger
}

// New creates a streamer and attaches its agentUpdates listener. The
// listener survives reconnects because the socket keeps registrations
// across rebinds.
func New(cfg Config) *Streamer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	s := &Streamer{
		socket:   cfg.Socket,
		bus:      cfg.Bus,
		recorder: cfg.Recorder,
		logger:   logger,
		timeout:  timeout,
		turns:    make(map[string]chan turnResult),
	}
	s.sub = s.socket.On(channel.EventAgentUpdates, s.handleUpdate)
	return s
}

// Close detaches the streamer from the socket.
func (s *Streamer) Close() {
	s.socket.Off(channel.EventAgentUpdates, s.sub)
}

// Submit sends one user turn and blocks until the backend completes
// it, fails it, or the deadline passes. On success it returns the id
// of the completing agent message. threadID may be empty to start a
// new thread.
func (s *Streamer) Submit(ctx context.Context, threadID, content string) (string, error) {
	id := uuid.NewString()
	ch := make(chan turnResult, 1)

	s.mu.Lock()
	s.turns[id] = ch
	s.mu.Unlock()

	s.socket.Emit(channel.EventStreamMessage, streamRequest{
		RequestID: id,
		Data:      streamPayload{ThreadID: threadID, Content: content},
	})

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.messageID, res.err
	case <-timer.C:
		s.abandon(id)
		return "", fmt.Errorf("%w after %v", ErrTimeout, s.timeout)
	case <-ctx.Done():
		s.abandon(id)
		return "", ctx.Err()
	}
}

// abandon stops listening for a turn's terminal event.
func (s *Streamer) abandon(id string) {
	s.mu.Lock()
	delete(s.turns, id)
	s.mu.Unlock()
}

// settle delivers a terminal result for a turn, exactly once. Later
// events for the same correlation id find no waiter and are dropped.
func (s *Streamer) settle(id string, res turnResult) {
	s.mu.Lock()
	ch, ok := s.turns[id]
	if ok {
		delete(s.turns, id)
	}
	s.mu.Unlock()

	if ok {
		ch <- res
	}
}

// handleUpdate processes one agentUpdates frame: republish progress
// to observers, persist the message on terminal events, and settle
// the waiting turn. Chunks and reasoning fragments share the final
// message's id, so only the terminal event's message is recorded,
// error messages included, since a failed turn still lands in the
// thread. Recording and observer publication do not gate each other.
func (s *Streamer) handleUpdate(data json.RawMessage) {
	var ev AgentUpdateEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.logger.Warn("malformed agent update", "error", err)
		return
	}

	s.publish(ev)

	switch ev.EventType {
	case UpdateComplete, UpdateError:
		if s.recorder != nil && (ev.Message.ID != "" || ev.Message.Content != "") {
			if err := s.recorder.Append(context.Background(), ev.Message); err != nil {
				s.logger.Error("append thread message", "thread", ev.Message.ThreadID, "error", err)
			}
		}
	}

	switch ev.EventType {
	case UpdateComplete:
		s.settle(ev.RequestID, turnResult{messageID: ev.Message.ID})
	case UpdateError:
		s.settle(ev.RequestID, turnResult{err: &TurnError{Message: ev.Message.Content}})
	}
}

// publish forwards an update to the events bus for UI observers.
func (s *Streamer) publish(ev AgentUpdateEvent) {
	kind := ""
	switch ev.EventType {
	case UpdateChunk:
		kind = events.KindChunk
	case UpdateReasoning:
		kind = events.KindReasoning
	case UpdateToolStart:
		kind = events.KindToolStart
	case UpdateToolEnd:
		kind = events.KindToolEnd
	case UpdateComplete, UpdateError:
		kind = events.KindMessage
	default:
		s.logger.Debug("unknown agent update type", "type", ev.EventType)
		return
	}

	s.bus.Publish(events.Event{
		Timestamp: time.Now(),
		Source:    events.SourceStream,
		Kind:      kind,
		Data: map[string]any{
			"request_id": ev.RequestID,
			"thread_id":  ev.Message.ThreadID,
			"message_id": ev.Message.ID,
			"content":    ev.Message.Content,
			"event_type": ev.EventType,
		},
	})
}

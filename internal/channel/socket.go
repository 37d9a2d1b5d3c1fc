// Package channel implements the envelope layer over the persistent
// duplex connection to the agent backend. It carries named JSON events
// in both directions and layers a correlated request/response
// primitive on top.
//
// The socket does not dial or reconnect on its own. The session
// manager owns the underlying connection and hands each new one to
// [Socket.Rebind]; registered listeners and in-flight requests survive
// the swap.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alphahumanxyz/courier/internal/config"
)

// Wire event names shared with the agent backend.
const (
	// EventError carries a structured backend error envelope.
	EventError = "error"
	// EventResponse carries the reply to a correlated request.
	EventResponse = "response"
	// EventAgentUpdates carries streamed agent turn progress.
	EventAgentUpdates = "agentUpdates"
	// EventStreamMessage submits a user turn to the agent.
	EventStreamMessage = "streamMessageForUser"
	// EventListTools asks the client to enumerate its capabilities.
	EventListTools = "mcp:listTools"
	// EventListToolsResponse returns the capability list.
	EventListToolsResponse = "mcp:listToolsResponse"
	// EventToolCall invokes a client-side capability.
	EventToolCall = "mcp:toolCall"
	// EventToolResult returns a capability invocation result.
	EventToolResult = "mcp:toolResult"
)

// DefaultRequestTimeout bounds a correlated request when the caller
// has no more specific budget.
const DefaultRequestTimeout = 30 * time.Second

// ErrTimeout is returned by Request when no response arrives in time.
var ErrTimeout = errors.New("request timed out")

// ErrDuplicateID is returned by Request when the correlation id is
// already pending. Correlation ids must not be reused while in flight.
var ErrDuplicateID = errors.New("correlation id already pending")

// ErrClosed rejects pending requests failed by FailPending (explicit
// logout or process teardown).
var ErrClosed = errors.New("channel closed")

// Frame is the wire format: one named event with an opaque payload.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ErrorEnvelope is the payload of an EventError frame. Status mirrors
// HTTP semantics; 401 and 403 mean the backend rejected the session's
// credential.
type ErrorEnvelope struct {
	RequestID string `json:"requestId,omitempty"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
}

// RequestError is the rejection produced when a response or error
// envelope reports failure for a correlated request.
type RequestError struct {
	Message string
	Status  int
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("backend error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend error: %s", e.Message)
}

// responseEnvelope is the payload of an EventResponse frame.
type responseEnvelope struct {
	RequestID string          `json:"requestId"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     *ErrorEnvelope  `json:"error,omitempty"`
}

// Conn is the subset of [*websocket.Conn] the socket uses. Tests
// substitute an in-memory implementation.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

// Handler receives the payload of a named event. Handlers run on the
// socket's read goroutine; long work must be moved off it.
type Handler func(data json.RawMessage)

// subscription pairs a handler with the identity token On returned,
// so Off can remove exactly that registration.
type subscription struct {
	id      int64
	handler Handler
}

// result settles one pending request. Exactly one of data/err is
// meaningful.
type result struct {
	data json.RawMessage
	err  error
}

// Socket multiplexes named events and correlated requests over one
// connection. All methods are safe for concurrent use.
type Socket struct {
	logger *slog.Logger

	mu       sync.Mutex
	conn     Conn
	gen      int // bumped on every rebind; stale read loops exit
	handlers map[string][]subscription
	nextSub  int64
	pending  map[string]chan result

	// onDisconnect is invoked (off the lock) when the current
	// connection's read loop fails. Set by the session manager.
	onDisconnect func(err error)
}

// New creates a socket with no connection bound yet.
func New(logger *slog.Logger) *Socket {
	if logger == nil {
		logger = slog.Default()
	}
	return &Socket{
		logger:   logger,
		handlers: make(map[string][]subscription),
		pending:  make(map[string]chan result),
	}
}

// OnDisconnect registers the callback invoked when the bound
// connection's read loop ends with an error. The callback receives
// the read error; it runs on the read goroutine.
func (s *Socket) OnDisconnect(fn func(err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDisconnect = fn
}

// Connected reports whether a connection is currently bound.
func (s *Socket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Rebind swaps the underlying connection and starts a read loop on it.
// The previous connection, if any, is closed; its read loop exits
// without invoking the disconnect callback. Registered listeners carry
// over untouched; in-flight requests keep waiting for their original
// deadline. Passing nil detaches and closes the current connection.
func (s *Socket) Rebind(conn Conn) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	prev := s.conn
	s.conn = conn
	s.mu.Unlock()

	if prev != nil && prev != conn {
		prev.Close()
	}
	if conn != nil {
		go s.readLoop(conn, gen)
	}
}

// Close detaches and closes the current connection, if any. Pending
// requests are not failed; see FailPending.
func (s *Socket) Close() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.gen++
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// On registers a handler for a named event and returns an identity
// token for Off. Registration is additive: all handlers for an event
// run, in registration order.
func (s *Socket) On(event string, h Handler) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	s.handlers[event] = append(s.handlers[event], subscription{id: s.nextSub, handler: h})
	return s.nextSub
}

// Off removes the registration identified by the token On returned.
// Unknown tokens are ignored.
func (s *Socket) Off(event string, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.handlers[event]
	for i, sub := range subs {
		if sub.id == id {
			s.handlers[event] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Emit sends a named event. When no connection is bound, or the write
// fails, Emit logs and drops the frame; it never returns an error.
// Callers that need delivery confirmation use Request.
func (s *Socket) Emit(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("emit: marshal payload", "event", event, "error", err)
		return
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		s.logger.Warn("emit: channel not connected, dropping frame", "event", event)
		return
	}

	s.logger.Log(context.Background(), config.LevelTrace, "emit frame", "event", event, "data", string(data))

	if err := conn.WriteJSON(Frame{Event: event, Data: data}); err != nil {
		s.logger.Warn("emit: write failed", "event", event, "error", err)
	}
}

// Request emits an event carrying the caller-supplied correlation id
// and waits for the matching response. It resolves with the response
// payload, or fails with the response's error, with ErrTimeout when
// the timeout elapses first, or with ErrClosed if FailPending runs.
// The pending entry is removed in every outcome; a late response for
// a settled id is ignored.
//
// A zero timeout expires immediately; callers normally pass
// DefaultRequestTimeout or a configured budget. Cancelling ctx
// abandons the request early.
func (s *Socket) Request(ctx context.Context, id, event string, payload any, timeout time.Duration) (json.RawMessage, error) {
	ch := make(chan result, 1)

	s.mu.Lock()
	if _, exists := s.pending[id]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	s.pending[id] = ch
	s.mu.Unlock()

	s.Emit(event, payload)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.data, res.err
	case <-timer.C:
		// Remove our own entry; a response racing in after this point
		// finds no pending id and is dropped.
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return nil, fmt.Errorf("%w after %v: %s", ErrTimeout, timeout, id)
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return nil, ctx.Err()
	}
}

// PendingCount returns the number of in-flight correlated requests.
func (s *Socket) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// FailPending rejects every in-flight request with ErrClosed wrapped
// around the given reason. Used on explicit logout and teardown; a
// transient reconnect deliberately does not call this.
func (s *Socket) FailPending(reason error) {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[string]chan result)
	s.mu.Unlock()

	err := ErrClosed
	if reason != nil {
		err = fmt.Errorf("%w: %v", ErrClosed, reason)
	}
	for _, ch := range pending {
		ch <- result{err: err}
	}
}

// settle resolves the pending request for id, if still pending.
// Idempotent: the first settle wins, later ones find nothing.
func (s *Socket) settle(id string, res result) {
	s.mu.Lock()
	ch, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.mu.Unlock()

	if ok {
		ch <- res
	}
}

// readLoop reads frames from one connection until it fails or the
// connection is replaced. A superseded loop exits without invoking the
// disconnect callback, and a frame it read while being superseded is
// discarded rather than dispatched into the live tables.
func (s *Socket) readLoop(conn Conn, gen int) {
	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			s.mu.Lock()
			current := s.gen == gen
			if current {
				s.conn = nil
			}
			fn := s.onDisconnect
			s.mu.Unlock()

			if current && fn != nil {
				fn(err)
			}
			return
		}

		s.mu.Lock()
		current := s.gen == gen
		s.mu.Unlock()
		if !current {
			return
		}
		s.dispatch(frame)
	}
}

// dispatch settles correlated requests and fans the frame out to
// registered handlers.
func (s *Socket) dispatch(frame Frame) {
	s.logger.Log(context.Background(), config.LevelTrace, "recv frame", "event", frame.Event, "data", string(frame.Data))

	switch frame.Event {
	case EventResponse:
		var env responseEnvelope
		if err := json.Unmarshal(frame.Data, &env); err != nil {
			s.logger.Warn("malformed response envelope", "error", err)
			break
		}
		if env.Error != nil {
			s.settle(env.RequestID, result{err: &RequestError{Message: env.Error.Message, Status: env.Error.Status}})
		} else {
			s.settle(env.RequestID, result{data: env.Data})
		}

	case EventError:
		var env ErrorEnvelope
		if err := json.Unmarshal(frame.Data, &env); err != nil {
			s.logger.Warn("malformed error envelope", "error", err)
			break
		}
		if env.RequestID != "" {
			s.settle(env.RequestID, result{err: &RequestError{Message: env.Message, Status: env.Status}})
		}
	}

	// Handlers run for every event, including error frames; the
	// session manager listens on EventError for credential rejections.
	s.mu.Lock()
	subs := make([]subscription, len(s.handlers[frame.Event]))
	copy(subs, s.handlers[frame.Event])
	s.mu.Unlock()

	for _, sub := range subs {
		sub.handler(frame.Data)
	}
}

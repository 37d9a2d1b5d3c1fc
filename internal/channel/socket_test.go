package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeConn is an in-memory Conn. The test pushes frames the socket
// will read via push(), and observes frames the socket wrote via
// writes.
type fakeConn struct {
	inbound chan Frame
	writes  chan Frame

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan Frame, 16),
		writes:  make(chan Frame, 16),
		done:    make(chan struct{}),
	}
}

func (c *fakeConn) push(event string, payload any) {
	data, _ := json.Marshal(payload)
	c.inbound <- Frame{Event: event, Data: data}
}

func (c *fakeConn) ReadJSON(v any) error {
	select {
	case f := <-c.inbound:
		*(v.(*Frame)) = f
		return nil
	case <-c.done:
		return errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("write on closed connection")
	}
	c.writes <- v.(Frame)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

// gatedConn holds its first read until release is closed, then serves
// a buffered frame even if the connection was closed in the meantime.
// Models a frame already in flight when the connection is replaced.
type gatedConn struct {
	*fakeConn
	release chan struct{}
	served  bool
}

func (c *gatedConn) ReadJSON(v any) error {
	if !c.served {
		c.served = true
		<-c.release
		select {
		case f := <-c.inbound:
			*(v.(*Frame)) = f
			return nil
		default:
		}
	}
	return c.fakeConn.ReadJSON(v)
}

// nextWrite returns the next frame the socket wrote, or fails the test.
func nextWrite(t *testing.T, c *fakeConn) Frame {
	t.Helper()
	select {
	case f := <-c.writes:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for written frame")
		return Frame{}
	}
}

func newTestSocket(t *testing.T) (*Socket, *fakeConn) {
	t.Helper()
	s := New(nil)
	conn := newFakeConn()
	s.Rebind(conn)
	t.Cleanup(func() { s.Close() })
	return s, conn
}

func TestEmit_NotConnected(t *testing.T) {
	s := New(nil)
	// Must log and drop, not panic or error.
	s.Emit(EventStreamMessage, map[string]any{"requestId": "r1"})
}

func TestRequest_Resolves(t *testing.T) {
	s, conn := newTestSocket(t)

	done := make(chan struct{})
	var data json.RawMessage
	var err error
	go func() {
		defer close(done)
		data, err = s.Request(context.Background(), "r1", EventStreamMessage, map[string]any{"requestId": "r1"}, 2*time.Second)
	}()

	// The request frame goes out first.
	f := nextWrite(t, conn)
	if f.Event != EventStreamMessage {
		t.Fatalf("emitted event = %q, want %q", f.Event, EventStreamMessage)
	}

	conn.push(EventResponse, map[string]any{"requestId": "r1", "data": map[string]any{"ok": true}})

	<-done
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	var payload struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || !payload.OK {
		t.Errorf("response data = %s", data)
	}
	if got := s.PendingCount(); got != 0 {
		t.Errorf("PendingCount = %d, want 0", got)
	}
}

func TestRequest_ZeroTimeout(t *testing.T) {
	s, conn := newTestSocket(t)

	_, err := s.Request(context.Background(), "r1", EventStreamMessage, map[string]any{"requestId": "r1"}, 0)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Request error = %v, want ErrTimeout", err)
	}
	if got := s.PendingCount(); got != 0 {
		t.Errorf("PendingCount after timeout = %d, want 0", got)
	}

	// A late response for the expired id is ignored, not double-settled.
	conn.push(EventResponse, map[string]any{"requestId": "r1", "data": map[string]any{}})
	time.Sleep(50 * time.Millisecond)
	if got := s.PendingCount(); got != 0 {
		t.Errorf("PendingCount after late response = %d, want 0", got)
	}
}

func TestRequest_ErrorEnvelopeRejects(t *testing.T) {
	s, conn := newTestSocket(t)

	done := make(chan error, 1)
	go func() {
		_, err := s.Request(context.Background(), "r1", EventStreamMessage, map[string]any{"requestId": "r1"}, 2*time.Second)
		done <- err
	}()
	nextWrite(t, conn)

	conn.push(EventError, ErrorEnvelope{RequestID: "r1", Message: "nope", Status: 500})

	err := <-done
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Request error = %v, want *RequestError", err)
	}
	if reqErr.Status != 500 || reqErr.Message != "nope" {
		t.Errorf("RequestError = %+v", reqErr)
	}
}

func TestRequest_ConcurrentIndependence(t *testing.T) {
	s, conn := newTestSocket(t)

	type outcome struct {
		id   string
		data json.RawMessage
		err  error
	}
	results := make(chan outcome, 2)
	for _, id := range []string{"r1", "r2"} {
		go func(id string) {
			data, err := s.Request(context.Background(), id, EventStreamMessage, map[string]any{"requestId": id}, 2*time.Second)
			results <- outcome{id: id, data: data, err: err}
		}(id)
	}
	nextWrite(t, conn)
	nextWrite(t, conn)

	if got := s.PendingCount(); got != 2 {
		t.Fatalf("PendingCount = %d, want 2", got)
	}

	// Resolve r2 only; r1 must stay pending.
	conn.push(EventResponse, map[string]any{"requestId": "r2", "data": map[string]any{"n": 2}})

	first := <-results
	if first.id != "r2" || first.err != nil {
		t.Fatalf("first settled = %+v, want r2 success", first)
	}
	if got := s.PendingCount(); got != 1 {
		t.Errorf("PendingCount after r2 = %d, want 1", got)
	}

	conn.push(EventResponse, map[string]any{"requestId": "r1", "data": map[string]any{"n": 1}})
	second := <-results
	if second.id != "r1" || second.err != nil {
		t.Fatalf("second settled = %+v, want r1 success", second)
	}
}

func TestRequest_DuplicateID(t *testing.T) {
	s, conn := newTestSocket(t)

	go s.Request(context.Background(), "r1", EventStreamMessage, nil, time.Second)
	nextWrite(t, conn)

	_, err := s.Request(context.Background(), "r1", EventStreamMessage, nil, time.Second)
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("Request with pending id error = %v, want ErrDuplicateID", err)
	}
}

func TestOnOff(t *testing.T) {
	s, conn := newTestSocket(t)

	var mu sync.Mutex
	var got []string
	id := s.On(EventAgentUpdates, func(data json.RawMessage) {
		mu.Lock()
		got = append(got, string(data))
		mu.Unlock()
	})

	conn.push(EventAgentUpdates, map[string]any{"eventType": "chunk"})
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})

	s.Off(EventAgentUpdates, id)
	conn.push(EventAgentUpdates, map[string]any{"eventType": "complete"})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Errorf("handler ran %d times after Off, want 1", len(got))
	}
}

func TestRebind_KeepsListenersAndPending(t *testing.T) {
	s, conn := newTestSocket(t)

	var mu sync.Mutex
	var events int
	s.On(EventAgentUpdates, func(json.RawMessage) {
		mu.Lock()
		events++
		mu.Unlock()
	})

	done := make(chan error, 1)
	go func() {
		_, err := s.Request(context.Background(), "r1", EventStreamMessage, nil, 2*time.Second)
		done <- err
	}()
	nextWrite(t, conn)

	// Simulate reconnect: new conn replaces (and closes) the old one.
	conn2 := newFakeConn()
	s.Rebind(conn2)

	// Listeners still fire on the new connection without re-registering.
	conn2.push(EventAgentUpdates, map[string]any{"eventType": "chunk"})
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return events == 1
	})

	// The in-flight request was not failed by the rebind and resolves
	// from the new connection.
	conn2.push(EventResponse, map[string]any{"requestId": "r1"})
	if err := <-done; err != nil {
		t.Errorf("request after rebind error: %v", err)
	}
}

func TestRebind_ClosesPreviousConn(t *testing.T) {
	s, conn := newTestSocket(t)

	s.Rebind(newFakeConn())

	// One bound connection at a time: the replaced one must be closed,
	// not left with a running read loop.
	select {
	case <-conn.done:
	case <-time.After(time.Second):
		t.Fatal("previous connection left open after rebind")
	}
}

func TestRebind_StaleFrameNotDispatched(t *testing.T) {
	s := New(nil)
	t.Cleanup(s.Close)

	old := &gatedConn{fakeConn: newFakeConn(), release: make(chan struct{})}
	old.push(EventAgentUpdates, map[string]any{"eventType": "chunk"})
	s.Rebind(old)

	var mu sync.Mutex
	var events int
	s.On(EventAgentUpdates, func(json.RawMessage) {
		mu.Lock()
		events++
		mu.Unlock()
	})

	// Replace the connection while the old read loop still holds an
	// unread frame, then let that loop deliver it.
	conn2 := newFakeConn()
	s.Rebind(conn2)
	close(old.release)

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	stale := events
	mu.Unlock()
	if stale != 0 {
		t.Fatalf("superseded connection dispatched %d frames", stale)
	}

	// The live connection still dispatches.
	conn2.push(EventAgentUpdates, map[string]any{"eventType": "chunk"})
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return events == 1
	})
}

func TestFailPending(t *testing.T) {
	s, conn := newTestSocket(t)

	done := make(chan error, 1)
	go func() {
		_, err := s.Request(context.Background(), "r1", EventStreamMessage, nil, 10*time.Second)
		done <- err
	}()
	nextWrite(t, conn)

	s.FailPending(fmt.Errorf("logout"))

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Request error = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("request not rejected by FailPending")
	}
}

func TestDisconnectCallback(t *testing.T) {
	s, conn := newTestSocket(t)

	gotErr := make(chan error, 1)
	s.OnDisconnect(func(err error) { gotErr <- err })

	conn.Close()

	select {
	case err := <-gotErr:
		if err == nil {
			t.Error("disconnect callback got nil error")
		}
	case <-time.After(time.Second):
		t.Fatal("disconnect callback never fired")
	}
	if s.Connected() {
		t.Error("Connected() = true after read loop exit")
	}
}

func TestDisconnectCallback_NotFiredForStaleConn(t *testing.T) {
	s, conn := newTestSocket(t)

	fired := make(chan struct{}, 1)
	s.OnDisconnect(func(error) { fired <- struct{}{} })

	// Rebind closes the old conn; that must not look like a
	// disconnect of the current session.
	conn2 := newFakeConn()
	s.Rebind(conn2)
	<-conn.done

	select {
	case <-fired:
		t.Fatal("disconnect callback fired for a replaced connection")
	case <-time.After(100 * time.Millisecond):
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

// Package session owns the connection/authentication lifecycle of the
// realtime channel to the agent backend.
//
// The manager is a four-state machine: disconnected, token_missing,
// token_invalid, connected. Failures inside its transitions are never
// returned as errors to callers; they are encoded as transitions, and
// each effective transition is published once on the events bus. The
// manager exclusively owns the access token and the underlying
// websocket; every other component reaches the wire only through the
// shared socket it rebinds.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alphahumanxyz/courier/internal/authtoken"
	"github.com/alphahumanxyz/courier/internal/channel"
	"github.com/alphahumanxyz/courier/internal/config"
	"github.com/alphahumanxyz/courier/internal/events"
)

// State is the connection/authentication state of the session.
type State string

// Session states.
const (
	// StateDisconnected means no channel is up; reconnection may be
	// in progress.
	StateDisconnected State = "disconnected"
	// StateTokenMissing means no access token is stored; the user
	// must log in.
	StateTokenMissing State = "token_missing"
	// StateTokenInvalid means the stored token was malformed, expired,
	// or rejected by the backend; the user must re-authenticate.
	StateTokenInvalid State = "token_invalid"
	// StateConnected means the channel is up and authenticated.
	StateConnected State = "connected"
)

// ErrLoggedOut is the rejection handed to pending channel requests
// when the user logs out.
var ErrLoggedOut = errors.New("session logged out")

// tokenFileName is the token's file name under the data directory.
const tokenFileName = "session.token"

// Dialer establishes one websocket connection. Injectable for tests;
// the default dials cfg.SocketURL with gorilla/websocket.
type Dialer func(ctx context.Context, socketURL, token string) (channel.Conn, error)

// Config holds the dependencies for a Manager.
type Config struct {
	Socket  *channel.Socket
	Bus     *events.Bus
	Logger  *slog.Logger
	Session config.SessionConfig
	// SocketURL is the ws/wss endpoint of the backend.
	SocketURL string
	// DataDir is where the token file lives.
	DataDir string
	// Dialer overrides the websocket dialer; nil means the default.
	Dialer Dialer
}

// Manager drives the session state machine.
type Manager struct {
	socket    *channel.Socket
	bus       *events.Bus
	logger    *slog.Logger
	cfg       config.SessionConfig
	socketURL string
	tokenPath string
	dial      Dialer

	mu       sync.Mutex
	state    State
	token    *authtoken.Token
	attempts int
	// gen invalidates reconnect loops started before the most recent
	// Login/Logout.
	gen uint64

	errSub int64
}

// New creates a manager in the disconnected state and attaches its
// channel listeners.
func New(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		socket:    cfg.Socket,
		bus:       cfg.Bus,
		logger:    logger,
		cfg:       cfg.Session,
		socketURL: cfg.SocketURL,
		tokenPath: filepath.Join(cfg.DataDir, tokenFileName),
		dial:      cfg.Dialer,
		state:     StateDisconnected,
	}
	if m.dial == nil {
		m.dial = websocketDial
	}
	m.socket.OnDisconnect(m.handleDisconnect)
	m.errSub = m.socket.On(channel.EventError, m.handleErrorEnvelope)
	return m
}

// websocketDial is the production dialer.
func websocketDial(ctx context.Context, socketURL, token string) (channel.Conn, error) {
	u, err := url.Parse(socketURL)
	if err != nil {
		return nil, fmt.Errorf("parse socket url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// State returns the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Token returns the current token, or nil when none is stored.
func (m *Manager) Token() *authtoken.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Login validates the stored token and, when it passes local checks,
// dials the backend. Token problems are not errors to the caller;
// they land in token_missing or token_invalid. The returned state is
// the state the machine settled in.
func (m *Manager) Login(ctx context.Context) State {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.attempts = 0
	token := m.token
	m.mu.Unlock()

	if token == nil {
		raw, err := os.ReadFile(m.tokenPath)
		if err != nil {
			if !os.IsNotExist(err) {
				m.logger.Warn("read token file", "path", m.tokenPath, "error", err)
			}
			m.transition(StateTokenMissing)
			return m.State()
		}
		parsed, err := authtoken.Parse(string(raw))
		if err != nil {
			m.logger.Warn("stored token malformed", "error", err)
			m.transition(StateTokenInvalid)
			return m.State()
		}
		token = parsed
		m.mu.Lock()
		m.token = token
		m.mu.Unlock()
	}

	if err := token.Valid(time.Now()); err != nil {
		m.logger.Warn("stored token rejected", "error", err)
		m.transition(StateTokenInvalid)
		return m.State()
	}

	m.connect(ctx, gen)
	return m.State()
}

// UpdateTokenAndLogin persists the token unconditionally, then runs
// the normal login flow. Persisting even a token that later fails
// validation keeps the stored credential in sync with what the user
// supplied.
func (m *Manager) UpdateTokenAndLogin(ctx context.Context, raw string) State {
	if err := m.persistToken(raw); err != nil {
		m.logger.Error("persist token", "error", err)
	}

	m.mu.Lock()
	m.token = nil
	m.mu.Unlock()
	return m.Login(ctx)
}

// Logout tears the session down: the channel closes, every pending
// channel request is failed, and the stored token is erased. The
// machine ends disconnected with no reconnection.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.gen++
	m.token = nil
	m.attempts = 0
	m.mu.Unlock()

	m.socket.Close()
	m.socket.FailPending(ErrLoggedOut)

	if err := os.Remove(m.tokenPath); err != nil && !os.IsNotExist(err) {
		m.logger.Warn("remove token file", "path", m.tokenPath, "error", err)
	}

	m.transition(StateDisconnected)
	m.logger.Info("logged out")
}

// Close detaches the manager. It does not erase the token.
func (m *Manager) Close() {
	m.mu.Lock()
	m.gen++
	m.mu.Unlock()
	m.socket.Off(channel.EventError, m.errSub)
	m.socket.Close()
}

// connect performs one dial attempt and schedules retries on failure.
func (m *Manager) connect(ctx context.Context, gen uint64) {
	m.mu.Lock()
	if m.gen != gen || m.token == nil {
		m.mu.Unlock()
		return
	}
	raw := m.token.Raw
	m.mu.Unlock()

	conn, err := m.dial(ctx, m.socketURL, raw)
	if err != nil {
		m.logger.Warn("dial failed", "url", m.socketURL, "error", err)
		m.retryLater(ctx, gen)
		return
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.attempts = 0
	m.mu.Unlock()

	m.socket.Rebind(conn)
	m.transition(StateConnected)
	m.logger.Info("session connected", "url", m.socketURL)
}

// retryLater counts a failed attempt and, while the bound allows,
// schedules the next dial after the fixed delay. Exhausting the bound
// is treated as a terminal auth problem.
func (m *Manager) retryLater(ctx context.Context, gen uint64) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.attempts++
	attempts := m.attempts
	max := m.cfg.MaxReconnectAttemptsOrDefault()
	m.mu.Unlock()

	if attempts >= max {
		m.logger.Error("reconnect attempts exhausted", "attempts", attempts)
		m.transition(StateTokenInvalid)
		return
	}

	m.transition(StateDisconnected)
	m.logger.Info("reconnecting", "attempt", attempts, "max", max,
		"delay", m.cfg.ReconnectDelayOrDefault())

	go func() {
		select {
		case <-time.After(m.cfg.ReconnectDelayOrDefault()):
		case <-ctx.Done():
			return
		}
		m.connect(ctx, gen)
	}()
}

// handleDisconnect runs when the live connection drops. A rejection
// close from the backend means the credential is no longer welcome;
// anything else is transient and goes through the retry path.
func (m *Manager) handleDisconnect(err error) {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()

	if isRejection(err) {
		m.logger.Warn("backend rejected connection", "error", err)
		m.transition(StateTokenInvalid)
		return
	}

	m.logger.Warn("connection lost", "error", err)
	m.retryLater(context.Background(), gen)
}

// handleErrorEnvelope watches backend error frames for auth failures.
// A 401/403 supersedes whatever else is in flight.
func (m *Manager) handleErrorEnvelope(data json.RawMessage) {
	var env channel.ErrorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return
	}
	if env.Status == 401 || env.Status == 403 {
		m.logger.Warn("backend reported auth failure", "status", env.Status)
		m.transition(StateTokenInvalid)
	}
}

// isRejection reports whether a close error indicates the backend
// refused the connection rather than the link dropping.
func isRejection(err error) bool {
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		return false
	}
	switch ce.Code {
	case websocket.ClosePolicyViolation, 4401, 4403:
		return true
	}
	return false
}

// transition moves to a new state and publishes the change. A
// self-transition publishes nothing.
func (m *Manager) transition(next State) {
	m.mu.Lock()
	prev := m.state
	if prev == next {
		m.mu.Unlock()
		return
	}
	m.state = next
	m.mu.Unlock()

	m.logger.Debug("session state", "from", prev, "to", next)
	m.bus.Publish(events.Event{
		Timestamp: time.Now(),
		Source:    events.SourceSession,
		Kind:      events.KindStateChanged,
		Data: map[string]any{
			"state":    string(next),
			"previous": string(prev),
		},
	})
}

// persistToken writes the raw token under the data directory,
// readable by the owner only.
func (m *Manager) persistToken(raw string) error {
	if err := os.MkdirAll(filepath.Dir(m.tokenPath), 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(m.tokenPath, []byte(raw), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

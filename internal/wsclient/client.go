// Package wsclient maintains the single logical WebSocket connection to the
// agent gateway. It owns the connection state machine and the reconnect
// schedule; it knows nothing about the chat protocol beyond "text frames".
package wsclient

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentwire/agentwire/internal/logger"
)

// State represents the current state of the gateway connection
type State int

const (
	// StateIdle indicates no connection and no pending work
	StateIdle State = iota
	// StateConnecting indicates a dial is in flight
	StateConnecting
	// StateOpen indicates the connection is established
	StateOpen
	// StateClosing indicates an intentional shutdown is in progress
	StateClosing
	// StateReconnectScheduled indicates a reconnect timer is armed
	StateReconnectScheduled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateReconnectScheduled:
		return "reconnect-scheduled"
	default:
		return "unknown"
	}
}

// ErrNotConnected is returned by Send when the connection is not open.
// The transport never buffers; callers must wait for OnOpen and retry.
var ErrNotConnected = fmt.Errorf("not connected to gateway")

const (
	// DefaultReconnectDelay is the initial backoff delay.
	DefaultReconnectDelay = 1 * time.Second
	// DefaultReconnectMaxDelay caps the backoff delay.
	DefaultReconnectMaxDelay = 30 * time.Second

	chatEndpoint     = "/ws/chat"
	writeWait        = 10 * time.Second
	handshakeTimeout = 10 * time.Second
)

// Config holds connection parameters
type Config struct {
	// URL is the gateway base URL (ws:// or wss://); the chat endpoint
	// path is appended automatically.
	URL string
	// Token is an optional bearer token sent as a query parameter.
	Token string
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// ReconnectMaxDelay caps the exponential backoff delay.
	ReconnectMaxDelay time.Duration
}

// Conn manages one logical connection to the gateway chat endpoint.
//
// Connect and Disconnect are asynchronous: outcomes are delivered through the
// OnOpen/OnClose/OnError handler registries. Handlers are invoked from the
// connection's internal goroutines and must not block for long.
type Conn struct {
	cfg Config

	mu          sync.Mutex
	state       State
	ws          *websocket.Conn
	intentional bool
	// gen increments whenever the live socket is replaced or dropped, so
	// callbacks from a stale read pump can be recognized and ignored.
	gen int

	reconnectDelay time.Duration
	reconnectTimer *time.Timer

	onOpen    []func()
	onClose   []func(error)
	onError   []func(error)
	onMessage []func([]byte)

	log *logger.Logger
}

// New creates a connection manager for the given gateway.
func New(cfg Config) *Conn {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.ReconnectMaxDelay < cfg.ReconnectDelay {
		cfg.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}

	return &Conn{
		cfg:            cfg,
		state:          StateIdle,
		reconnectDelay: cfg.ReconnectDelay,
		log:            logger.Global().WithPrefix("ws"),
	}
}

// OnOpen registers a handler invoked after every successful open.
func (c *Conn) OnOpen(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onOpen = append(c.onOpen, fn)
}

// OnClose registers a handler invoked after every unintentional close.
func (c *Conn) OnClose(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = append(c.onClose, fn)
}

// OnError registers a handler for transport errors. Transport errors are
// non-fatal; the subsequent close drives reconnection.
func (c *Conn) OnError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = append(c.onError, fn)
}

// OnMessage registers a handler for inbound text frames.
func (c *Conn) OnMessage(fn func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = append(c.onMessage, fn)
}

// endpointURL assembles the full chat endpoint URL.
func (c *Conn) endpointURL() string {
	endpoint := c.cfg.URL + chatEndpoint
	if c.cfg.Token != "" {
		endpoint += "?token=" + url.QueryEscape(c.cfg.Token)
	}
	return endpoint
}

// Connect opens the connection. Idempotent: a call while connecting or open
// is a no-op. Any pending reconnect timer is cancelled first so only one
// socket can ever be in flight.
func (c *Conn) Connect() {
	c.mu.Lock()

	c.intentional = false
	c.cancelReconnectLocked()

	if c.state == StateConnecting || c.state == StateOpen {
		c.mu.Unlock()
		return
	}

	c.state = StateConnecting
	gen := c.gen
	c.mu.Unlock()

	go c.dial(gen)
}

// dial performs one connection attempt. Runs off the caller's goroutine.
func (c *Conn) dial(gen int) {
	endpoint := c.endpointURL()
	c.log.Debug("dialing %s", c.cfg.URL+chatEndpoint)

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	ws, _, err := dialer.Dial(endpoint, nil)

	c.mu.Lock()
	if c.intentional || gen != c.gen {
		c.mu.Unlock()
		if ws != nil {
			ws.Close()
		}
		return
	}

	if err != nil {
		c.state = StateIdle
		errHandlers := append(([]func(error))(nil), c.onError...)
		closeHandlers := append(([]func(error))(nil), c.onClose...)
		c.scheduleReconnectLocked()
		c.mu.Unlock()

		c.log.Warn("dial failed: %v", err)
		for _, fn := range errHandlers {
			fn(err)
		}
		for _, fn := range closeHandlers {
			fn(err)
		}
		return
	}

	c.ws = ws
	c.state = StateOpen
	c.gen++
	readGen := c.gen
	c.reconnectDelay = c.cfg.ReconnectDelay
	openHandlers := append(([]func())(nil), c.onOpen...)
	c.mu.Unlock()

	c.log.Info("connected to gateway")
	go c.readPump(ws, readGen)

	for _, fn := range openHandlers {
		fn()
	}
}

// readPump delivers inbound frames until the socket dies.
func (c *Conn) readPump(ws *websocket.Conn, gen int) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.handleClosed(gen, err)
			return
		}

		c.mu.Lock()
		stale := gen != c.gen
		handlers := append(([]func([]byte))(nil), c.onMessage...)
		c.mu.Unlock()
		if stale {
			return
		}

		for _, fn := range handlers {
			fn(data)
		}
	}
}

// handleClosed reacts to the socket dying underneath us.
func (c *Conn) handleClosed(gen int, err error) {
	c.mu.Lock()
	if c.intentional || gen != c.gen {
		c.mu.Unlock()
		return
	}

	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
	c.gen++
	c.state = StateIdle
	closeHandlers := append(([]func(error))(nil), c.onClose...)
	c.scheduleReconnectLocked()
	c.mu.Unlock()

	c.log.Warn("connection lost: %v", err)
	for _, fn := range closeHandlers {
		fn(err)
	}
}

// scheduleReconnectLocked arms the reconnect timer and advances the backoff
// delay for the next failure. Only one timer is ever in flight. Caller holds mu.
func (c *Conn) scheduleReconnectLocked() {
	c.cancelReconnectLocked()

	delay := c.reconnectDelay
	c.reconnectDelay = nextDelay(c.reconnectDelay, c.cfg.ReconnectMaxDelay)

	c.state = StateReconnectScheduled
	c.log.Debug("reconnecting in %v", delay)
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		if c.intentional || c.state != StateReconnectScheduled {
			c.mu.Unlock()
			return
		}
		c.reconnectTimer = nil
		c.state = StateConnecting
		gen := c.gen
		c.mu.Unlock()

		c.dial(gen)
	})
}

// nextDelay doubles the backoff delay, capped at max.
func nextDelay(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

// cancelReconnectLocked stops any armed reconnect timer. Caller holds mu.
func (c *Conn) cancelReconnectLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

// Disconnect closes the connection and suppresses reconnection. After it
// returns, no further handlers fire until the next Connect.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.intentional = true
	c.cancelReconnectLocked()
	c.gen++

	if c.ws != nil {
		c.state = StateClosing
		deadline := time.Now().Add(writeWait)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.ws.Close()
		c.ws = nil
	}
	c.state = StateIdle

	c.log.Info("disconnected")
}

// Send serializes v as JSON and transmits it as one text frame. Fails with
// ErrNotConnected unless the connection is open.
func (c *Conn) Send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen || c.ws == nil {
		return ErrNotConnected
	}

	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Connected reports whether the underlying transport is open.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateOpen
}

// State returns the current connection state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Package chat implements the client-side chat protocol on top of the
// gateway connection: streaming accumulation, turn completion, and the
// handoff of finished messages to the session store.
package chat

import (
	"strings"
	"sync"

	"github.com/agentwire/agentwire/internal/logger"
	"github.com/agentwire/agentwire/internal/protocol"
	"github.com/agentwire/agentwire/internal/store"
	"github.com/agentwire/agentwire/internal/wsclient"
)

// EventKind discriminates chat events delivered to the UI.
type EventKind int

const (
	// EventChunk is one streaming fragment of the assistant's answer.
	EventChunk EventKind = iota
	// EventAssistantMessage is the completed assistant answer for the turn.
	EventAssistantMessage
	// EventToolCall announces a tool invocation by the agent.
	EventToolCall
	// EventToolResult carries a tool's output.
	EventToolResult
	// EventTurnError means the turn failed; any partial answer is discarded.
	EventTurnError
)

// Event is one protocol-level occurrence surfaced to the UI layer.
type Event struct {
	Kind       EventKind
	Content    string
	ToolName   string
	ToolArgs   []byte
	ToolOutput string
	Err        error
}

// Client drives one chat conversation over the gateway connection. Inbound
// frames arrive on the connection's read goroutine; the accumulation buffer
// is guarded accordingly.
type Client struct {
	conn  *wsclient.Conn
	store *store.Store

	mu  sync.Mutex
	buf strings.Builder

	onEvent []func(Event)

	log *logger.Logger
}

// New wires a chat client to an existing connection and session store. The
// connection is not opened here; callers control Connect/Disconnect.
func New(conn *wsclient.Conn, st *store.Store) *Client {
	c := &Client{
		conn:  conn,
		store: st,
		log:   logger.Global().WithPrefix("chat"),
	}
	conn.OnMessage(c.handleFrame)
	return c
}

// OnEvent registers a handler for chat events. Handlers run on the
// connection's read goroutine and must not block for long.
func (c *Client) OnEvent(fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvent = append(c.onEvent, fn)
}

// Conn exposes the underlying connection for state queries.
func (c *Client) Conn() *wsclient.Conn {
	return c.conn
}

// SendMessage submits a user message for the current session. The message is
// appended to history optimistically; the frame put on the wire carries the
// history as it stood before this message. Fails with wsclient.ErrNotConnected
// when the connection is down; nothing is buffered or persisted in that case.
func (c *Client) SendMessage(content string) error {
	if !c.conn.Connected() {
		return wsclient.ErrNotConnected
	}

	sessionID := c.store.CurrentID()
	frame := protocol.NewChatRequest(content, c.store.History(), sessionID)

	c.mu.Lock()
	c.buf.Reset()
	c.mu.Unlock()

	// Persist before the write so the reply can never outrun the append.
	c.store.Append(sessionID, protocol.Message{
		Role:    protocol.RoleUser,
		Content: content,
	})
	return c.conn.Send(frame)
}

// handleFrame is the single inbound dispatch point. Frames that fail to
// decode are dropped without disturbing the stream in progress.
func (c *Client) handleFrame(data []byte) {
	frame, err := protocol.Decode(data)
	if err != nil {
		c.log.Debug("dropping frame: %v", err)
		return
	}

	switch frame.Type {
	case protocol.TypeChunk:
		c.mu.Lock()
		c.buf.WriteString(frame.Content)
		c.mu.Unlock()
		c.emit(Event{Kind: EventChunk, Content: frame.Content})

	case protocol.TypeDone:
		c.finishTurn(frame.FullResponse)

	case protocol.TypeMessage:
		// A complete message in one frame supersedes any streamed chunks.
		c.finishTurn(frame.Content)

	case protocol.TypeToolCall:
		c.emit(Event{
			Kind:     EventToolCall,
			ToolName: frame.Name,
			ToolArgs: frame.Args,
		})

	case protocol.TypeToolResult:
		c.emit(Event{Kind: EventToolResult, ToolOutput: frame.Output})

	case protocol.TypeError:
		c.mu.Lock()
		c.buf.Reset()
		c.mu.Unlock()
		c.emit(Event{
			Kind: EventTurnError,
			Err:  &protocol.TurnError{Message: frame.ErrMessage},
		})

	default:
		c.log.Debug("ignoring frame of unknown type %q", frame.Type)
	}
}

// finishTurn completes the assistant's turn. full, when non-empty, replaces
// whatever was accumulated from chunks.
func (c *Client) finishTurn(full string) {
	c.mu.Lock()
	content := full
	if content == "" {
		content = c.buf.String()
	}
	c.buf.Reset()
	c.mu.Unlock()

	if content != "" {
		c.store.Append(c.store.CurrentID(), protocol.Message{
			Role:    protocol.RoleAssistant,
			Content: content,
		})
	}
	c.emit(Event{Kind: EventAssistantMessage, Content: content})
}

// emit fans an event out to all registered handlers.
func (c *Client) emit(ev Event) {
	c.mu.Lock()
	handlers := append(([]func(Event))(nil), c.onEvent...)
	c.mu.Unlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

// Sessions lists all persisted sessions, newest first.
func (c *Client) Sessions() []*store.Session {
	return c.store.List()
}

// SessionID returns the current session id.
func (c *Client) SessionID() string {
	return c.store.CurrentID()
}

// CurrentSession returns the current session record, or false when it has not
// been materialized by a first message yet.
func (c *Client) CurrentSession() (*store.Session, bool) {
	return c.store.Get(c.store.CurrentID())
}

// History returns the current session's messages, oldest first.
func (c *Client) History() []protocol.Message {
	return c.store.History()
}

// SwitchSession makes the given session current and discards any partial
// stream from the previous one.
func (c *Client) SwitchSession(id string) {
	c.mu.Lock()
	c.buf.Reset()
	c.mu.Unlock()
	c.store.SetCurrent(id)
}

// NewSession starts a fresh conversation and returns its id.
func (c *Client) NewSession() string {
	c.mu.Lock()
	c.buf.Reset()
	c.mu.Unlock()
	return c.store.NewSession()
}

// ClearHistory abandons the current conversation by starting a new session.
// The old session stays in the store untouched.
func (c *Client) ClearHistory() string {
	return c.NewSession()
}

// DeleteSession removes a session permanently.
func (c *Client) DeleteSession(id string) {
	c.store.Delete(id)
}

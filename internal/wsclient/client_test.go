package wsclient

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// startGateway runs a test WebSocket server and returns its ws:// base URL.
func startGateway(t *testing.T, handler func(ws *websocket.Conn)) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/chat" {
			http.NotFound(w, r)
			return
		}
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(ws)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestConnectSendReceive(t *testing.T) {
	received := make(chan string, 1)
	base := startGateway(t, func(ws *websocket.Conn) {
		defer ws.Close()
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		received <- string(data)
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"done","full_response":"ok"}`))
		// Keep the connection alive until the client hangs up.
		_, _, _ = ws.ReadMessage()
	})

	c := New(Config{URL: base})
	opened := make(chan struct{}, 1)
	inbound := make(chan []byte, 1)
	c.OnOpen(func() { opened <- struct{}{} })
	c.OnMessage(func(data []byte) { inbound <- data })

	c.Connect()
	waitSignal(t, opened, "open")
	defer c.Disconnect()

	assert.True(t, c.Connected())
	assert.Equal(t, StateOpen, c.State())

	require.NoError(t, c.Send(map[string]string{"type": "message", "content": "hi"}))

	select {
	case got := <-received:
		assert.Contains(t, got, `"content":"hi"`)
	case <-time.After(5 * time.Second):
		t.Fatal("server never received the frame")
	}

	select {
	case frame := <-inbound:
		assert.Contains(t, string(frame), "full_response")
	case <-time.After(5 * time.Second):
		t.Fatal("client never received the reply frame")
	}
}

func TestSendWhileDisconnected(t *testing.T) {
	c := New(Config{URL: "ws://127.0.0.1:1"})

	err := c.Send(map[string]string{"type": "message"})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, c.Connected())
	assert.Equal(t, StateIdle, c.State())
}

func TestTokenAppendedToEndpoint(t *testing.T) {
	c := New(Config{URL: "wss://gw.example.com", Token: "se cret"})
	assert.Equal(t, "wss://gw.example.com/ws/chat?token=se+cret", c.endpointURL())

	plain := New(Config{URL: "wss://gw.example.com"})
	assert.Equal(t, "wss://gw.example.com/ws/chat", plain.endpointURL())
}

func TestNextDelayDoublesAndCaps(t *testing.T) {
	d0 := 1 * time.Second
	max := 30 * time.Second

	delay := d0
	var seen []time.Duration
	for i := 0; i < 7; i++ {
		seen = append(seen, delay)
		delay = nextDelay(delay, max)
	}

	want := []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second,
	}
	assert.Equal(t, want, seen)
}

func TestReconnectAfterServerDrop(t *testing.T) {
	var conns atomic.Int32
	base := startGateway(t, func(ws *websocket.Conn) {
		n := conns.Add(1)
		if n == 1 {
			// Drop the first connection immediately.
			ws.Close()
			return
		}
		defer ws.Close()
		_, _, _ = ws.ReadMessage()
	})

	c := New(Config{URL: base, ReconnectDelay: 10 * time.Millisecond, ReconnectMaxDelay: 50 * time.Millisecond})
	opened := make(chan struct{}, 4)
	closed := make(chan struct{}, 4)
	c.OnOpen(func() { opened <- struct{}{} })
	c.OnClose(func(error) { closed <- struct{}{} })

	c.Connect()
	defer c.Disconnect()

	waitSignal(t, opened, "first open")
	waitSignal(t, closed, "drop")
	waitSignal(t, opened, "reconnect open")

	assert.True(t, c.Connected())
	assert.GreaterOrEqual(t, conns.Load(), int32(2))

	// Backoff resets to the initial delay after a successful open.
	c.mu.Lock()
	assert.Equal(t, 10*time.Millisecond, c.reconnectDelay)
	c.mu.Unlock()
}

func TestDisconnectSuppressesReconnect(t *testing.T) {
	// Nothing listens on port 1; every dial fails fast.
	c := New(Config{URL: "ws://127.0.0.1:1", ReconnectDelay: 30 * time.Millisecond, ReconnectMaxDelay: 100 * time.Millisecond})

	var closes atomic.Int32
	closed := make(chan struct{}, 8)
	c.OnClose(func(error) {
		closes.Add(1)
		closed <- struct{}{}
	})

	c.Connect()
	waitSignal(t, closed, "dial failure")
	assert.Equal(t, StateReconnectScheduled, c.State())

	c.Disconnect()
	assert.Equal(t, StateIdle, c.State())

	before := closes.Load()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, before, closes.Load(), "no close events after Disconnect")
	assert.Equal(t, StateIdle, c.State())
}

func TestConnectIsIdempotent(t *testing.T) {
	var conns atomic.Int32
	base := startGateway(t, func(ws *websocket.Conn) {
		conns.Add(1)
		defer ws.Close()
		_, _, _ = ws.ReadMessage()
	})

	c := New(Config{URL: base})
	opened := make(chan struct{}, 4)
	c.OnOpen(func() { opened <- struct{}{} })

	c.Connect()
	c.Connect()
	c.Connect()
	waitSignal(t, opened, "open")
	defer c.Disconnect()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), conns.Load())
}

func TestMultipleSubscribers(t *testing.T) {
	base := startGateway(t, func(ws *websocket.Conn) {
		defer ws.Close()
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"chunk","content":"x"}`))
		_, _, _ = ws.ReadMessage()
	})

	c := New(Config{URL: base})
	first := make(chan []byte, 1)
	second := make(chan []byte, 1)
	c.OnMessage(func(data []byte) { first <- data })
	c.OnMessage(func(data []byte) { second <- data })

	c.Connect()
	defer c.Disconnect()

	for _, ch := range []chan []byte{first, second} {
		select {
		case <-ch:
		case <-time.After(5 * time.Second):
			t.Fatal("subscriber did not receive the frame")
		}
	}
}

package transport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsTestServer returns the server and a function that drops all upgraded
// websocket connections. httptest's CloseClientConnections cannot do this:
// upgraded connections are hijacked, and the server stops tracking hijacked
// connections, so closing them needs explicit bookkeeping here.
func wsTestServer(t *testing.T, payloads ...string) (*httptest.Server, func()) {
	t.Helper()

	upgrader := websocket.Upgrader{}

	var mu sync.Mutex

	var conns []*websocket.Conn

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		mu.Lock()
		conns = append(conns, conn)
		mu.Unlock()

		defer func() { _ = conn.Close() }()

		for _, payload := range payloads {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
				return
			}
		}

		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))

	dropConns := func() {
		mu.Lock()
		defer mu.Unlock()

		for _, conn := range conns {
			_ = conn.Close()
		}
	}

	t.Cleanup(server.Close)

	return server, dropConns
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWebsocketTransport_ReceivesMessages(t *testing.T) {
	server, _ := wsTestServer(t,
		`{"type":"execution_started","execution_id":"exec-1"}`,
		`{"type":"execution_end","execution_id":"exec-1"}`,
	)

	trans := NewWebsocketTransport(wsURL(server), newTestLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	messages, err := trans.Messages(ctx)
	require.NoError(t, err)
	assert.True(t, trans.Connected())

	first := <-messages
	assert.Contains(t, string(first), "execution_started")

	second := <-messages
	assert.Contains(t, string(second), "execution_end")
}

func TestWebsocketTransport_DialFailure(t *testing.T) {
	trans := NewWebsocketTransport("ws://127.0.0.1:1/nope", newTestLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := trans.Messages(ctx)
	require.Error(t, err)
	assert.False(t, trans.Connected())
}

func TestWebsocketTransport_CloseEndsStream(t *testing.T) {
	server, _ := wsTestServer(t)

	trans := NewWebsocketTransport(wsURL(server), newTestLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := trans.Messages(ctx)
	require.NoError(t, err)
	require.True(t, trans.Connected())

	// Close must tear down the live connection itself: the read loop sees
	// the failed read, skips redialing, and closes the stream even though
	// the context is still open.
	require.NoError(t, trans.Close())

	select {
	case _, ok := <-messages:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close after Close")
	}

	assert.False(t, trans.Connected())
}

func TestWebsocketTransport_StreamClosesWithContext(t *testing.T) {
	server, dropConns := wsTestServer(t)

	trans := NewWebsocketTransport(wsURL(server), newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())

	messages, err := trans.Messages(ctx)
	require.NoError(t, err)

	// Cancel first, then drop the connection: the read loop must see the
	// ended context and close the stream instead of redialing.
	cancel()
	dropConns()

	select {
	case _, ok := <-messages:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close after context cancellation")
	}
}

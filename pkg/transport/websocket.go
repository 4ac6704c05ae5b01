package transport

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// WebsocketTransport connects directly to an executor's websocket and
// keeps reconnecting with capped backoff until the context ends. Each
// successful reconnect is signalled so the console can reconcile the
// state it may have missed during the gap.
type WebsocketTransport struct {
	url    string
	logger *slog.Logger
	dialer *websocket.Dialer

	connected   atomic.Bool
	closed      atomic.Bool
	reconnected chan struct{}

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewWebsocketTransport(url string, logger *slog.Logger) *WebsocketTransport {
	return &WebsocketTransport{
		url:         url,
		logger:      logger,
		dialer:      websocket.DefaultDialer,
		reconnected: make(chan struct{}, 1),
	}
}

func (t *WebsocketTransport) Messages(ctx context.Context) (<-chan []byte, error) {
	conn, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan []byte)

	go t.readLoop(ctx, conn, out)

	return out, nil
}

func (t *WebsocketTransport) Connected() bool {
	return t.connected.Load()
}

func (t *WebsocketTransport) Reconnected() <-chan struct{} {
	return t.reconnected
}

// Close tears down the active connection and stops any reconnect
// attempts. The read loop sees the closed flag and closes its stream.
func (t *WebsocketTransport) Close() error {
	t.closed.Store(true)
	t.connected.Store(false)

	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}

	return nil
}

func (t *WebsocketTransport) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := t.dialer.DialContext(ctx, t.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	t.connected.Store(true)

	return conn, nil
}

func (t *WebsocketTransport) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- []byte) {
	defer close(out)
	defer t.connected.Store(false)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			t.connected.Store(false)

			if ctx.Err() != nil || t.closed.Load() {
				return
			}

			t.logger.WarnContext(ctx, "Websocket dropped, reconnecting", "error", err)

			conn = t.redial(ctx)
			if conn == nil {
				return
			}

			continue
		}

		select {
		case out <- payload:
		case <-ctx.Done():
			_ = conn.Close()

			return
		}
	}
}

// redial retries with capped exponential backoff until it connects or
// the context ends.
func (t *WebsocketTransport) redial(ctx context.Context) *websocket.Conn {
	delay := reconnectBaseDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		conn, err := t.dial(ctx)
		if err == nil {
			select {
			case t.reconnected <- struct{}{}:
			default:
			}

			return conn
		}

		t.logger.WarnContext(ctx, "Websocket reconnect failed", "error", err)

		delay *= 2
		if delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}
	}
}

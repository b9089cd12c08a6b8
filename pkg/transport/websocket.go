package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Anil-CAI/vrteleop/pkg/control"
)

// WebSocketConfig configures the bridge connection.
type WebSocketConfig struct {
	URL                string        // ws:// or wss:// bridge endpoint
	InsecureSkipVerify bool          // accept the bridge's self-signed certificate
	HandshakeTimeout   time.Duration // default 5s
	WriteTimeout       time.Duration // default 50ms
	// ReconnectMin and ReconnectMax bound the reconnect backoff.
	// Reconnecting is disabled when ReconnectMin is zero.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// WebSocket is a fire-and-forget command channel to the bridge.
type WebSocket struct {
	cfg    WebSocketConfig
	dialer *websocket.Dialer
	logger golog.Logger

	state stateVar
	stats counters

	mu   sync.Mutex // serializes writes and guards conn
	conn *websocket.Conn

	cancel context.CancelFunc
	done   chan struct{}
}

// DialWebSocket validates cfg and starts connecting in the background.
// The returned sender is in the Connecting state; commands sent before the
// connection opens are dropped.
func DialWebSocket(ctx context.Context, cfg WebSocketConfig, logger golog.Logger) (*WebSocket, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse bridge url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("bridge url %q: scheme must be ws or wss", cfg.URL)
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 50 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = cfg.ReconnectMin
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &WebSocket{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			TLSClientConfig:  &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
		},
		logger: logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	w.state.store(Connecting)

	go w.run(ctx)
	return w, nil
}

// State returns the connection state.
func (w *WebSocket) State() State {
	return w.state.load()
}

// Stats returns send counters.
func (w *WebSocket) Stats() Stats {
	return w.stats.snapshot()
}

// Send transmits cmd as one text frame, or drops it if the socket is not open.
func (w *WebSocket) Send(cmd control.Command) {
	if w.state.load() != Open {
		w.stats.dropped.Add(1)
		return
	}
	data, err := Encode(cmd)
	if err != nil {
		w.logger.Errorw("dropping command", "error", err)
		w.stats.dropped.Add(1)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		w.stats.dropped.Add(1)
		return
	}
	_ = w.conn.SetWriteDeadline(time.Now().Add(w.cfg.WriteTimeout))
	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		w.logger.Warnw("write failed, closing connection", "error", err)
		w.stats.dropped.Add(1)
		w.state.store(Closed)
		w.conn.Close()
		return
	}
	w.stats.sent.Add(1)
}

// Close stops reconnecting and closes the connection.
func (w *WebSocket) Close() error {
	w.cancel()

	w.mu.Lock()
	var err error
	if w.conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = w.conn.Close()
	}
	w.mu.Unlock()

	<-w.done
	w.state.store(Closed)
	return err
}

func (w *WebSocket) run(ctx context.Context) {
	defer close(w.done)

	backoff := w.cfg.ReconnectMin
	for {
		w.state.store(Connecting)
		conn, _, err := w.dialer.DialContext(ctx, w.cfg.URL, nil)
		if err != nil {
			w.state.store(Closed)
			if ctx.Err() != nil {
				return
			}
			w.logger.Warnw("bridge connection failed", "url", w.cfg.URL, "error", err)
		} else {
			backoff = w.cfg.ReconnectMin
			w.serve(ctx, conn)
			if ctx.Err() != nil {
				return
			}
		}

		if w.cfg.ReconnectMin <= 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > w.cfg.ReconnectMax {
			backoff = w.cfg.ReconnectMax
		}
	}
}

// serve publishes conn and reads until the peer goes away. Inbound frames are
// discarded; reading is what processes close and ping control frames.
func (w *WebSocket) serve(ctx context.Context, conn *websocket.Conn) {
	w.mu.Lock()
	if ctx.Err() != nil {
		w.mu.Unlock()
		conn.Close()
		return
	}
	w.conn = conn
	w.state.store(Open)
	w.mu.Unlock()
	w.logger.Infow("bridge connected", "url", w.cfg.URL)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				w.logger.Warnw("bridge connection lost", "error", err)
			} else {
				w.logger.Infow("bridge connection closed")
			}
			break
		}
	}

	w.mu.Lock()
	w.state.store(Closed)
	if w.conn == conn {
		w.conn = nil
	}
	w.mu.Unlock()
	conn.Close()
}

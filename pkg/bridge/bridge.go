// Package bridge receives velocity commands from the headset over a
// WebSocket and forwards them to the robot.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edaniels/golog"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Anil-CAI/vrteleop/pkg/robot"
	"github.com/Anil-CAI/vrteleop/pkg/transport"
)

// Config configures the bridge server.
type Config struct {
	Addr     string // default ":8765"
	CertFile string // TLS is enabled when both files are set
	KeyFile  string

	// StaticDir, if set, is served on StaticAddr (default ":8443") with the
	// cross-origin isolation headers the headset browser needs.
	StaticDir  string
	StaticAddr string

	// CommandTimeout publishes a zero twist when a connected client sends
	// nothing for this long. Zero disables it.
	CommandTimeout time.Duration

	Sink   robot.Sink
	Logger golog.Logger
}

// Stats counts bridge traffic.
type Stats struct {
	Clients   int64
	Received  uint64
	Published uint64
	Skipped   uint64
	Timeouts  uint64
}

// Server is the robot-side WebSocket endpoint.
type Server struct {
	cfg      Config
	logger   golog.Logger
	upgrader websocket.Upgrader

	publishMu sync.Mutex // keeps twists in arrival order across clients

	clients   atomic.Int64
	received  atomic.Uint64
	published atomic.Uint64
	skipped   atomic.Uint64
	timeouts  atomic.Uint64
}

// NewServer creates a bridge server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Sink == nil {
		return nil, fmt.Errorf("new bridge: sink is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8765"
	}
	if cfg.StaticAddr == "" {
		cfg.StaticAddr = ":8443"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	return &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		upgrader: websocket.Upgrader{
			// The headset page is served from a different port.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}, nil
}

// Stats returns traffic counters.
func (s *Server) Stats() Stats {
	return Stats{
		Clients:   s.clients.Load(),
		Received:  s.received.Load(),
		Published: s.published.Load(),
		Skipped:   s.skipped.Load(),
		Timeouts:  s.timeouts.Load(),
	}
}

// ServeHTTP upgrades the request and handles the client until it disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()
	s.handle(r.Context(), conn, r.RemoteAddr)
}

func (s *Server) handle(ctx context.Context, conn *websocket.Conn, remote string) {
	s.clients.Add(1)
	defer s.clients.Add(-1)
	s.logger.Infow("client connected", "remote", remote)
	defer s.logger.Infow("client disconnected", "remote", remote)

	var timer *time.Timer
	if s.cfg.CommandTimeout > 0 {
		timer = time.AfterFunc(s.cfg.CommandTimeout, func() {
			s.logger.Warnw("command timeout, stopping robot", "remote", remote, "timeout", s.cfg.CommandTimeout)
			s.publish(context.Background(), robot.NewTwist(0, 0))
			s.timeouts.Add(1)
		})
		defer timer.Stop()
	}

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warnw("client read failed", "remote", remote, "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			s.skipped.Add(1)
			continue
		}
		s.received.Add(1)

		msg, err := transport.Decode(data)
		if err != nil {
			s.logger.Warnw("skipping malformed message", "remote", remote, "error", err)
			s.skipped.Add(1)
			continue
		}
		if !msg.IsCmdVel() {
			s.skipped.Add(1)
			continue
		}
		if timer != nil {
			timer.Reset(s.cfg.CommandTimeout)
		}
		s.logger.Debugw("cmd_vel", "linear", msg.Linear, "angular", msg.Angular)
		s.publish(ctx, robot.NewTwist(msg.Linear, msg.Angular))
	}
}

func (s *Server) publish(ctx context.Context, t robot.Twist) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	if err := s.cfg.Sink.Publish(ctx, t); err != nil {
		s.logger.Errorw("publish twist", "error", err)
		return
	}
	s.published.Add(1)
}

// ListenAndServe runs the WebSocket endpoint, and the static page server if
// configured, until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	tls := s.cfg.CertFile != "" && s.cfg.KeyFile != ""

	servers := []*http.Server{{Addr: s.cfg.Addr, Handler: s}}
	if s.cfg.StaticDir != "" {
		servers = append(servers, &http.Server{Addr: s.cfg.StaticAddr, Handler: StaticHandler(s.cfg.StaticDir)})
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		srv := srv
		scheme := "ws"
		if tls {
			scheme = "wss"
		}
		if srv.Handler != s {
			scheme = "http"
			if tls {
				scheme = "https"
			}
		}
		s.logger.Infow("listening", "url", fmt.Sprintf("%s://%s", scheme, srv.Addr))

		go func() {
			var err error
			if tls {
				err = srv.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
			} else {
				err = srv.ListenAndServe()
			}
			if errors.Is(err, http.ErrServerClosed) {
				err = nil
			}
			errCh <- err
		}()
	}

	var firstErr error
	select {
	case <-ctx.Done():
	case firstErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, srv := range servers {
		_ = srv.Shutdown(shutdownCtx)
	}
	if firstErr != nil {
		return fmt.Errorf("bridge server: %w", firstErr)
	}
	return nil
}

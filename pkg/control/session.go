package control

import (
	"fmt"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"go.uber.org/zap"

	"github.com/Anil-CAI/vrteleop/pkg/pose"
)

// Frame is the outcome of one tick.
type Frame struct {
	Time     time.Time
	Raw      Command // mapped this tick
	Smoothed Command // filter state after this tick
	Sent     Command // what must be transmitted
	Grip     float64
	Clutch   bool // grip engaged
	Watchdog bool // watchdog forced a stop
	Computed bool // false if the tick's clock did not advance
}

// Session is the control state for one connection: smoothing filter,
// watchdog timestamp and the last tick. It is created once per connection
// and advanced once per rendered frame.
type Session struct {
	cfg      Config
	mapper   *Mapper
	smoother *Smoother
	logger   golog.Logger

	mu       sync.Mutex
	watchdog *Watchdog
	prevTick time.Time
	last     Frame
}

// NewSession validates cfg and creates a session.
func NewSession(cfg Config, logger golog.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Session{
		cfg:      cfg,
		mapper:   NewMapper(cfg, logger),
		smoother: NewSmoother(cfg.SmoothFactor),
		logger:   logger,
	}, nil
}

// Config returns the session configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// Advance runs one tick and returns the command to transmit.
//
// The filter is updated on every tick whose clock advanced, whether or not
// the clutch is engaged. A stop is returned when the watchdog expired since
// the previous computation or when the clutch is released.
func (s *Session) Advance(left, right pose.ControllerPose, grip float64, now time.Time) Command {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.arm(now)
	f := Frame{
		Time:   now,
		Grip:   grip,
		Clutch: s.cfg.Engaged(grip),
	}

	f.Computed = s.prevTick.IsZero() || now.After(s.prevTick)
	if f.Computed {
		f.Raw = s.mapper.Map(left, right)
		f.Smoothed = s.smoother.Update(f.Raw)
	} else {
		f.Raw = s.last.Raw
		f.Smoothed = s.smoother.Value()
	}

	switch {
	case s.watchdog.Expired(now):
		f.Watchdog = true
		f.Sent = Stop
		s.logger.Warnw("watchdog expired", "since", now.Sub(s.watchdog.Last()))
	case !f.Clutch:
		f.Sent = Stop
	default:
		f.Sent = f.Smoothed
	}

	if f.Computed {
		s.watchdog.Refresh(now)
		s.prevTick = now
	}
	s.last = f
	return f.Sent
}

// Stall is called on a tick where no pose could be sampled. It returns a
// stop command once the watchdog has expired; otherwise nothing is sent.
func (s *Session) Stall(now time.Time) (Command, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.arm(now)
	if !s.watchdog.Expired(now) {
		return Command{}, false
	}
	s.last = Frame{
		Time:     now,
		Raw:      s.last.Raw,
		Smoothed: s.smoother.Value(),
		Sent:     Stop,
		Watchdog: true,
	}
	return Stop, true
}

// Snapshot returns the most recent frame.
func (s *Session) Snapshot() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Session) arm(now time.Time) {
	if s.watchdog == nil {
		s.watchdog = NewWatchdog(s.cfg.WatchdogTimeout, now)
	}
}

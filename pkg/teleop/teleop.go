// Package teleop drives a control session from tracked controllers.
package teleop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"go.uber.org/zap"

	"github.com/Anil-CAI/vrteleop/pkg/control"
	"github.com/Anil-CAI/vrteleop/pkg/pose"
	"github.com/Anil-CAI/vrteleop/pkg/transport"
)

// State is published after every tick.
type State struct {
	Frame     control.Frame
	Transport transport.State
	Tracked   bool // both controllers had a pose this tick
	Direct    bool // keyboard direct mode is active
	Timestamp time.Time
}

// Recorder receives every tick. See package record.
type Recorder interface {
	Record(left, right pose.ControllerPose, f control.Frame) error
}

// Controller runs the per-frame control loop.
type Controller struct {
	session  *control.Session
	poses    pose.Provider
	inputs   pose.InputSources
	sender   transport.Sender
	recorder Recorder
	logger   golog.Logger
	hz       int
	now      func() time.Time

	mu      sync.Mutex
	running bool
	direct  bool
	keys    transport.Keys

	stateCh chan State
	logCh   chan string
}

// Config holds configuration for the controller.
type Config struct {
	Control  control.Config
	Poses    pose.Provider
	Inputs   pose.InputSources
	Sender   transport.Sender
	Recorder Recorder // optional
	Logger   golog.Logger
	Hz       int // frame rate of the loop, default 72

	// Clock is used for tests. Defaults to time.Now.
	Clock func() time.Time
}

// NewController creates a new teleoperation controller.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Poses == nil || cfg.Inputs == nil {
		return nil, fmt.Errorf("create controller: pose provider and input sources are required")
	}
	if cfg.Sender == nil {
		cfg.Sender = transport.Discard{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.Hz <= 0 {
		cfg.Hz = 72
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	session, err := control.NewSession(cfg.Control, cfg.Logger.Named("control"))
	if err != nil {
		return nil, fmt.Errorf("create controller: %w", err)
	}

	return &Controller{
		session:  session,
		poses:    cfg.Poses,
		inputs:   cfg.Inputs,
		sender:   cfg.Sender,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
		hz:       cfg.Hz,
		now:      cfg.Clock,
		stateCh:  make(chan State, 1),
		logCh:    make(chan string, 10),
	}, nil
}

// Close stops the loop and closes the sender.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	if err := c.sender.Close(); err != nil {
		return fmt.Errorf("close sender: %w", err)
	}
	return nil
}

// States returns a channel that receives the latest state.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Logs returns a channel that receives log messages.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// Hz returns the loop frequency.
func (c *Controller) Hz() int {
	return c.hz
}

// Session returns the control session.
func (c *Controller) Session() *control.Session {
	return c.session
}

// SetDirect switches keyboard direct mode on or off. In direct mode held
// keys are sent as-is and the session output is not transmitted.
func (c *Controller) SetDirect(on bool) {
	c.mu.Lock()
	changed := c.direct != on
	c.direct = on
	c.keys = transport.Keys{}
	c.mu.Unlock()

	if changed {
		c.sender.Send(control.Stop)
		if on {
			c.log("Keyboard direct mode: WASD drives, space stops")
		} else {
			c.log("Controller mode")
		}
	}
}

// SetKeys updates the held direct-drive keys and sends the result
// immediately, like the keyboard handler does.
func (c *Controller) SetKeys(k transport.Keys) {
	c.mu.Lock()
	if !c.direct {
		c.mu.Unlock()
		return
	}
	c.keys = k
	c.mu.Unlock()
	c.sender.Send(transport.KeyCommand(k))
}

func (c *Controller) log(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", c.now().Format("15:04:05"), fmt.Sprintf(format, args...))
	c.logger.Info(msg)
	select {
	case c.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Start runs the control loop until ctx is done.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("already running")
	}
	c.running = true
	c.mu.Unlock()

	c.log("Teleoperation started at %d Hz, hold the right grip to drive", c.hz)

	ticker := time.NewTicker(time.Second / time.Duration(c.hz))
	defer ticker.Stop()

	lastTransport := c.sender.State()
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case <-ticker.C:
			c.Step()
			if st := c.sender.State(); st != lastTransport {
				c.log("Bridge %s", st)
				lastTransport = st
			}
		}
	}
}

// Step runs a single tick. It is exported so a render loop can drive the
// controller directly instead of Start's ticker.
func (c *Controller) Step() {
	now := c.now()

	c.mu.Lock()
	direct := c.direct
	c.mu.Unlock()

	c.sync()
	left, okL := c.poses.Pose(pose.Left)
	right, okR := c.poses.Pose(pose.Right)
	tracked := okL && okR

	var frame control.Frame
	if tracked {
		grip := control.GripValue(c.inputs.InputSources(), c.session.Config().ClutchButton)
		cmd := c.session.Advance(left, right, grip, now)
		if !direct {
			c.sender.Send(cmd)
		}
		frame = c.session.Snapshot()
		if c.recorder != nil {
			if err := c.recorder.Record(left, right, frame); err != nil {
				c.logger.Warnw("record tick", "error", err)
			}
		}
	} else {
		if cmd, ok := c.session.Stall(now); ok && !direct {
			c.sender.Send(cmd)
		}
		frame = c.session.Snapshot()
	}

	c.sendState(State{
		Frame:     frame,
		Transport: c.sender.State(),
		Tracked:   tracked,
		Direct:    direct,
		Timestamp: now,
	})
}

// sync pins time-driven sources to this tick.
func (c *Controller) sync() {
	ps, ok := c.poses.(pose.Syncer)
	if ok {
		ps.Sync()
	}
	if is, ok := c.inputs.(pose.Syncer); ok && is != ps {
		is.Sync()
	}
}

func (c *Controller) sendState(s State) {
	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		select {
		case c.stateCh <- s:
		default:
		}
	}
}

func (c *Controller) shutdown() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	c.sender.Send(control.Stop)
	c.log("Teleoperation stopped")
}

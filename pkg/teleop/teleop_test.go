package teleop

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/edaniels/golog"

	"github.com/Anil-CAI/vrteleop/pkg/control"
	"github.com/Anil-CAI/vrteleop/pkg/pose"
	"github.com/Anil-CAI/vrteleop/pkg/transport"
)

type fakeSender struct {
	mu    sync.Mutex
	state transport.State
	sent  []control.Command
}

func (f *fakeSender) Send(cmd control.Command) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != transport.Open {
		return
	}
	f.sent = append(f.sent, cmd)
}

func (f *fakeSender) State() transport.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSender) Close() error { return nil }

func (f *fakeSender) last() control.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestController(t *testing.T) (*Controller, *pose.Virtual, *fakeSender, *fakeClock) {
	t.Helper()
	v := pose.NewVirtual()
	s := &fakeSender{state: transport.Open}
	clk := &fakeClock{t: time.Unix(1000, 0)}
	c, err := NewController(Config{
		Control: control.DefaultConfig(),
		Poses:   v,
		Inputs:  v,
		Sender:  s,
		Logger:  golog.NewTestLogger(t),
		Clock:   clk.now,
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return c, v, s, clk
}

func TestController_GripGatesCommands(t *testing.T) {
	c, v, s, clk := newTestController(t)
	v.SetAngles(pose.Left, pose.Euler{Y: 0.4})
	v.SetAngles(pose.Right, pose.Euler{X: -0.3})

	for i := 0; i < 5; i++ {
		clk.advance(14 * time.Millisecond)
		c.Step()
		if got := s.last(); got != control.Stop {
			t.Fatalf("grip released: sent %+v", got)
		}
	}

	v.SetGrip(1)
	clk.advance(14 * time.Millisecond)
	c.Step()
	got := s.last()
	if got.Linear <= 0 || got.Angular <= 0 {
		t.Errorf("grip engaged: sent %+v, want forward and left", got)
	}

	state := <-c.States()
	if !state.Tracked || !state.Frame.Clutch || state.Transport != transport.Open {
		t.Errorf("unexpected state: %+v", state)
	}
	if math.Abs(state.Frame.Raw.Angular-0.6) > 1e-9 || math.Abs(state.Frame.Raw.Linear-0.3) > 1e-9 {
		t.Errorf("raw command = %+v, want {0.3 0.6}", state.Frame.Raw)
	}
}

func TestController_TrackingLossTripsWatchdog(t *testing.T) {
	c, v, s, clk := newTestController(t)
	v.SetAngles(pose.Left, pose.Euler{Y: 0.8})
	v.SetGrip(1)

	clk.advance(14 * time.Millisecond)
	c.Step()
	n := s.count()

	v.SetTracked(pose.Left, false)
	clk.advance(500 * time.Millisecond)
	c.Step()
	if s.count() != n {
		t.Fatalf("tracking loss within timeout should not send")
	}

	clk.advance(600 * time.Millisecond)
	c.Step()
	if s.count() != n+1 || s.last() != control.Stop {
		t.Fatalf("expected watchdog stop, sent %d commands, last %+v", s.count()-n, s.last())
	}
	if state := <-c.States(); state.Tracked || !state.Frame.Watchdog {
		t.Errorf("unexpected state: %+v", state)
	}
}

func TestController_DirectMode(t *testing.T) {
	c, v, s, clk := newTestController(t)
	v.SetAngles(pose.Left, pose.Euler{Y: 0.8})
	v.SetGrip(1)

	c.SetKeys(transport.Keys{Forward: true}) // ignored outside direct mode
	if s.count() != 0 {
		t.Fatal("keys sent outside direct mode")
	}

	c.SetDirect(true)
	if s.last() != control.Stop {
		t.Fatalf("entering direct mode should stop, got %+v", s.last())
	}
	c.SetKeys(transport.Keys{Forward: true, Left: true})
	if got := s.last(); got != (control.Command{Linear: 0.2, Angular: 1}) {
		t.Fatalf("direct command = %+v", got)
	}

	n := s.count()
	clk.advance(14 * time.Millisecond)
	c.Step()
	if s.count() != n {
		t.Error("session output must not be sent in direct mode")
	}
}

func TestController_StartStop(t *testing.T) {
	c, v, s, _ := newTestController(t)
	c.now = time.Now
	v.SetGrip(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	deadline := time.After(2 * time.Second)
	for s.count() < 3 {
		select {
		case <-deadline:
			t.Fatal("loop did not tick")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if err := c.Start(ctx); err == nil {
		t.Error("second Start should fail while running")
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Start returned %v, want context.Canceled", err)
	}
	if s.last() != control.Stop {
		t.Errorf("shutdown should send stop, got %+v", s.last())
	}
}

type syncingVirtual struct {
	*pose.Virtual
	syncs int
}

func (s *syncingVirtual) Sync() { s.syncs++ }

func TestController_SyncsOncePerStep(t *testing.T) {
	v := &syncingVirtual{Virtual: pose.NewVirtual()}
	clk := &fakeClock{t: time.Unix(1000, 0)}
	c, err := NewController(Config{
		Control: control.DefaultConfig(),
		Poses:   v,
		Inputs:  v,
		Sender:  &fakeSender{state: transport.Open},
		Clock:   clk.now,
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}

	for i := 1; i <= 3; i++ {
		clk.advance(14 * time.Millisecond)
		c.Step()
		if v.syncs != i {
			t.Fatalf("after %d steps synced %d times", i, v.syncs)
		}
	}
}

func TestController_LogUsesClock(t *testing.T) {
	c, _, _, clk := newTestController(t)
	clk.t = time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)

	c.SetDirect(true)
	msg := <-c.Logs()
	if want := "[03:04:05] "; !strings.HasPrefix(msg, want) {
		t.Errorf("log = %q, want prefix %q", msg, want)
	}
}

func TestNewController_Validation(t *testing.T) {
	if _, err := NewController(Config{Control: control.DefaultConfig()}); err == nil {
		t.Error("expected error without pose provider")
	}
	v := pose.NewVirtual()
	bad := control.DefaultConfig()
	bad.YawLimit = -1
	if _, err := NewController(Config{Control: bad, Poses: v, Inputs: v}); err == nil {
		t.Error("expected error for invalid control config")
	}
}

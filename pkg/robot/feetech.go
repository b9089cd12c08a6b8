package robot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
)

// stepsPerRev is the encoder resolution of STS3215 servos; goal velocity
// is in steps per second.
const stepsPerRev = 4096

// WheelServo is the part of a Feetech servo a wheel needs.
type WheelServo interface {
	SetOperatingMode(ctx context.Context, mode int) error
	SetVelocity(ctx context.Context, velocity int) error
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
}

// WheelConfig describes a differential base driven by two servos in wheel mode.
type WheelConfig struct {
	Port        string
	LeftID      int     // default 1
	RightID     int     // default 2
	WheelRadius float64 // meters, default 0.05
	TrackWidth  float64 // meters between wheel contact points, default 0.2
	MaxSpeed    int     // steps/s, default 3000
	InvertLeft  bool    // servo mounted mirrored
	InvertRight bool
}

func (c *WheelConfig) setDefaults() {
	if c.LeftID == 0 {
		c.LeftID = 1
	}
	if c.RightID == 0 {
		c.RightID = 2
	}
	if c.WheelRadius <= 0 {
		c.WheelRadius = 0.05
	}
	if c.TrackWidth <= 0 {
		c.TrackWidth = 0.2
	}
	if c.MaxSpeed <= 0 {
		c.MaxSpeed = 3000
	}
}

// FeetechSink drives two STS servos as the wheels of a differential base.
type FeetechSink struct {
	cfg         WheelConfig
	left, right WheelServo
	bus         io.Closer

	mu sync.Mutex
}

// OpenFeetechSink opens the servo bus and puts both wheels in velocity mode.
func OpenFeetechSink(ctx context.Context, cfg WheelConfig) (*FeetechSink, error) {
	cfg.setDefaults()
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}

	left := feetech.NewServo(bus, cfg.LeftID, &feetech.ModelSTS3215)
	right := feetech.NewServo(bus, cfg.RightID, &feetech.ModelSTS3215)
	s, err := NewFeetechSink(ctx, left, right, cfg)
	if err != nil {
		bus.Close()
		return nil, err
	}
	s.bus = bus
	return s, nil
}

// NewFeetechSink switches already connected servos to wheel mode.
func NewFeetechSink(ctx context.Context, left, right WheelServo, cfg WheelConfig) (*FeetechSink, error) {
	cfg.setDefaults()
	for _, w := range []WheelServo{left, right} {
		// Operating mode can only change with torque off.
		if err := w.Disable(ctx); err != nil {
			return nil, fmt.Errorf("disable wheel: %w", err)
		}
		if err := w.SetOperatingMode(ctx, feetech.ModeVelocity); err != nil {
			return nil, fmt.Errorf("set wheel mode: %w", err)
		}
		if err := w.Enable(ctx); err != nil {
			return nil, fmt.Errorf("enable wheel: %w", err)
		}
	}
	return &FeetechSink{cfg: cfg, left: left, right: right}, nil
}

// Publish implements Sink.
func (s *FeetechSink) Publish(ctx context.Context, t Twist) error {
	l, r := WheelSpeeds(t, s.cfg)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.left.SetVelocity(ctx, l); err != nil {
		return fmt.Errorf("set left wheel: %w", err)
	}
	if err := s.right.SetVelocity(ctx, r); err != nil {
		return fmt.Errorf("set right wheel: %w", err)
	}
	return nil
}

// Close stops both wheels, releases torque and closes the bus.
func (s *FeetechSink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, w := range []WheelServo{s.left, s.right} {
		if err := w.SetVelocity(ctx, 0); err != nil {
			errs = append(errs, err)
		}
		if err := w.Disable(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close wheels: %w", errors.Join(errs...))
	}
	return nil
}

// WheelSpeeds converts a twist into left and right goal velocities in
// steps/s. Both wheels are scaled down together when one would exceed
// MaxSpeed, so the turning radius is kept.
func WheelSpeeds(t Twist, cfg WheelConfig) (left, right int) {
	cfg.setDefaults()
	half := t.Angular.Z * cfg.TrackWidth / 2
	toSteps := stepsPerRev / (2 * math.Pi * cfg.WheelRadius)
	l := (t.Linear.X - half) * toSteps
	r := (t.Linear.X + half) * toSteps

	if m := math.Max(math.Abs(l), math.Abs(r)); m > float64(cfg.MaxSpeed) {
		scale := float64(cfg.MaxSpeed) / m
		l *= scale
		r *= scale
	}
	if cfg.InvertLeft {
		l = -l
	}
	if cfg.InvertRight {
		r = -r
	}
	return int(math.Round(l)), int(math.Round(r))
}

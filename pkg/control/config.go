package control

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid control config")

// Config holds the control-mapping constants.
type Config struct {
	YawLimit        float64
	PitchLimit      float64
	AngularScale    float64
	LinearScale     float64
	Deadzone        float64
	SmoothFactor    float64
	ClutchThreshold float64
	ClutchButton    int
	WatchdogTimeout time.Duration
}

// DefaultConfig returns the tuning used on the headset.
func DefaultConfig() Config {
	return Config{
		YawLimit:        0.8, // ~46 degrees
		PitchLimit:      0.6, // ~35 degrees
		AngularScale:    1.2,
		LinearScale:     0.6,
		Deadzone:        0.05,
		SmoothFactor:    0.25,
		ClutchThreshold: 0.5,
		ClutchButton:    1,
		WatchdogTimeout: time.Second,
	}
}

// Validate reports configuration errors. It is meant to run once at startup.
func (c Config) Validate() error {
	switch {
	case c.YawLimit <= 0:
		return fmt.Errorf("%w: yaw limit must be positive, got %v", ErrInvalidConfig, c.YawLimit)
	case c.PitchLimit <= 0:
		return fmt.Errorf("%w: pitch limit must be positive, got %v", ErrInvalidConfig, c.PitchLimit)
	case c.AngularScale <= 0:
		return fmt.Errorf("%w: angular scale must be positive, got %v", ErrInvalidConfig, c.AngularScale)
	case c.LinearScale <= 0:
		return fmt.Errorf("%w: linear scale must be positive, got %v", ErrInvalidConfig, c.LinearScale)
	case c.Deadzone < 0:
		return fmt.Errorf("%w: deadzone must not be negative, got %v", ErrInvalidConfig, c.Deadzone)
	case c.SmoothFactor <= 0 || c.SmoothFactor > 1:
		return fmt.Errorf("%w: smooth factor must be in (0, 1], got %v", ErrInvalidConfig, c.SmoothFactor)
	case c.ClutchButton < 0:
		return fmt.Errorf("%w: clutch button index must not be negative, got %d", ErrInvalidConfig, c.ClutchButton)
	case c.WatchdogTimeout <= 0:
		return fmt.Errorf("%w: watchdog timeout must be positive, got %v", ErrInvalidConfig, c.WatchdogTimeout)
	}
	return nil
}

package control

import (
	"math"
	"testing"

	"github.com/Anil-CAI/vrteleop/pkg/pose"
)

func poseWith(e pose.Euler) pose.ControllerPose {
	return pose.ControllerPose{Orientation: pose.FromEulerYXZ(e)}
}

func TestMapper_Angular(t *testing.T) {
	m := NewMapper(DefaultConfig(), nil)

	tests := []struct {
		yaw      float64
		expected float64
	}{
		{0.4, 0.6},    // half of the yaw limit
		{0.8, 1.2},    // at the limit
		{-0.8, -1.2},  // at the negative limit
		{2.0, 1.2},    // clamped
		{-3.0, -1.2},  // clamped
		{0.02, 0},     // 0.03 rad/s is inside the deadzone
		{-0.03, 0},    // -0.045 rad/s is inside the deadzone
		{0.04, 0.06},  // just outside
		{math.NaN(), 0},
	}

	for _, tt := range tests {
		got := m.Angular(tt.yaw)
		if math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("Angular(%v) = %f, want %f", tt.yaw, got, tt.expected)
		}
	}
}

func TestMapper_Linear(t *testing.T) {
	m := NewMapper(DefaultConfig(), nil)

	tests := []struct {
		pitch    float64
		expected float64
	}{
		{-0.3, 0.3},  // tipped forward drives forward
		{0.3, -0.3},  // tipped back reverses
		{-0.6, 0.6},  // at the limit
		{-1.5, 0.6},  // clamped
		{1.5, -0.6},  // clamped
		{0.03, 0},    // -0.03 snaps to zero
		{-0.049, 0},  // 0.049 snaps to zero
		{-0.06, 0.06},
	}

	for _, tt := range tests {
		got := m.Linear(tt.pitch)
		if math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("Linear(%v) = %f, want %f", tt.pitch, got, tt.expected)
		}
	}
}

func TestMapper_DeadzoneIsExactZero(t *testing.T) {
	m := NewMapper(DefaultConfig(), nil)
	for pitch := -0.029; pitch <= 0.029; pitch += 0.001 {
		if got := m.Linear(pitch); got != 0 {
			t.Errorf("Linear(%f) = %g, want exactly 0", pitch, got)
		}
	}
	for yaw := -0.033; yaw <= 0.033; yaw += 0.001 {
		if got := m.Angular(yaw); got != 0 {
			t.Errorf("Angular(%f) = %g, want exactly 0", yaw, got)
		}
	}
}

func TestMapper_Bounds(t *testing.T) {
	m := NewMapper(DefaultConfig(), nil)
	for yaw := -3.0; yaw <= 3.0; yaw += 0.05 {
		for pitch := -1.5; pitch <= 1.5; pitch += 0.05 {
			cmd := m.Map(poseWith(pose.Euler{Y: yaw}), poseWith(pose.Euler{X: pitch}))
			if math.Abs(cmd.Angular) > 1.2+1e-12 {
				t.Fatalf("angular %f out of bounds for yaw %f", cmd.Angular, yaw)
			}
			if math.Abs(cmd.Linear) > 0.6+1e-12 {
				t.Fatalf("linear %f out of bounds for pitch %f", cmd.Linear, pitch)
			}
		}
	}
}

func TestMapper_Map(t *testing.T) {
	m := NewMapper(DefaultConfig(), nil)

	// Yaw 0.4 on the left, pitch 0.03 on the right.
	cmd := m.Map(poseWith(pose.Euler{Y: 0.4}), poseWith(pose.Euler{X: 0.03}))
	if math.Abs(cmd.Angular-0.6) > 1e-9 {
		t.Errorf("angular = %f, want 0.6", cmd.Angular)
	}
	if cmd.Linear != 0 {
		t.Errorf("linear = %f, want 0", cmd.Linear)
	}

	// The other hand's axes are ignored.
	cmd = m.Map(poseWith(pose.Euler{X: -0.5}), poseWith(pose.Euler{Y: 0.7}))
	if !cmd.IsZero() {
		t.Errorf("cross-hand axes leaked into command: %+v", cmd)
	}
}

func TestGripValue(t *testing.T) {
	tests := []struct {
		name    string
		sources []pose.InputSource
		want    float64
	}{
		{"no sources", nil, 0},
		{"left only", []pose.InputSource{{Handedness: pose.Left, Buttons: []float64{1, 1}}}, 0},
		{"right missing button", []pose.InputSource{{Handedness: pose.Right, Buttons: []float64{1}}}, 0},
		{"right grip", []pose.InputSource{
			{Handedness: pose.Left, Buttons: []float64{0, 0.2}},
			{Handedness: pose.Right, Buttons: []float64{0.1, 0.8}},
		}, 0.8},
	}

	for _, tt := range tests {
		if got := GripValue(tt.sources, 1); got != tt.want {
			t.Errorf("%s: GripValue = %f, want %f", tt.name, got, tt.want)
		}
	}
}

func TestConfig_Engaged(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Engaged(0.5) {
		t.Error("0.5 must not engage the clutch")
	}
	if !cfg.Engaged(0.51) {
		t.Error("0.51 should engage the clutch")
	}
	if cfg.Engaged(0) {
		t.Error("0 must not engage the clutch")
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	mutations := map[string]func(*Config){
		"yaw limit":     func(c *Config) { c.YawLimit = 0 },
		"pitch limit":   func(c *Config) { c.PitchLimit = -0.6 },
		"angular scale": func(c *Config) { c.AngularScale = 0 },
		"linear scale":  func(c *Config) { c.LinearScale = -1 },
		"deadzone":      func(c *Config) { c.Deadzone = -0.1 },
		"alpha zero":    func(c *Config) { c.SmoothFactor = 0 },
		"alpha > 1":     func(c *Config) { c.SmoothFactor = 1.5 },
		"button":        func(c *Config) { c.ClutchButton = -1 },
		"timeout":       func(c *Config) { c.WatchdogTimeout = 0 },
	}

	for name, mutate := range mutations {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

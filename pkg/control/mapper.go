package control

import (
	"math"

	"github.com/edaniels/golog"

	"github.com/Anil-CAI/vrteleop/pkg/pose"
)

// Mapper turns controller orientations into raw velocity commands.
// Yaw comes from the left controller and drives angular velocity, pitch comes
// from the right controller and drives linear velocity.
type Mapper struct {
	cfg    Config
	logger golog.Logger
}

// NewMapper creates a mapper. cfg is assumed valid.
func NewMapper(cfg Config, logger golog.Logger) *Mapper {
	return &Mapper{cfg: cfg, logger: logger}
}

// Yaw extracts the clamped yaw of an orientation.
func (m *Mapper) Yaw(p pose.ControllerPose) float64 {
	e := pose.EulerYXZ(p.Normalize().Orientation)
	return clampAxis(e.Y, m.cfg.YawLimit)
}

// Pitch extracts the clamped pitch of an orientation.
func (m *Mapper) Pitch(p pose.ControllerPose) float64 {
	e := pose.EulerYXZ(p.Normalize().Orientation)
	return clampAxis(e.X, m.cfg.PitchLimit)
}

// Angular maps a clamped yaw to angular velocity.
func (m *Mapper) Angular(yaw float64) float64 {
	ang := (clampAxis(yaw, m.cfg.YawLimit) / m.cfg.YawLimit) * m.cfg.AngularScale
	return deadzone(ang, m.cfg.Deadzone)
}

// Linear maps a clamped pitch to linear velocity. Tipping the controller
// forward (negative pitch) drives forward.
func (m *Mapper) Linear(pitch float64) float64 {
	lin := (-clampAxis(pitch, m.cfg.PitchLimit) / m.cfg.PitchLimit) * m.cfg.LinearScale
	return deadzone(lin, m.cfg.Deadzone)
}

// Map computes the raw command for this tick.
func (m *Mapper) Map(left, right pose.ControllerPose) Command {
	cmd := Command{
		Linear:  m.Linear(m.Pitch(right)),
		Angular: m.Angular(m.Yaw(left)),
	}
	if m.logger != nil && !cmd.IsZero() {
		m.logger.Debugw("mapped", "linear", cmd.Linear, "angular", cmd.Angular)
	}
	return cmd
}

func clampAxis(v, limit float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-limit, math.Min(limit, v))
}

func deadzone(v, width float64) float64 {
	if math.Abs(v) < width {
		return 0
	}
	return v
}

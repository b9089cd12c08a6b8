// Package pose provides tracked-controller poses and analog input sources.
package pose

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Hand identifies a tracked controller.
type Hand string

// Controller handedness tags.
const (
	Left  Hand = "left"
	Right Hand = "right"
)

// Hands returns both hands in controller index order (0 = left, 1 = right).
func Hands() []Hand {
	return []Hand{Left, Right}
}

// ControllerPose is the world-space pose of a controller sampled for one tick.
type ControllerPose struct {
	Orientation quat.Number
	Position    r3.Vector
}

// Identity returns a pose at the origin with no rotation.
func Identity() ControllerPose {
	return ControllerPose{Orientation: quat.Number{Real: 1}}
}

// Normalize returns the pose with a unit-norm orientation.
// A zero or non-finite quaternion becomes the identity rotation.
func (p ControllerPose) Normalize() ControllerPose {
	n := quat.Abs(p.Orientation)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		p.Orientation = quat.Number{Real: 1}
		return p
	}
	p.Orientation = quat.Scale(1/n, p.Orientation)
	return p
}

// Provider exposes the world pose of each controller. It is polled once per tick.
type Provider interface {
	Pose(h Hand) (ControllerPose, bool)
}

// InputSource is one connected controller's analog button state.
type InputSource struct {
	Handedness Hand
	Buttons    []float64
}

// Button returns the analog value of button i, or 0 if it does not exist.
func (s InputSource) Button(i int) float64 {
	if i < 0 || i >= len(s.Buttons) {
		return 0
	}
	return s.Buttons[i]
}

// InputSources enumerates connected analog input sources.
type InputSources interface {
	InputSources() []InputSource
}

// Syncer is implemented by sources whose state moves with time. Sync is
// called once at the start of every tick; until the next Sync all reads
// return the same frame.
type Syncer interface {
	Sync()
}

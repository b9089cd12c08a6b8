package pose

import (
	"sync"

	"github.com/golang/geo/r3"
)

// Virtual is a pair of simulated controllers driven programmatically,
// e.g. from keyboard input when no headset is attached.
type Virtual struct {
	mu     sync.RWMutex
	angles map[Hand]Euler
	pos    map[Hand]r3.Vector
	grip   float64
	absent map[Hand]bool
}

// NewVirtual returns two level controllers held at chest height.
func NewVirtual() *Virtual {
	return &Virtual{
		angles: map[Hand]Euler{Left: {}, Right: {}},
		pos: map[Hand]r3.Vector{
			Left:  {X: -0.2, Y: 1.2, Z: -0.3},
			Right: {X: 0.2, Y: 1.2, Z: -0.3},
		},
		absent: map[Hand]bool{},
	}
}

// Pose implements Provider.
func (v *Virtual) Pose(h Hand) (ControllerPose, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	e, ok := v.angles[h]
	if !ok || v.absent[h] {
		return ControllerPose{}, false
	}
	return ControllerPose{Orientation: FromEulerYXZ(e), Position: v.pos[h]}, true
}

// InputSources implements InputSources. Button 1 of the right source is the grip.
func (v *Virtual) InputSources() []InputSource {
	v.mu.RLock()
	defer v.mu.RUnlock()
	var out []InputSource
	if !v.absent[Left] {
		out = append(out, InputSource{Handedness: Left, Buttons: []float64{0, 0}})
	}
	if !v.absent[Right] {
		out = append(out, InputSource{Handedness: Right, Buttons: []float64{0, v.grip}})
	}
	return out
}

// SetAngles sets the orientation of a controller.
func (v *Virtual) SetAngles(h Hand, e Euler) {
	v.mu.Lock()
	v.angles[h] = e
	v.mu.Unlock()
}

// Angles returns the current orientation of a controller.
func (v *Virtual) Angles(h Hand) Euler {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.angles[h]
}

// Nudge adds delta to a controller's orientation.
func (v *Virtual) Nudge(h Hand, delta Euler) Euler {
	v.mu.Lock()
	defer v.mu.Unlock()
	e := v.angles[h]
	e.X += delta.X
	e.Y += delta.Y
	e.Z += delta.Z
	v.angles[h] = e
	return e
}

// SetGrip sets the right-hand grip trigger value in [0, 1].
func (v *Virtual) SetGrip(value float64) {
	v.mu.Lock()
	v.grip = clamp(value, 0, 1)
	v.mu.Unlock()
}

// Grip returns the right-hand grip trigger value.
func (v *Virtual) Grip() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.grip
}

// SetTracked marks a controller as tracked or lost.
func (v *Virtual) SetTracked(h Hand, tracked bool) {
	v.mu.Lock()
	v.absent[h] = !tracked
	v.mu.Unlock()
}

// Center levels both controllers and releases the grip.
func (v *Virtual) Center() {
	v.mu.Lock()
	v.angles[Left] = Euler{}
	v.angles[Right] = Euler{}
	v.grip = 0
	v.mu.Unlock()
}

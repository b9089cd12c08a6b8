// Package control maps controller orientation to robot velocity commands.
//
// One Session is created per connection and advanced once per rendered
// frame. Each tick runs extract, map, smooth, clutch and watchdog in that
// order and yields the Command to transmit.
package control

// Command is a velocity pair for a differential-drive base.
// Linear is forward speed, Angular is yaw rate.
type Command struct {
	Linear  float64
	Angular float64
}

// Stop is the zero command sent whenever motion is not allowed.
var Stop = Command{}

// IsZero reports whether both components are exactly zero.
func (c Command) IsZero() bool {
	return c.Linear == 0 && c.Angular == 0
}

package control

import "github.com/Anil-CAI/vrteleop/pkg/pose"

// GripValue reads the clutch trigger: analog button index `button` of the
// right-hand input source. Missing sources or buttons read as 0. When several
// right-hand sources are connected the last one wins.
func GripValue(sources []pose.InputSource, button int) float64 {
	var v float64
	for _, src := range sources {
		if src.Handedness != pose.Right {
			continue
		}
		v = src.Button(button)
	}
	return v
}

// Engaged reports whether a grip value closes the clutch.
func (c Config) Engaged(grip float64) bool {
	return grip > c.ClutchThreshold
}

package control

// Smoother is a first-order exponential moving average per velocity axis.
// State only moves toward the raw input; there is no reset.
type Smoother struct {
	alpha float64
	state Command
}

// NewSmoother creates a smoother with blend factor alpha in (0, 1].
func NewSmoother(alpha float64) *Smoother {
	return &Smoother{alpha: alpha}
}

// Update blends raw into the state and returns the new state.
func (s *Smoother) Update(raw Command) Command {
	s.state.Linear += (raw.Linear - s.state.Linear) * s.alpha
	s.state.Angular += (raw.Angular - s.state.Angular) * s.alpha
	return s.state
}

// Value returns the current smoothed command.
func (s *Smoother) Value() Command {
	return s.state
}

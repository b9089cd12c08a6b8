package transport

import "github.com/Anil-CAI/vrteleop/pkg/control"

// Direct keyboard drive speeds, used to test the bridge without a headset.
const (
	KeyLinear  = 0.2
	KeyAngular = 1.0
)

// Keys is the set of held drive keys.
type Keys struct {
	Forward, Back, Left, Right bool
}

// KeyCommand converts held keys into a command. Opposing keys cancel.
func KeyCommand(k Keys) control.Command {
	var cmd control.Command
	if k.Forward {
		cmd.Linear += KeyLinear
	}
	if k.Back {
		cmd.Linear -= KeyLinear
	}
	if k.Left {
		cmd.Angular += KeyAngular
	}
	if k.Right {
		cmd.Angular -= KeyAngular
	}
	return cmd
}

// Package transport sends velocity commands to the robot bridge.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/Anil-CAI/vrteleop/pkg/control"
)

// TypeCmdVel is the message type of a velocity command.
const TypeCmdVel = "cmd_vel"

// ErrNotFinite is returned when a command component is NaN or infinite.
var ErrNotFinite = errors.New("command component is not finite")

// Message is the JSON wire form of a velocity command:
//
//	{"type":"cmd_vel","linear":0.3,"angular":-0.6}
type Message struct {
	Type    string  `json:"type"`
	Linear  float64 `json:"linear"`
	Angular float64 `json:"angular"`
}

// NewMessage wraps a command for the wire.
func NewMessage(cmd control.Command) Message {
	return Message{Type: TypeCmdVel, Linear: cmd.Linear, Angular: cmd.Angular}
}

// Command returns the velocity pair carried by the message.
func (m Message) Command() control.Command {
	return control.Command{Linear: m.Linear, Angular: m.Angular}
}

// IsCmdVel reports whether the message is a velocity command.
func (m Message) IsCmdVel() bool {
	return m.Type == TypeCmdVel
}

// Encode serializes a command as a single JSON text message.
func Encode(cmd control.Command) ([]byte, error) {
	if !finite(cmd.Linear) || !finite(cmd.Angular) {
		return nil, fmt.Errorf("encode %+v: %w", cmd, ErrNotFinite)
	}
	return json.Marshal(NewMessage(cmd))
}

// Decode parses a JSON text message. Unknown types decode without error;
// callers should check IsCmdVel.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	return m, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

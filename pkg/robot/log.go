package robot

import (
	"context"

	"github.com/edaniels/golog"
)

// LogSink logs every twist. Useful for dry runs without a robot.
type LogSink struct {
	Logger golog.Logger
}

// Publish implements Sink.
func (s LogSink) Publish(_ context.Context, t Twist) error {
	s.Logger.Infow("cmd_vel", "linear_x", t.Linear.X, "angular_z", t.Angular.Z)
	return nil
}

// Close implements Sink.
func (LogSink) Close() error { return nil }

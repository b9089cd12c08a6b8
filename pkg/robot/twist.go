// Package robot provides the robot-side outputs for received velocity commands.
package robot

import (
	"context"
	"errors"
	"fmt"
)

// Vector3 is a geometry_msgs/Vector3.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Twist is a geometry_msgs/Twist restricted to a planar base: forward
// speed on linear.x and yaw rate on angular.z.
type Twist struct {
	Linear  Vector3 `json:"linear"`
	Angular Vector3 `json:"angular"`
}

// NewTwist builds a planar twist.
func NewTwist(linear, angular float64) Twist {
	return Twist{Linear: Vector3{X: linear}, Angular: Vector3{Z: angular}}
}

// Sink receives twists from the bridge.
type Sink interface {
	Publish(ctx context.Context, t Twist) error
	Close() error
}

// MultiSink publishes to every sink and joins their errors.
type MultiSink []Sink

// Publish implements Sink.
func (m MultiSink) Publish(ctx context.Context, t Twist) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements Sink.
func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close sinks: %w", errors.Join(errs...))
	}
	return nil
}

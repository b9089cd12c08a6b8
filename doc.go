// Package vrteleop drives a differential mobile robot from the orientation
// of a pair of VR controllers.
//
// Yaw of the left controller steers, pitch of the right controller sets the
// forward speed, and the right grip acts as a dead-man clutch. Commands are
// smoothed, gated by a staleness watchdog and streamed as JSON cmd_vel
// messages over a WebSocket to a bridge running next to the robot.
//
// # Installation
//
//	go install github.com/Anil-CAI/vrteleop/cmd/vrteleop@latest
//
// # Usage
//
// Write a configuration file:
//
//	vrteleop setup
//
// On the robot, start the bridge:
//
//	vrteleop bridge --cert cert.pem --key key.pem
//
// Drive with simulated controllers, or replay a recorded session:
//
//	vrteleop drive
//	vrteleop drive --replay session.csv --loop
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/vrteleop: CLI with setup, drive and bridge commands
//   - pkg/pose: Controller poses, YXZ Euler decomposition, simulated controllers
//   - pkg/control: Axis mapping, smoothing, clutch, watchdog and the per-tick session
//   - pkg/transport: cmd_vel wire format and WebSocket/MQTT senders
//   - pkg/teleop: Frame-rate control loop
//   - pkg/record: CSV recording and replay of controller sessions
//   - pkg/bridge: Robot-side WebSocket server and headset page server
//   - pkg/robot: Twist sinks (log, MQTT, CAN, serial)
//   - pkg/config: Configuration file
package vrteleop

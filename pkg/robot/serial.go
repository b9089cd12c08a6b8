package robot

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"

	"go.bug.st/serial"
)

// SerialSink writes twists to a microcontroller as text lines:
//
//	V <linear m/s> <angular rad/s>\n
type SerialSink struct {
	mu   sync.Mutex
	port io.WriteCloser
}

// OpenSerialSink opens a serial port at the given baud rate.
func OpenSerialSink(name string, baud int) (*SerialSink, error) {
	if baud <= 0 {
		baud = 115200
	}
	port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	return &SerialSink{port: port}, nil
}

// NewSerialSink wraps an already open port.
func NewSerialSink(port io.WriteCloser) *SerialSink {
	return &SerialSink{port: port}
}

// Publish implements Sink.
func (s *SerialSink) Publish(_ context.Context, t Twist) error {
	line := FormatSerialLine(t)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.port, line); err != nil {
		return fmt.Errorf("write serial: %w", err)
	}
	return nil
}

// Close implements Sink.
func (s *SerialSink) Close() error {
	return s.port.Close()
}

// FormatSerialLine renders the serial drive line for t.
func FormatSerialLine(t Twist) string {
	return "V " + strconv.FormatFloat(t.Linear.X, 'f', 3, 64) + " " + strconv.FormatFloat(t.Angular.Z, 'f', 3, 64) + "\n"
}

// SerialPorts lists the serial ports present on the system.
func SerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}

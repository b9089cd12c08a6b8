package robot

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"net"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

// DefaultCANID is the frame ID of the drive command.
const DefaultCANID = 0x200

// FrameTransmitter sends CAN frames.
type FrameTransmitter interface {
	TransmitFrame(ctx context.Context, frame can.Frame) error
}

// CANSink sends twists to a motor controller as a 4-byte frame:
// int16 little-endian linear speed in mm/s followed by int16 yaw rate in mrad/s.
type CANSink struct {
	id   uint32
	conn net.Conn
	tx   FrameTransmitter
}

// DialCANSink opens a SocketCAN interface such as "can0" or "vcan0".
func DialCANSink(ctx context.Context, iface string, id uint32) (*CANSink, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial: %w", err)
	}
	return &CANSink{id: id, conn: conn, tx: socketcan.NewTransmitter(conn)}, nil
}

// NewCANSink wraps an existing transmitter.
func NewCANSink(tx FrameTransmitter, id uint32) *CANSink {
	return &CANSink{id: id, tx: tx}
}

// Publish implements Sink.
func (s *CANSink) Publish(ctx context.Context, t Twist) error {
	if err := s.tx.TransmitFrame(ctx, EncodeDriveFrame(s.id, t)); err != nil {
		return fmt.Errorf("transmit drive frame: %w", err)
	}
	return nil
}

// Close implements Sink.
func (s *CANSink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// EncodeDriveFrame packs a twist into a drive frame.
func EncodeDriveFrame(id uint32, t Twist) can.Frame {
	f := can.Frame{ID: id, Length: 4}
	binary.LittleEndian.PutUint16(f.Data[0:2], uint16(toInt16(t.Linear.X*1000)))
	binary.LittleEndian.PutUint16(f.Data[2:4], uint16(toInt16(t.Angular.Z*1000)))
	return f
}

// DecodeDriveFrame is the inverse of EncodeDriveFrame, at mm/s and mrad/s resolution.
func DecodeDriveFrame(f can.Frame) (Twist, error) {
	if f.Length < 4 {
		return Twist{}, fmt.Errorf("drive frame 0x%X: expected 4 bytes, got %d", f.ID, f.Length)
	}
	lin := int16(binary.LittleEndian.Uint16(f.Data[0:2]))
	ang := int16(binary.LittleEndian.Uint16(f.Data[2:4]))
	return NewTwist(float64(lin)/1000, float64(ang)/1000), nil
}

func toInt16(v float64) int16 {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Round(v)
	return int16(math.Max(math.MinInt16, math.Min(math.MaxInt16, v)))
}

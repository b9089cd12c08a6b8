package transport

import (
	"sync/atomic"

	"github.com/Anil-CAI/vrteleop/pkg/control"
)

// State is the lifecycle state of a connection.
type State int32

const (
	Connecting State = iota
	Open
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Sender transmits velocity commands, at most once each.
// Send never blocks on the network peer and never returns an error:
// commands are dropped when the connection is not open.
type Sender interface {
	Send(cmd control.Command)
	State() State
	Close() error
}

// Stats counts commands handed to a Sender.
type Stats struct {
	Sent    uint64
	Dropped uint64
}

type counters struct {
	sent    atomic.Uint64
	dropped atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{Sent: c.sent.Load(), Dropped: c.dropped.Load()}
}

type stateVar struct {
	v atomic.Int32
}

func (s *stateVar) load() State   { return State(s.v.Load()) }
func (s *stateVar) store(v State) { s.v.Store(int32(v)) }

// Discard is a Sender that drops everything. It reports Closed.
type Discard struct{}

func (Discard) Send(control.Command) {}
func (Discard) State() State         { return Closed }
func (Discard) Close() error         { return nil }

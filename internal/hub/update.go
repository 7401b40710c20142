package hub

import (
	"context"
	"errors"
	"time"

	"github.com/muurk/lightwave/internal/protocol"
	"github.com/muurk/lightwave/internal/state"
)

var (
	// ErrNotConnected is returned by operations issued while the hub has no
	// live session.
	ErrNotConnected = errors.New("hub not connected")

	// ErrAlreadyStarted is returned when Start is called twice
	ErrAlreadyStarted = errors.New("hub already started")
)

// Update is a state change reported by a hub.
type Update struct {
	// Hub names the connection the update arrived on ("legacy" or "smart")
	Hub string

	// Source identifies the device: "R1D2" for a legacy device, "R1" for a
	// room, a serial for heat-info reports, or a Link Plus feature id.
	Source string

	Kind    state.ChannelKind
	State   state.State
	Message protocol.Message
	Time    time.Time
}

// Listener receives updates for the identifiers it is registered under.
// OnUpdate is called from the hub's receive goroutine and must not block.
type Listener interface {
	OnUpdate(Update)
}

// Conn is a message transport to a hub. *transport.UDP and
// *transport.WebSocket implement it.
type Conn interface {
	Send(ctx context.Context, p protocol.Packet) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// fanout delivers u to the registered listener, if any, and to every observer.
func fanout(u Update, l Listener, observers []Listener) {
	if l != nil {
		l.OnUpdate(u)
	}
	for _, o := range observers {
		o.OnUpdate(u)
	}
}

package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/muurk/lightwave/internal/protocol"
)

var errConnClosed = errors.New("connection closed")

// fakeConn is an in-memory hub link. Sent packets appear on sent; lines
// pushed with reply are returned by Receive.
type fakeConn struct {
	sent   chan protocol.Packet
	inbox  chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		sent:   make(chan protocol.Packet, 32),
		inbox:  make(chan []byte, 32),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Send(ctx context.Context, p protocol.Packet) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	select {
	case c.sent <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeConn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.inbox:
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, errConnClosed
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) reply(line string) {
	c.inbox <- []byte(line)
}

// next returns the next non-control packet sent, failing the test after a
// second.
func (c *fakeConn) next(t *testing.T) protocol.Packet {
	t.Helper()
	for {
		select {
		case p := <-c.sent:
			if p.Control {
				continue
			}
			return p
		case <-time.After(time.Second):
			t.Fatal("nothing sent")
			return protocol.Packet{}
		}
	}
}

// recorder is a Listener that buffers every update it sees.
type recorder struct {
	updates chan Update
}

func newRecorder() *recorder {
	return &recorder{updates: make(chan Update, 64)}
}

func (r *recorder) OnUpdate(u Update) { r.updates <- u }

func (r *recorder) next(t *testing.T) Update {
	t.Helper()
	select {
	case u := <-r.updates:
		return u
	case <-time.After(time.Second):
		t.Fatal("no update received")
		return Update{}
	}
}

func (r *recorder) none(t *testing.T) {
	t.Helper()
	select {
	case u := <-r.updates:
		t.Fatalf("unexpected update %+v", u)
	case <-time.After(50 * time.Millisecond):
	}
}

// async runs fn in the background and returns its error channel.
func async(fn func() error) <-chan error {
	errc := make(chan error, 1)
	go func() { errc <- fn() }()
	return errc
}

func wait(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("operation did not complete")
		return nil
	}
}

func requireNoErr(t *testing.T, errc <-chan error) {
	t.Helper()
	require.NoError(t, wait(t, errc))
}

// Package transport carries encoded packets to and from the hubs.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/muurk/lightwave/internal/logging"
	"github.com/muurk/lightwave/internal/protocol"
)

// Legacy Link ports
const (
	LinkSendPort    = 9760
	LinkReceivePort = 9761
)

const maxDatagram = 2048

// ErrControlUnsupported is returned when a control packet is sent over a
// transport that has no control frames.
var ErrControlUnsupported = errors.New("transport has no control frames")

// UDP talks to a legacy Link. Commands go to the hub's command port and
// replies are broadcast by the hub to every client on the receive port.
type UDP struct {
	remote *net.UDPAddr
	send   *net.UDPConn
	recv   *net.UDPConn
}

// DialUDP opens the send socket towards host:sendPort and listens for
// replies on recvPort. A recvPort of 0 picks a free port.
func DialUDP(host string, sendPort, recvPort int) (*UDP, error) {
	remote, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, strconv.Itoa(sendPort)))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve hub address: %w", err)
	}

	send, err := net.DialUDP("udp4", nil, remote)
	if err != nil {
		return nil, fmt.Errorf("failed to open send socket: %w", err)
	}

	recv, err := net.ListenUDP("udp4", &net.UDPAddr{Port: recvPort})
	if err != nil {
		send.Close()
		return nil, fmt.Errorf("failed to listen on port %d: %w", recvPort, err)
	}

	logging.LogConnection("legacy", remote.String(), "opened")
	return &UDP{remote: remote, send: send, recv: recv}, nil
}

// Send writes one packet as a single datagram.
func (u *UDP) Send(ctx context.Context, p protocol.Packet) error {
	if p.Control {
		return ErrControlUnsupported
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := u.send.SetWriteDeadline(deadline); err != nil {
			return err
		}
	}

	logging.LogWireMessage("legacy", "send", p.Data)
	if _, err := u.send.Write(p.Data); err != nil {
		return fmt.Errorf("failed to send to %s: %w", u.remote, err)
	}
	return nil
}

// Receive blocks until a datagram arrives or the transport is closed.
func (u *UDP) Receive(ctx context.Context) ([]byte, error) {
	buf := make([]byte, maxDatagram)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := u.recv.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			return nil, err
		}
		n, from, err := u.recv.ReadFromUDP(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			return nil, err
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		logging.LogWireMessage("legacy", "receive "+from.String(), data)
		return data, nil
	}
}

// LocalReceiveAddr returns the address replies are read from
func (u *UDP) LocalReceiveAddr() *net.UDPAddr {
	return u.recv.LocalAddr().(*net.UDPAddr)
}

// Close closes both sockets.
func (u *UDP) Close() error {
	logging.LogConnection("legacy", u.remote.String(), "closed")
	return errors.Join(u.send.Close(), u.recv.Close())
}

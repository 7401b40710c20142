package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/muurk/lightwave/internal/logging"
	"github.com/muurk/lightwave/internal/protocol"
)

const (
	handshakeTimeout = 10 * time.Second
	controlTimeout   = 5 * time.Second
)

// WebSocket talks to the Link Plus server. Sends are serialised; Receive
// must only be called from one goroutine.
type WebSocket struct {
	url  string
	conn *websocket.Conn

	writeMu sync.Mutex
}

// DialWebSocket connects to url. header is sent with the upgrade request.
func DialWebSocket(ctx context.Context, url string, header http.Header) (*WebSocket, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s (HTTP %d): %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	logging.LogConnection("smart", url, "connected")
	return &WebSocket{url: url, conn: conn}, nil
}

// Send writes a text message, or a ping frame for control packets.
func (w *WebSocket) Send(ctx context.Context, p protocol.Packet) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(controlTimeout)
	}

	if p.Control {
		logging.Debug("Sending ping")
		return w.conn.WriteControl(websocket.PingMessage, nil, deadline)
	}

	if err := w.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	logging.LogWireMessage("smart", "send", p.Data)
	if err := w.conn.WriteMessage(websocket.TextMessage, p.Data); err != nil {
		return fmt.Errorf("failed to send WebSocket message: %w", err)
	}
	return nil
}

// Receive returns the next text message. Binary messages are skipped.
func (w *WebSocket) Receive(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		kind, data, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return nil, fmt.Errorf("WebSocket connection error: %w", err)
			}
			return nil, fmt.Errorf("connection closed: %w", err)
		}
		if kind != websocket.TextMessage {
			continue
		}
		logging.LogWireMessage("smart", "receive", data)
		return data, nil
	}
}

// Close sends a close frame and closes the socket.
func (w *WebSocket) Close() error {
	w.writeMu.Lock()
	err := w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	w.writeMu.Unlock()
	if err != nil {
		logging.Debug("Failed to send close message")
	}

	logging.LogConnection("smart", w.url, "closed")
	return w.conn.Close()
}

package protocol

import (
	"errors"
	"fmt"
)

// MessageType is the dispatch tag carried by every message. It is used to
// pick a decoder, to route inbound messages and to match replies.
type MessageType int

const (
	MessageTypeUnhandled MessageType = iota

	// Legacy text protocol
	MessageTypeOK
	MessageTypeError
	MessageTypeVersion
	MessageTypeHeatInfo
	MessageTypeOnOff
	MessageTypeDim
	MessageTypeRelay
	MessageTypeMood
	MessageTypeAllOff
	MessageTypeTargetTemperature
	MessageTypeHeatInfoRequest
	MessageTypeRegistration

	// Shared
	MessageTypePing

	// JSON protocol
	MessageTypeLogin
	MessageTypeLoginResult
	MessageTypeFeatureRead
	MessageTypeFeatureWrite
	MessageTypeFeatureEvent
	MessageTypeServerClosing
)

var messageTypeNames = map[MessageType]string{
	MessageTypeUnhandled:         "Unhandled",
	MessageTypeOK:                "OK",
	MessageTypeError:             "Error",
	MessageTypeVersion:           "Version",
	MessageTypeHeatInfo:          "HeatInfo",
	MessageTypeOnOff:             "OnOff",
	MessageTypeDim:               "Dim",
	MessageTypeRelay:             "Relay",
	MessageTypeMood:              "Mood",
	MessageTypeAllOff:            "AllOff",
	MessageTypeTargetTemperature: "TargetTemperature",
	MessageTypeHeatInfoRequest:   "HeatInfoRequest",
	MessageTypeRegistration:      "Registration",
	MessageTypePing:              "Ping",
	MessageTypeLogin:             "Login",
	MessageTypeLoginResult:       "LoginResult",
	MessageTypeFeatureRead:       "FeatureRead",
	MessageTypeFeatureWrite:      "FeatureWrite",
	MessageTypeFeatureEvent:      "FeatureEvent",
	MessageTypeServerClosing:     "ServerClosing",
}

// String returns a human-readable name for the message type
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("MessageType(%d)", int(t))
}

// MessageID is the correlation token shared by a request and its reply.
// Text protocol IDs are three digit strings; JSON transaction IDs are
// rendered in decimal.
type MessageID string

// Message is any decoded or constructible protocol message.
type Message interface {
	Type() MessageType
	MessageID() MessageID
	String() string
}

// Command is an outbound message. Function names the protocol function or
// operation the command carries; an empty function marks a request that
// receives no reply.
type Command interface {
	Message
	Function() string
}

// IsPriority reports whether a command must jump the queue. The hub accepts
// nothing else until it has been paired or the session authenticated.
func IsPriority(c Command) bool {
	switch c.Type() {
	case MessageTypeRegistration, MessageTypeLogin:
		return true
	default:
		return false
	}
}

// AwaitsAck reports whether the sender has to wait for a correlated reply.
func AwaitsAck(c Command) bool {
	return c.Function() != ""
}

// Packet is the encoded wire form of a command.
type Packet struct {
	ID   MessageID
	Type MessageType
	Data []byte

	// Control marks a transport-level keepalive with no payload
	Control bool
}

// String returns a debug representation of the packet
func (p Packet) String() string {
	if p.Control {
		return fmt.Sprintf("Packet{id=%s, type=%s, control}", p.ID, p.Type)
	}
	return fmt.Sprintf("Packet{id=%s, type=%s, len=%d}", p.ID, p.Type, len(p.Data))
}

// Codec converts between commands and one generation's wire format.
type Codec interface {
	Encode(c Command) (Packet, error)
	Decode(raw []byte) (Message, error)
	Classify(raw []byte) MessageType
}

// ErrUnsupported is returned when a command has no representation in a codec.
var ErrUnsupported = errors.New("command not supported by this protocol")

// DecodeError reports malformed inbound wire data. It is always returned,
// never raised, so that the receiver can log and discard the message.
type DecodeError struct {
	Reason string
	Raw    []byte
}

func (e *DecodeError) Error() string {
	raw := string(e.Raw)
	if len(raw) > 64 {
		raw = raw[:64] + "..."
	}
	return fmt.Sprintf("decode error: %s (input %q)", e.Reason, raw)
}

func decodeErr(raw []byte, format string, args ...any) *DecodeError {
	return &DecodeError{Reason: fmt.Sprintf(format, args...), Raw: raw}
}

// Error codes reported by the legacy hub in ERR lines
const (
	ErrCodeNotRegistered = 2
)

// ProtocolError is an explicit failure reported by the far end.
type ProtocolError struct {
	Code      int
	Text      string
	Retryable bool
}

func (e *ProtocolError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("protocol error %d", e.Code)
	}
	return fmt.Sprintf("protocol error %d: %s", e.Code, e.Text)
}

// NotRegistered reports whether the hub rejected a command because this
// client has not been paired yet.
func (e *ProtocolError) NotRegistered() bool {
	return e.Code == ErrCodeNotRegistered
}

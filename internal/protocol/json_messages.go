package protocol

import (
	"fmt"
	"strings"
)

// Envelope classes, operations and directions used by the Link Plus.
const (
	ClassUser    = "user"
	ClassFeature = "feature"
	ClassServer  = "server"

	OperationAuthenticate = "authenticate"
	OperationRead         = "read"
	OperationWrite        = "write"
	OperationEvent        = "event"
	OperationClosing      = "closing"

	DirectionRequest      = "request"
	DirectionResponse     = "response"
	DirectionNotification = "notification"
)

// LoginCommand authenticates the WebSocket session with a REST token.
type LoginCommand struct {
	TransactionID  int64
	Token          string
	ClientDeviceID string
}

func (c LoginCommand) Type() MessageType    { return MessageTypeLogin }
func (c LoginCommand) MessageID() MessageID { return TransactionMessageID(c.TransactionID) }
func (c LoginCommand) Function() string     { return OperationAuthenticate }

func (c LoginCommand) String() string {
	return fmt.Sprintf("Login{tx=%d, client=%s}", c.TransactionID, c.ClientDeviceID)
}

// FeatureReadCommand requests the current value of a feature.
type FeatureReadCommand struct {
	TransactionID int64
	FeatureID     string
}

func (c FeatureReadCommand) Type() MessageType    { return MessageTypeFeatureRead }
func (c FeatureReadCommand) MessageID() MessageID { return TransactionMessageID(c.TransactionID) }
func (c FeatureReadCommand) Function() string     { return OperationRead }

func (c FeatureReadCommand) String() string {
	return fmt.Sprintf("FeatureRead{tx=%d, feature=%s}", c.TransactionID, c.FeatureID)
}

// FeatureWriteCommand sets a feature to a raw value.
type FeatureWriteCommand struct {
	TransactionID int64
	FeatureID     string
	Value         int
}

func (c FeatureWriteCommand) Type() MessageType    { return MessageTypeFeatureWrite }
func (c FeatureWriteCommand) MessageID() MessageID { return TransactionMessageID(c.TransactionID) }
func (c FeatureWriteCommand) Function() string     { return OperationWrite }

func (c FeatureWriteCommand) String() string {
	return fmt.Sprintf("FeatureWrite{tx=%d, feature=%s, value=%d}", c.TransactionID, c.FeatureID, c.Value)
}

// ItemError is the error object attached to a failed item.
type ItemError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// LoginResult is the server's answer to a LoginCommand.
type LoginResult struct {
	TransactionID int64
	Success       bool
	Error         ItemError
}

func (m LoginResult) Type() MessageType    { return MessageTypeLoginResult }
func (m LoginResult) MessageID() MessageID { return TransactionMessageID(m.TransactionID) }

// Err returns nil for a successful login.
func (m LoginResult) Err() error {
	if m.Success {
		return nil
	}
	return &ProtocolError{Code: m.Error.Code, Text: m.Error.Message}
}

func (m LoginResult) String() string {
	return fmt.Sprintf("LoginResult{tx=%d, success=%v}", m.TransactionID, m.Success)
}

// FeatureDescriptor is the feature metadata the server may embed in a
// payload.
type FeatureDescriptor struct {
	FeatureID   string `json:"featureId"`
	DeviceID    string `json:"deviceId"`
	FeatureType string `json:"featureType"`
	Writable    bool   `json:"writable"`
}

// FeatureItem is one entry of a feature response or event.
type FeatureItem struct {
	ItemID     int64
	FeatureID  string
	Value      int
	HasValue   bool
	Success    bool
	Error      ItemError
	Descriptor *FeatureDescriptor
}

// Err returns the item failure, if any.
func (it FeatureItem) Err() error {
	if it.Success {
		return nil
	}
	return &ProtocolError{Code: it.Error.Code, Text: it.Error.Message}
}

// FeatureResult is a feature response or an unsolicited feature event.
type FeatureResult struct {
	TransactionID int64
	Operation     string
	Notification  bool
	Items         []FeatureItem
}

func (m FeatureResult) Type() MessageType {
	switch {
	case m.Notification || m.Operation == OperationEvent:
		return MessageTypeFeatureEvent
	case m.Operation == OperationWrite:
		return MessageTypeFeatureWrite
	default:
		return MessageTypeFeatureRead
	}
}

func (m FeatureResult) MessageID() MessageID { return TransactionMessageID(m.TransactionID) }

// Err returns the first failed item of a response.
func (m FeatureResult) Err() error {
	if m.Notification {
		return nil
	}
	for _, it := range m.Items {
		if err := it.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (m FeatureResult) String() string {
	ids := make([]string, 0, len(m.Items))
	for _, it := range m.Items {
		ids = append(ids, it.FeatureID)
	}
	return fmt.Sprintf("FeatureResult{tx=%d, op=%s, notification=%v, features=[%s]}",
		m.TransactionID, m.Operation, m.Notification, strings.Join(ids, ","))
}

// ServerClosing tells the client the server is about to drop the socket.
type ServerClosing struct {
	TransactionID int64
}

func (m ServerClosing) Type() MessageType    { return MessageTypeServerClosing }
func (m ServerClosing) MessageID() MessageID { return TransactionMessageID(m.TransactionID) }
func (m ServerClosing) String() string       { return fmt.Sprintf("ServerClosing{tx=%d}", m.TransactionID) }

// UnhandledMessage is a well formed envelope of a class or operation the
// bridge does not act on.
type UnhandledMessage struct {
	TransactionID int64
	Direction     string
	Class         string
	Operation     string
}

func (m UnhandledMessage) Type() MessageType    { return MessageTypeUnhandled }
func (m UnhandledMessage) MessageID() MessageID { return TransactionMessageID(m.TransactionID) }

func (m UnhandledMessage) String() string {
	return fmt.Sprintf("Unhandled{tx=%d, %s %s/%s}", m.TransactionID, m.Direction, m.Class, m.Operation)
}

package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// EnvelopeVersion is the only envelope version the Link Plus speaks
const EnvelopeVersion = 1

// envelope is the wire shape of every message. The version is echoed but
// never checked, so a server sending it as a string still decodes.
type envelope struct {
	Version       json.RawMessage `json:"version,omitempty"`
	SenderID      string          `json:"senderId"`
	TransactionID int64           `json:"transactionId"`
	Direction     string          `json:"direction"`
	Class         string          `json:"class"`
	Operation     string          `json:"operation"`
	Items         []envelopeItem  `json:"items"`
}

type envelopeItem struct {
	ItemID  int64           `json:"itemId"`
	Success *bool           `json:"success,omitempty"`
	Error   *ItemError      `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type loginPayload struct {
	Token          string `json:"token"`
	ClientDeviceID string `json:"clientDeviceId"`
}

type featurePayload struct {
	FeatureID string             `json:"featureId"`
	Value     *int               `json:"value,omitempty"`
	Feature   *FeatureDescriptor `json:"_feature,omitempty"`
}

// envelopeHeader is the subset of an envelope needed to classify it
type envelopeHeader struct {
	Direction string `json:"direction"`
	Class     string `json:"class"`
	Operation string `json:"operation"`
}

// JSONCodec encodes and decodes the JSON envelope protocol spoken by the
// Link Plus over its WebSocket. SenderID identifies this client and is
// stamped on every outbound envelope.
type JSONCodec struct {
	SenderID string
}

var _ Codec = JSONCodec{}

// Encode renders a command as an envelope. Ping becomes a control packet
// that the transport sends as a WebSocket ping frame.
func (c JSONCodec) Encode(cmd Command) (Packet, error) {
	env := envelope{
		Version:   json.RawMessage(strconv.Itoa(EnvelopeVersion)),
		SenderID:  c.SenderID,
		Direction: DirectionRequest,
	}

	var payload any
	switch m := cmd.(type) {
	case PingCommand:
		return Packet{ID: m.ID, Type: MessageTypePing, Control: true}, nil
	case LoginCommand:
		env.TransactionID = m.TransactionID
		env.Class, env.Operation = ClassUser, OperationAuthenticate
		payload = loginPayload{Token: m.Token, ClientDeviceID: m.ClientDeviceID}
	case FeatureReadCommand:
		if m.FeatureID == "" {
			return Packet{}, fmt.Errorf("feature read without feature id")
		}
		env.TransactionID = m.TransactionID
		env.Class, env.Operation = ClassFeature, OperationRead
		payload = featurePayload{FeatureID: m.FeatureID}
	case FeatureWriteCommand:
		if m.FeatureID == "" {
			return Packet{}, fmt.Errorf("feature write without feature id")
		}
		value := m.Value
		env.TransactionID = m.TransactionID
		env.Class, env.Operation = ClassFeature, OperationWrite
		payload = featurePayload{FeatureID: m.FeatureID, Value: &value}
	default:
		return Packet{}, fmt.Errorf("%w: %s", ErrUnsupported, cmd.Type())
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Packet{}, fmt.Errorf("failed to encode payload: %w", err)
	}
	env.Items = []envelopeItem{{ItemID: env.TransactionID, Payload: raw}}

	data, err := json.Marshal(env)
	if err != nil {
		return Packet{}, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return Packet{ID: cmd.MessageID(), Type: cmd.Type(), Data: data}, nil
}

// Classify reads only the envelope header.
func (JSONCodec) Classify(raw []byte) MessageType {
	var h envelopeHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		return MessageTypeUnhandled
	}
	return classifyEnvelope(h)
}

func classifyEnvelope(h envelopeHeader) MessageType {
	if h.Class == "" || h.Operation == "" {
		return MessageTypeUnhandled
	}
	switch h.Class {
	case ClassUser:
		if h.Operation != OperationAuthenticate {
			return MessageTypeUnhandled
		}
		if h.Direction == DirectionRequest {
			return MessageTypeLogin
		}
		return MessageTypeLoginResult
	case ClassFeature:
		switch {
		case h.Direction == DirectionNotification || h.Operation == OperationEvent:
			return MessageTypeFeatureEvent
		case h.Operation == OperationRead:
			return MessageTypeFeatureRead
		case h.Operation == OperationWrite:
			return MessageTypeFeatureWrite
		}
	case ClassServer:
		if h.Operation == OperationClosing {
			return MessageTypeServerClosing
		}
	}
	return MessageTypeUnhandled
}

// Decode parses one WebSocket text message. Envelopes of unknown or missing
// class or operation decode to UnhandledMessage; input that is not an
// envelope at all is a *DecodeError.
func (JSONCodec) Decode(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, decodeErr(raw, "invalid envelope: %v", err)
	}

	h := envelopeHeader{Direction: env.Direction, Class: env.Class, Operation: env.Operation}
	switch classifyEnvelope(h) {
	case MessageTypeLogin:
		item, err := singleItem(raw, env)
		if err != nil {
			return nil, err
		}
		var p loginPayload
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			return nil, decodeErr(raw, "invalid login payload: %v", err)
		}
		return LoginCommand{TransactionID: env.TransactionID, Token: p.Token, ClientDeviceID: p.ClientDeviceID}, nil

	case MessageTypeLoginResult:
		res := LoginResult{TransactionID: env.TransactionID}
		if len(env.Items) == 0 {
			res.Error = ItemError{Message: "response without items"}
			return res, nil
		}
		item := env.Items[0]
		res.Success = item.succeeded()
		if item.Error != nil {
			res.Error = *item.Error
		}
		return res, nil

	case MessageTypeFeatureRead, MessageTypeFeatureWrite, MessageTypeFeatureEvent:
		if env.Direction == DirectionRequest {
			return decodeFeatureRequest(raw, env)
		}
		return decodeFeatureResult(raw, env)

	case MessageTypeServerClosing:
		return ServerClosing{TransactionID: env.TransactionID}, nil

	default:
		return UnhandledMessage{
			TransactionID: env.TransactionID,
			Direction:     env.Direction,
			Class:         env.Class,
			Operation:     env.Operation,
		}, nil
	}
}

// succeeded reads the success flag, which the server sometimes omits. An
// item without the flag succeeded unless it carries an error.
func (it envelopeItem) succeeded() bool {
	if it.Success != nil {
		return *it.Success
	}
	return it.Error == nil
}

func singleItem(raw []byte, env envelope) (envelopeItem, error) {
	if len(env.Items) == 0 {
		return envelopeItem{}, decodeErr(raw, "%s/%s envelope without items", env.Class, env.Operation)
	}
	return env.Items[0], nil
}

func decodeFeatureRequest(raw []byte, env envelope) (Message, error) {
	item, err := singleItem(raw, env)
	if err != nil {
		return nil, err
	}
	var p featurePayload
	if err := json.Unmarshal(item.Payload, &p); err != nil {
		return nil, decodeErr(raw, "invalid feature payload: %v", err)
	}
	if p.FeatureID == "" {
		return nil, decodeErr(raw, "feature request without feature id")
	}

	switch env.Operation {
	case OperationRead:
		return FeatureReadCommand{TransactionID: env.TransactionID, FeatureID: p.FeatureID}, nil
	case OperationWrite:
		if p.Value == nil {
			return nil, decodeErr(raw, "feature write without value")
		}
		return FeatureWriteCommand{TransactionID: env.TransactionID, FeatureID: p.FeatureID, Value: *p.Value}, nil
	default:
		return nil, decodeErr(raw, "unexpected feature request %q", env.Operation)
	}
}

func decodeFeatureResult(raw []byte, env envelope) (Message, error) {
	res := FeatureResult{
		TransactionID: env.TransactionID,
		Operation:     env.Operation,
		Notification:  env.Direction == DirectionNotification,
		Items:         make([]FeatureItem, 0, len(env.Items)),
	}

	for _, item := range env.Items {
		fi := FeatureItem{ItemID: item.ItemID, Success: item.succeeded()}
		if item.Error != nil {
			fi.Error = *item.Error
		}
		if len(item.Payload) > 0 {
			var p featurePayload
			if err := json.Unmarshal(item.Payload, &p); err != nil {
				return nil, decodeErr(raw, "invalid feature payload: %v", err)
			}
			fi.FeatureID = p.FeatureID
			if p.Value != nil {
				fi.Value, fi.HasValue = *p.Value, true
			}
			fi.Descriptor = p.Feature
			if fi.FeatureID == "" && p.Feature != nil {
				fi.FeatureID = p.Feature.FeatureID
			}
		}
		res.Items = append(res.Items, fi)
	}

	if res.Notification && len(res.Items) == 0 {
		return nil, decodeErr(raw, "feature event without items")
	}
	return res, nil
}

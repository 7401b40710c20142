package protocol

import (
	"fmt"
	"strconv"
)

// Legacy function codes as they appear after the F marker
const (
	FunctionOn              = "F1"
	FunctionOff             = "F0"
	FunctionDim             = "FdP"
	FunctionMood            = "FmP"
	FunctionAllOff          = "Fa"
	FunctionTargetTemp      = "F*tP"
	FunctionHeatInfoRequest = "F*r"
	FunctionRegistration    = "F*p"
)

// RelayDirection is the single character function used by relay and
// inline switch devices.
type RelayDirection byte

const (
	RelayClose RelayDirection = '('
	RelayOpen  RelayDirection = ')'
	RelayStop  RelayDirection = '^'
)

// Valid reports whether d is one of the known relay functions
func (d RelayDirection) Valid() bool {
	return d == RelayClose || d == RelayOpen || d == RelayStop
}

func (d RelayDirection) String() string {
	switch d {
	case RelayClose:
		return "close"
	case RelayOpen:
		return "open"
	case RelayStop:
		return "stop"
	default:
		return fmt.Sprintf("RelayDirection(%q)", byte(d))
	}
}

// OnOffCommand switches a room/device on or off.
type OnOffCommand struct {
	ID     MessageID
	Room   int
	Device int
	On     bool
}

func (c OnOffCommand) Type() MessageType    { return MessageTypeOnOff }
func (c OnOffCommand) MessageID() MessageID { return c.ID }

func (c OnOffCommand) Function() string {
	if c.On {
		return FunctionOn
	}
	return FunctionOff
}

func (c OnOffCommand) String() string {
	return fmt.Sprintf("OnOff{id=%s, room=%d, device=%d, on=%v}", c.ID, c.Room, c.Device, c.On)
}

// DimCommand sets a dimmer. Level is on the device scale; use
// NewDimCommand to build one from a percentage.
type DimCommand struct {
	ID     MessageID
	Room   int
	Device int
	Level  int
}

func (c DimCommand) Type() MessageType    { return MessageTypeDim }
func (c DimCommand) MessageID() MessageID { return c.ID }
func (c DimCommand) Function() string     { return FunctionDim }

// Percent returns the level on the 0-100 scale
func (c DimCommand) Percent() int { return DeviceToPercent(c.Level) }

func (c DimCommand) String() string {
	return fmt.Sprintf("Dim{id=%s, room=%d, device=%d, level=%d}", c.ID, c.Room, c.Device, c.Level)
}

// RelayCommand drives a relay or motor output.
type RelayCommand struct {
	ID        MessageID
	Room      int
	Device    int
	Direction RelayDirection
}

func (c RelayCommand) Type() MessageType    { return MessageTypeRelay }
func (c RelayCommand) MessageID() MessageID { return c.ID }
func (c RelayCommand) Function() string     { return "F" + string(rune(c.Direction)) }

func (c RelayCommand) String() string {
	return fmt.Sprintf("Relay{id=%s, room=%d, device=%d, direction=%s}", c.ID, c.Room, c.Device, c.Direction)
}

// MoodCommand recalls a stored mood for a room.
type MoodCommand struct {
	ID   MessageID
	Room int
	Mood int
}

func (c MoodCommand) Type() MessageType    { return MessageTypeMood }
func (c MoodCommand) MessageID() MessageID { return c.ID }
func (c MoodCommand) Function() string     { return FunctionMood }

func (c MoodCommand) String() string {
	return fmt.Sprintf("Mood{id=%s, room=%d, mood=%d}", c.ID, c.Room, c.Mood)
}

// AllOffCommand switches off every device in a room.
type AllOffCommand struct {
	ID   MessageID
	Room int
}

func (c AllOffCommand) Type() MessageType    { return MessageTypeAllOff }
func (c AllOffCommand) MessageID() MessageID { return c.ID }
func (c AllOffCommand) Function() string     { return FunctionAllOff }

func (c AllOffCommand) String() string {
	return fmt.Sprintf("AllOff{id=%s, room=%d}", c.ID, c.Room)
}

// TargetTemperatureCommand sets the heating set point of a room.
type TargetTemperatureCommand struct {
	ID      MessageID
	Room    int
	Celsius float64
}

func (c TargetTemperatureCommand) Type() MessageType    { return MessageTypeTargetTemperature }
func (c TargetTemperatureCommand) MessageID() MessageID { return c.ID }
func (c TargetTemperatureCommand) Function() string     { return FunctionTargetTemp }

func (c TargetTemperatureCommand) String() string {
	return fmt.Sprintf("TargetTemperature{id=%s, room=%d, celsius=%.1f}", c.ID, c.Room, c.Celsius)
}

// HeatInfoRequest asks the heating devices of a room to report.
type HeatInfoRequest struct {
	ID   MessageID
	Room int
}

func (c HeatInfoRequest) Type() MessageType    { return MessageTypeHeatInfoRequest }
func (c HeatInfoRequest) MessageID() MessageID { return c.ID }
func (c HeatInfoRequest) Function() string     { return FunctionHeatInfoRequest }

func (c HeatInfoRequest) String() string {
	return fmt.Sprintf("HeatInfoRequest{id=%s, room=%d}", c.ID, c.Room)
}

// RegistrationCommand asks the hub to pair with this client. The hub only
// acknowledges it after the pairing button has been pressed.
type RegistrationCommand struct {
	ID MessageID
}

// NewRegistrationCommand builds the pairing request with the reserved ID.
func NewRegistrationCommand() RegistrationCommand {
	return RegistrationCommand{ID: RegistrationID}
}

func (c RegistrationCommand) Type() MessageType    { return MessageTypeRegistration }
func (c RegistrationCommand) MessageID() MessageID { return c.ID }
func (c RegistrationCommand) Function() string     { return FunctionRegistration }
func (c RegistrationCommand) String() string       { return fmt.Sprintf("Registration{id=%s}", c.ID) }

// PingCommand is a heartbeat. It carries no function and is never acknowledged.
type PingCommand struct {
	ID MessageID
}

func (c PingCommand) Type() MessageType    { return MessageTypePing }
func (c PingCommand) MessageID() MessageID { return c.ID }
func (c PingCommand) Function() string     { return "" }
func (c PingCommand) String() string       { return fmt.Sprintf("Ping{id=%s}", c.ID) }

// OKMessage acknowledges a command.
type OKMessage struct {
	ID MessageID
}

func (m OKMessage) Type() MessageType    { return MessageTypeOK }
func (m OKMessage) MessageID() MessageID { return m.ID }
func (m OKMessage) Function() string     { return "" }
func (m OKMessage) String() string       { return fmt.Sprintf("OK{id=%s}", m.ID) }

// ErrorMessage is a negative reply from the hub.
type ErrorMessage struct {
	ID   MessageID
	Code int
	Text string
}

func (m ErrorMessage) Type() MessageType    { return MessageTypeError }
func (m ErrorMessage) MessageID() MessageID { return m.ID }
func (m ErrorMessage) Function() string     { return "" }

// Err converts the reply into a ProtocolError. Only "not yet registered"
// is worth retrying, and only after pairing.
func (m ErrorMessage) Err() *ProtocolError {
	return &ProtocolError{Code: m.Code, Text: m.Text, Retryable: m.Code == ErrCodeNotRegistered}
}

func (m ErrorMessage) String() string {
	return fmt.Sprintf("Error{id=%s, code=%d, text=%q}", m.ID, m.Code, m.Text)
}

// VersionMessage carries the hub firmware version.
type VersionMessage struct {
	ID      MessageID
	Version string
}

func (m VersionMessage) Type() MessageType    { return MessageTypeVersion }
func (m VersionMessage) MessageID() MessageID { return m.ID }
func (m VersionMessage) Function() string     { return "" }

func (m VersionMessage) String() string {
	return fmt.Sprintf("Version{id=%s, version=%q}", m.ID, m.Version)
}

// HeatInfoMessage is the JSON status report broadcast by radiator valves,
// thermostats and energy monitors. It is keyed by device serial.
type HeatInfoMessage struct {
	Trans         int     `json:"trans"`
	MAC           string  `json:"mac"`
	Time          int64   `json:"time"`
	Product       string  `json:"prod"`
	Serial        string  `json:"serial"`
	Signal        int     `json:"signal"`
	Kind          string  `json:"type"`
	Battery       float64 `json:"batt"`
	Version       int     `json:"ver"`
	State         string  `json:"state"`
	CurrentTemp   float64 `json:"cTemp"`
	CurrentTarget float64 `json:"cTarg"`
	Output        int     `json:"output"`
	NextTarget    float64 `json:"nTarg"`
	NextSlot      string  `json:"nSlot"`
	Profile       int     `json:"prof"`
}

func (m HeatInfoMessage) Type() MessageType    { return MessageTypeHeatInfo }
func (m HeatInfoMessage) MessageID() MessageID { return MessageID(strconv.Itoa(m.Trans)) }
func (m HeatInfoMessage) Function() string     { return "" }

func (m HeatInfoMessage) String() string {
	return fmt.Sprintf("HeatInfo{serial=%s, prod=%s, temp=%.1f, target=%.1f, output=%d}",
		m.Serial, m.Product, m.CurrentTemp, m.CurrentTarget, m.Output)
}

package protocol

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
)

var textIDPattern = regexp.MustCompile(`^\d{3}$`)

// Encode renders a command as a legacy protocol line. Commands that have
// no text representation return ErrUnsupported.
func (TextCodec) Encode(c Command) (Packet, error) {
	line, err := encodeText(c)
	if err != nil {
		return Packet{}, err
	}
	return Packet{ID: c.MessageID(), Type: c.Type(), Data: []byte(line)}, nil
}

func encodeText(c Command) (string, error) {
	if _, ok := c.(HeatInfoMessage); !ok {
		if !textIDPattern.MatchString(string(c.MessageID())) {
			return "", fmt.Errorf("invalid message id %q: want three digits", c.MessageID())
		}
	}

	switch m := c.(type) {
	case OnOffCommand:
		if err := checkAddress(m.Room, m.Device); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s,!R%dD%d%s", m.ID, m.Room, m.Device, m.Function()), nil

	case DimCommand:
		if err := checkAddress(m.Room, m.Device); err != nil {
			return "", err
		}
		if m.Level < 0 || m.Level > DeviceLevelMax {
			return "", fmt.Errorf("dim level %d out of range 0-%d", m.Level, DeviceLevelMax)
		}
		if m.Level == 0 {
			return fmt.Sprintf("%s,!R%dD%d%s", m.ID, m.Room, m.Device, FunctionOff), nil
		}
		return fmt.Sprintf("%s,!R%dD%d%s%d", m.ID, m.Room, m.Device, FunctionDim, m.Level), nil

	case RelayCommand:
		if err := checkAddress(m.Room, m.Device); err != nil {
			return "", err
		}
		if !m.Direction.Valid() {
			return "", fmt.Errorf("invalid relay direction %q", byte(m.Direction))
		}
		return fmt.Sprintf("%s,!R%dD%d%s", m.ID, m.Room, m.Device, m.Function()), nil

	case MoodCommand:
		if err := checkRoom(m.Room); err != nil {
			return "", err
		}
		if m.Mood < 1 {
			return "", fmt.Errorf("invalid mood %d", m.Mood)
		}
		return fmt.Sprintf("%s,!R%d%s%d", m.ID, m.Room, FunctionMood, m.Mood), nil

	case AllOffCommand:
		if err := checkRoom(m.Room); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s,!R%d%s", m.ID, m.Room, FunctionAllOff), nil

	case TargetTemperatureCommand:
		if err := checkRoom(m.Room); err != nil {
			return "", err
		}
		temp, err := formatTenths(m.Celsius)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s,!R%d%s%s", m.ID, m.Room, FunctionTargetTemp, temp), nil

	case HeatInfoRequest:
		if err := checkRoom(m.Room); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s,!R%dDh%s", m.ID, m.Room, FunctionHeatInfoRequest), nil

	case RegistrationCommand:
		return fmt.Sprintf("%s,!%s", m.ID, FunctionRegistration), nil

	case OKMessage:
		return fmt.Sprintf("%s,OK", m.ID), nil

	case ErrorMessage:
		if m.Text == "" {
			return fmt.Sprintf("%s,ERR,%d", m.ID, m.Code), nil
		}
		return fmt.Sprintf("%s,ERR,%d,\"%s\"", m.ID, m.Code, m.Text), nil

	case VersionMessage:
		return fmt.Sprintf("%s,?V=\"%s\"", m.ID, m.Version), nil

	case HeatInfoMessage:
		body, err := json.Marshal(m)
		if err != nil {
			return "", fmt.Errorf("failed to encode heat info: %w", err)
		}
		return "*!" + string(body), nil

	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, c.Type())
	}
}

// formatTenths renders a set point at the 0.1 °C resolution of the wire
// format. A value that would not parse back unchanged is rejected.
func formatTenths(celsius float64) (string, error) {
	if math.IsNaN(celsius) || math.IsInf(celsius, 0) || math.Signbit(celsius) {
		return "", fmt.Errorf("invalid target temperature %v", celsius)
	}
	s := strconv.FormatFloat(celsius, 'f', 1, 64)
	if back, _ := strconv.ParseFloat(s, 64); back != celsius {
		return "", fmt.Errorf("target temperature %v is not a multiple of 0.1", celsius)
	}
	return s, nil
}

func checkRoom(room int) error {
	if room < 1 {
		return fmt.Errorf("invalid room %d", room)
	}
	return nil
}

func checkAddress(room, device int) error {
	if err := checkRoom(room); err != nil {
		return err
	}
	if device < 1 {
		return fmt.Errorf("invalid device %d", device)
	}
	return nil
}

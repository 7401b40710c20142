package state

import (
	"fmt"
	"strconv"
	"time"
)

// State is a decoded value. Implementations are comparable.
type State interface {
	String() string
}

// OnOffType is a boolean switch state.
type OnOffType bool

const (
	On  OnOffType = true
	Off OnOffType = false
)

func (s OnOffType) String() string {
	if s {
		return "ON"
	}
	return "OFF"
}

// DecimalType is a plain or scaled number.
type DecimalType float64

func (s DecimalType) String() string {
	return strconv.FormatFloat(float64(s), 'f', -1, 64)
}

// PercentType is an integer between 0 and 100.
type PercentType int

func (s PercentType) String() string { return strconv.Itoa(int(s)) }

// HSBType is a color as hue in degrees and saturation and brightness in
// percent.
type HSBType struct {
	Hue        int
	Saturation int
	Brightness int
}

func (s HSBType) String() string {
	return fmt.Sprintf("%d,%d,%d", s.Hue, s.Saturation, s.Brightness)
}

// DateTimeLayout is the rendering used for DateTimeType
const DateTimeLayout = "2006-01-02T15:04:05"

// DateTimeType is a local date and time.
type DateTimeType struct {
	time.Time
}

func (s DateTimeType) String() string { return s.Format(DateTimeLayout) }

// StringType is a value rendered as text.
type StringType string

func (s StringType) String() string { return string(s) }

// UnsetType marks a value the device reported as absent.
type UnsetType struct{}

// Unset is the single UnsetType value
var Unset = UnsetType{}

func (UnsetType) String() string { return "UNSET" }

// UnsupportedType is returned for kinds outside the catalog.
type UnsupportedType struct {
	Kind ChannelKind
}

func (s UnsupportedType) String() string {
	return fmt.Sprintf("UNSUPPORTED(%s)", s.Kind)
}

// Float returns a numeric rendering of s for metrics and exports. Colors,
// strings and unset values have none.
func Float(s State) (float64, bool) {
	switch v := s.(type) {
	case OnOffType:
		if v {
			return 1, true
		}
		return 0, true
	case DecimalType:
		return float64(v), true
	case PercentType:
		return float64(v), true
	case DateTimeType:
		return float64(v.Unix()), true
	case StringType:
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

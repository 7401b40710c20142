package state

import (
	"math"
	"strconv"
	"time"
)

const secondsPerDay = 24 * 60 * 60

// Decoder converts raw values. Now supplies the date used for time-of-day
// kinds; nil means time.Now.
type Decoder struct {
	Now func() time.Time
}

var defaultDecoder = Decoder{}

// Decode converts raw using the wall clock for time-of-day kinds.
func Decode(kind ChannelKind, raw int64) State {
	return defaultDecoder.Decode(kind, raw)
}

// DecodeNamed decodes by feature type name. Unknown names are unsupported.
func DecodeNamed(name string, raw int64) State {
	kind, ok := ParseChannelKind(name)
	if !ok {
		return UnsupportedType{Kind: KindUnknown}
	}
	return Decode(kind, raw)
}

// Decode converts raw according to kind.
func (d Decoder) Decode(kind ChannelKind, raw int64) State {
	switch kind {
	case KindSwitch, KindDiagnostics, KindProtection, KindHeatCall, KindOutletInUse, KindIdentify:
		return OnOffType(raw == 1)

	case KindPower, KindBatteryLevel, KindSignalStrength:
		return DecimalType(raw)

	case KindTemperature, KindTargetTemperature, KindVoltage:
		return DecimalType(float64(raw) / 10)

	case KindEnergy, KindDay, KindMonth, KindYear, KindTimeZone:
		return DecimalType(float64(raw) / 1000)

	case KindLatitude, KindLongitude:
		return StringType(strconv.FormatFloat(float64(raw)/1_000_000, 'f', -1, 64))

	case KindDimLevel, KindValveLevel:
		return PercentType(min(max(raw, 0), 100))

	case KindRGBColor:
		return decodeColor(raw)

	case KindDate:
		return decodeDate(raw)

	case KindTime, KindDuskTime, KindDawnTime:
		return d.decodeTimeOfDay(raw)

	case KindWeekday:
		return decodeWeekday(raw)

	default:
		return UnsupportedType{Kind: kind}
	}
}

func decodeColor(raw int64) State {
	r := float64((raw >> 16) & 0xFF)
	g := float64((raw >> 8) & 0xFF)
	b := float64(raw & 0xFF)

	hi := math.Max(r, math.Max(g, b))
	lo := math.Min(r, math.Min(g, b))
	delta := hi - lo

	var hue float64
	switch {
	case delta == 0:
		hue = 0
	case hi == r:
		hue = 60 * math.Mod((g-b)/delta, 6)
	case hi == g:
		hue = 60 * ((b-r)/delta + 2)
	default:
		hue = 60 * ((r-g)/delta + 4)
	}
	if hue < 0 {
		hue += 360
	}

	var saturation float64
	if hi > 0 {
		saturation = delta / hi * 100
	}
	brightness := hi / 255 * 100

	h := int(math.Round(hue))
	if h == 360 {
		h = 0
	}
	return HSBType{
		Hue:        h,
		Saturation: int(math.Round(saturation)),
		Brightness: int(math.Round(brightness)),
	}
}

// decodeDate unpacks a date whose hex digits read as YYY M(M) DD, for
// example 0x7E5010C for 2021-01-12.
func decodeDate(raw int64) State {
	if raw <= 0 {
		return Unset
	}
	hex := strconv.FormatInt(raw, 16)
	if len(hex) < 6 || len(hex) > 7 {
		return Unset
	}

	year, err := strconv.ParseInt(hex[:3], 16, 64)
	if err != nil {
		return Unset
	}
	month, err := strconv.ParseInt(hex[3:len(hex)-2], 16, 64)
	if err != nil {
		return Unset
	}
	day, err := strconv.ParseInt(hex[len(hex)-2:], 16, 64)
	if err != nil {
		return Unset
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return Unset
	}

	return DateTimeType{time.Date(int(year), time.Month(month), int(day), 0, 0, 0, 0, time.Local)}
}

func (d Decoder) decodeTimeOfDay(raw int64) State {
	if raw < 0 || raw >= secondsPerDay {
		return Unset
	}
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	today := now()

	hours := raw / 3600
	minutes := (raw / 60) % 60
	seconds := raw % 60
	return DateTimeType{time.Date(today.Year(), today.Month(), today.Day(),
		int(hours), int(minutes), int(seconds), 0, today.Location())}
}

var weekdays = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func decodeWeekday(raw int64) State {
	if raw < 1 || raw > int64(len(weekdays)) {
		return Unset
	}
	return StringType(weekdays[raw-1])
}

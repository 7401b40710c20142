package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeScalars(t *testing.T) {
	tests := []struct {
		name string
		kind ChannelKind
		raw  int64
		want State
	}{
		{"switch on", KindSwitch, 1, On},
		{"switch off", KindSwitch, 0, Off},
		{"switch other value", KindSwitch, 2, Off},
		{"protection", KindProtection, 1, On},
		{"heat call", KindHeatCall, 0, Off},
		{"power", KindPower, 1250, DecimalType(1250)},
		{"battery", KindBatteryLevel, 87, DecimalType(87)},
		{"signal", KindSignalStrength, -61, DecimalType(-61)},
		{"temperature", KindTemperature, 215, DecimalType(21.5)},
		{"target temperature", KindTargetTemperature, 180, DecimalType(18)},
		{"voltage", KindVoltage, 2401, DecimalType(240.1)},
		{"energy", KindEnergy, 15500, DecimalType(15.5)},
		{"timezone", KindTimeZone, 1000, DecimalType(1)},
		{"latitude", KindLatitude, 51507351, StringType("51.507351")},
		{"longitude", KindLongitude, -127758, StringType("-0.127758")},
		{"dim level", KindDimLevel, 40, PercentType(40)},
		{"valve level clamped", KindValveLevel, 140, PercentType(100)},
		{"weekday unset", KindWeekday, 0, Unset},
		{"weekday", KindWeekday, 3, StringType("Wednesday")},
		{"weekday out of range", KindWeekday, 8, Unset},
		{"unknown kind", KindUnknown, 1, UnsupportedType{Kind: KindUnknown}},
		{"kind outside catalog", kindCount + 5, 1, UnsupportedType{Kind: kindCount + 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decode(tt.kind, tt.raw))
		})
	}
}

func TestDecodeColor(t *testing.T) {
	tests := []struct {
		raw  int64
		want HSBType
	}{
		{0xFF8000, HSBType{Hue: 30, Saturation: 100, Brightness: 100}},
		{0xFF0000, HSBType{Hue: 0, Saturation: 100, Brightness: 100}},
		{0x00FF00, HSBType{Hue: 120, Saturation: 100, Brightness: 100}},
		{0x0000FF, HSBType{Hue: 240, Saturation: 100, Brightness: 100}},
		{0xFF00FF, HSBType{Hue: 300, Saturation: 100, Brightness: 100}},
		{0x000000, HSBType{}},
		{0x808080, HSBType{Hue: 0, Saturation: 0, Brightness: 50}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Decode(KindRGBColor, tt.raw), "color %06X", tt.raw)
	}
}

func TestDecodeDate(t *testing.T) {
	got := Decode(KindDate, 0x7E5010C)
	require.IsType(t, DateTimeType{}, got)
	assert.Equal(t, "2021-01-12T00:00:00", got.String())

	got = Decode(KindDate, 0x7E80C1F)
	assert.Equal(t, "2024-12-31T00:00:00", got.String())

	got = Decode(KindDate, 0x7E8305)
	assert.Equal(t, "2024-03-05T00:00:00", got.String())

	assert.Equal(t, Unset, Decode(KindDate, 0))
	assert.Equal(t, Unset, Decode(KindDate, 0x7E5))
	assert.Equal(t, Unset, Decode(KindDate, 0x7E50D0C), "month 13")
	assert.Equal(t, Unset, Decode(KindDate, 0x7E50100), "day 0")
}

func TestDecodeTimeOfDay(t *testing.T) {
	fixed := time.Date(2024, time.June, 3, 22, 14, 0, 0, time.UTC)
	d := Decoder{Now: func() time.Time { return fixed }}

	got := d.Decode(KindDuskTime, 21*3600+5*60+9)
	assert.Equal(t, "2024-06-03T21:05:09", got.String())

	got = d.Decode(KindTime, 0)
	assert.Equal(t, "2024-06-03T00:00:00", got.String())

	assert.Equal(t, Unset, d.Decode(KindDawnTime, secondsPerDay))
	assert.Equal(t, Unset, d.Decode(KindDawnTime, -1))
}

func TestDecodeIsTotal(t *testing.T) {
	for _, kind := range Kinds() {
		got := Decode(kind, 1)
		_, unsupported := got.(UnsupportedType)
		assert.False(t, unsupported, "kind %s is not handled", kind)
	}
}

func TestParseChannelKind(t *testing.T) {
	for _, kind := range Kinds() {
		parsed, ok := ParseChannelKind(kind.String())
		require.True(t, ok, "kind %s has no name", kind)
		assert.Equal(t, kind, parsed)
	}

	_, ok := ParseChannelKind("flux")
	assert.False(t, ok)
	assert.Equal(t, UnsupportedType{Kind: KindUnknown}, DecodeNamed("flux", 1))
	assert.Equal(t, On, DecodeNamed("switch", 1))
}

func TestFloat(t *testing.T) {
	tests := []struct {
		state State
		want  float64
		ok    bool
	}{
		{On, 1, true},
		{Off, 0, true},
		{DecimalType(21.5), 21.5, true},
		{PercentType(40), 40, true},
		{StringType("51.5"), 51.5, true},
		{StringType("Monday"), 0, false},
		{HSBType{Hue: 1}, 0, false},
		{Unset, 0, false},
	}
	for _, tt := range tests {
		got, ok := Float(tt.state)
		assert.Equal(t, tt.ok, ok, "%v", tt.state)
		assert.Equal(t, tt.want, got, "%v", tt.state)
	}
}

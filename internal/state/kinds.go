// Package state converts raw integer feature values into typed states.
//
// The catalog of ChannelKinds is closed: Decode handles every kind and
// returns UnsupportedType for anything outside it. Decoding never fails;
// values that cannot be interpreted yield Unset.
package state

import "fmt"

// ChannelKind is the semantic type of a feature or channel.
type ChannelKind int

const (
	KindUnknown ChannelKind = iota

	KindSwitch
	KindDiagnostics
	KindProtection
	KindHeatCall
	KindOutletInUse
	KindIdentify

	KindPower
	KindBatteryLevel
	KindSignalStrength

	KindTemperature
	KindTargetTemperature
	KindVoltage

	KindEnergy
	KindDay
	KindMonth
	KindYear
	KindTimeZone

	KindLatitude
	KindLongitude

	KindDimLevel
	KindValveLevel

	KindRGBColor
	KindDate
	KindTime
	KindDuskTime
	KindDawnTime
	KindWeekday

	kindCount
)

// Names follow the Link Plus featureType strings.
var kindNames = map[ChannelKind]string{
	KindSwitch:            "switch",
	KindDiagnostics:       "diagnostics",
	KindProtection:        "protection",
	KindHeatCall:          "heatState",
	KindOutletInUse:       "outletInUse",
	KindIdentify:          "identify",
	KindPower:             "power",
	KindBatteryLevel:      "batteryLevel",
	KindSignalStrength:    "rssi",
	KindTemperature:       "temperature",
	KindTargetTemperature: "targetTemperature",
	KindVoltage:           "voltage",
	KindEnergy:            "energy",
	KindDay:               "day",
	KindMonth:             "month",
	KindYear:              "year",
	KindTimeZone:          "timeZone",
	KindLatitude:          "locationLatitude",
	KindLongitude:         "locationLongitude",
	KindDimLevel:          "dimLevel",
	KindValveLevel:        "valveLevel",
	KindRGBColor:          "rgbColor",
	KindDate:              "date",
	KindTime:              "time",
	KindDuskTime:          "duskTime",
	KindDawnTime:          "dawnTime",
	KindWeekday:           "weekday",
}

var kindsByName = func() map[string]ChannelKind {
	m := make(map[string]ChannelKind, len(kindNames))
	for k, name := range kindNames {
		m[name] = k
	}
	return m
}()

func (k ChannelKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ChannelKind(%d)", int(k))
}

// ParseChannelKind looks up a kind by its feature type name.
func ParseChannelKind(name string) (ChannelKind, bool) {
	k, ok := kindsByName[name]
	return k, ok
}

// Kinds returns every kind in the catalog, in declaration order.
func Kinds() []ChannelKind {
	out := make([]ChannelKind, 0, kindCount-1)
	for k := KindUnknown + 1; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

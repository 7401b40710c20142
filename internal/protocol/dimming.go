package protocol

import "math"

// DeviceLevelMax is the top of the legacy dimmer scale. Levels are usually
// quoted as 0-31, but p*32/100 puts 100% on 32 and the hub accepts FdP32,
// so the scale here is 0-32 and full brightness survives a round trip.
const DeviceLevelMax = 32

// PercentToDevice converts a 0-100 brightness into the hub's 0-32 scale
// with round(p*32/100). Out of range input is clamped.
func PercentToDevice(percent int) int {
	percent = clamp(percent, 0, 100)
	return int(math.Round(float64(percent) * DeviceLevelMax / 100))
}

// DeviceToPercent converts a hub dimmer level back to 0-100.
func DeviceToPercent(level int) int {
	level = clamp(level, 0, DeviceLevelMax)
	return clamp(int(math.Round(float64(level)*100/DeviceLevelMax)), 0, 100)
}

// NewDimCommand builds a dim command from a percentage. A level that
// rounds to zero is sent as an off command, matching what the hub echoes.
func NewDimCommand(id MessageID, room, device, percent int) DimCommand {
	return DimCommand{ID: id, Room: room, Device: device, Level: PercentToDevice(percent)}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

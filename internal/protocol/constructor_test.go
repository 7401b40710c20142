package protocol

import (
	"errors"
	"math"
	"testing"
)

func TestTextCodecEncode(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{"switch on", OnOffCommand{ID: "101", Room: 1, Device: 2, On: true}, "101,!R1D2F1"},
		{"switch off", OnOffCommand{ID: "102", Room: 1, Device: 2}, "102,!R1D2F0"},
		{"dim", DimCommand{ID: "103", Room: 4, Device: 1, Level: 16}, "103,!R4D1FdP16"},
		{"dim to zero is off", DimCommand{ID: "104", Room: 4, Device: 1, Level: 0}, "104,!R4D1F0"},
		{"relay close", RelayCommand{ID: "105", Room: 2, Device: 3, Direction: RelayClose}, "105,!R2D3F("},
		{"mood", MoodCommand{ID: "106", Room: 2, Mood: 1}, "106,!R2FmP1"},
		{"all off", AllOffCommand{ID: "107", Room: 2}, "107,!R2Fa"},
		{"target temperature", TargetTemperatureCommand{ID: "108", Room: 3, Celsius: 19}, "108,!R3F*tP19.0"},
		{"heat info request", HeatInfoRequest{ID: "109", Room: 3}, "109,!R3DhF*r"},
		{"registration", NewRegistrationCommand(), "000,!F*p"},
		{"ack", OKMessage{ID: "110"}, "110,OK"},
		{"error", ErrorMessage{ID: "111", Code: 2, Text: "Not yet registered"}, `111,ERR,2,"Not yet registered"`},
		{"version", VersionMessage{ID: "112", Version: "U2.94D"}, `112,?V="U2.94D"`},
	}

	codec := TextCodec{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkt, err := codec.Encode(tt.cmd)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if string(pkt.Data) != tt.want {
				t.Errorf("Encode() = %q, want %q", pkt.Data, tt.want)
			}
			if pkt.ID != tt.cmd.MessageID() {
				t.Errorf("packet id = %s, want %s", pkt.ID, tt.cmd.MessageID())
			}
			if pkt.Type != tt.cmd.Type() {
				t.Errorf("packet type = %s, want %s", pkt.Type, tt.cmd.Type())
			}
		})
	}
}

func TestTextCodecEncodeRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
	}{
		{"short id", OnOffCommand{ID: "1", Room: 1, Device: 1}},
		{"zero room", OnOffCommand{ID: "100", Room: 0, Device: 1}},
		{"zero device", DimCommand{ID: "100", Room: 1, Device: 0, Level: 3}},
		{"dim level too high", DimCommand{ID: "100", Room: 1, Device: 1, Level: DeviceLevelMax + 1}},
		{"bad relay direction", RelayCommand{ID: "100", Room: 1, Device: 1, Direction: 'x'}},
		{"mood zero", MoodCommand{ID: "100", Room: 1}},
		{"negative temperature", TargetTemperatureCommand{ID: "100", Room: 1, Celsius: -1}},
		{"negative zero temperature", TargetTemperatureCommand{ID: "100", Room: 1, Celsius: math.Copysign(0, -1)}},
		{"temperature finer than a tenth", TargetTemperatureCommand{ID: "100", Room: 1, Celsius: 21.25}},
		{"temperature NaN", TargetTemperatureCommand{ID: "100", Room: 1, Celsius: math.NaN()}},
		{"temperature infinite", TargetTemperatureCommand{ID: "100", Room: 1, Celsius: math.Inf(1)}},
		{"json command", FeatureReadCommand{TransactionID: 1, FeatureID: "f"}},
	}

	codec := TextCodec{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := codec.Encode(tt.cmd); err == nil {
				t.Errorf("Encode(%v) succeeded, want error", tt.cmd)
			}
		})
	}
}

func TestTextCodecPingUnsupported(t *testing.T) {
	_, err := TextCodec{}.Encode(PingCommand{ID: "100"})
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("Encode(ping) error = %v, want ErrUnsupported", err)
	}
}

func TestTextCodecRoundTrip(t *testing.T) {
	cmds := []Command{
		OnOffCommand{ID: "100", Room: 1, Device: 1, On: true},
		OnOffCommand{ID: "999", Room: 8, Device: 16},
		RelayCommand{ID: "200", Room: 2, Device: 5, Direction: RelayClose},
		RelayCommand{ID: "201", Room: 2, Device: 5, Direction: RelayOpen},
		RelayCommand{ID: "202", Room: 2, Device: 5, Direction: RelayStop},
		MoodCommand{ID: "300", Room: 3, Mood: 2},
		AllOffCommand{ID: "301", Room: 3},
		TargetTemperatureCommand{ID: "400", Room: 4, Celsius: 21.5},
		TargetTemperatureCommand{ID: "401", Room: 4, Celsius: 7},
		TargetTemperatureCommand{ID: "403", Room: 4, Celsius: 20.3},
		TargetTemperatureCommand{ID: "404", Room: 4, Celsius: 0},
		HeatInfoRequest{ID: "402", Room: 4},
		NewRegistrationCommand(),
		OKMessage{ID: "500"},
		ErrorMessage{ID: "501", Code: 2, Text: `Not yet registered "pair"`},
		ErrorMessage{ID: "502", Code: 6},
		VersionMessage{ID: "503", Version: "U2.94D"},
		HeatInfoMessage{Trans: 77, Serial: "0A1B2C", Product: "valve", CurrentTemp: 20.5, CurrentTarget: 21, Output: 40, Battery: 2.9},
	}
	for level := 1; level <= DeviceLevelMax; level++ {
		cmds = append(cmds, DimCommand{ID: "600", Room: 1, Device: 2, Level: level})
	}

	codec := TextCodec{}
	for _, cmd := range cmds {
		pkt, err := codec.Encode(cmd)
		if err != nil {
			t.Fatalf("Encode(%v) error = %v", cmd, err)
		}
		got, err := codec.Decode(pkt.Data)
		if err != nil {
			t.Fatalf("Decode(%q) error = %v", pkt.Data, err)
		}
		if got != Message(cmd) {
			t.Errorf("round trip of %v produced %v (wire %q)", cmd, got, pkt.Data)
		}
	}
}

func TestDimPercentConversion(t *testing.T) {
	tests := []struct {
		percent int
		device  int
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{50, 16},
		{99, 32},
		{100, 32},
		{150, 32},
		{-5, 0},
	}
	for _, tt := range tests {
		if got := PercentToDevice(tt.percent); got != tt.device {
			t.Errorf("PercentToDevice(%d) = %d, want %d", tt.percent, got, tt.device)
		}
	}

	if got := DeviceToPercent(16); got != 50 {
		t.Errorf("DeviceToPercent(16) = %d, want 50", got)
	}
	if got := DeviceToPercent(DeviceLevelMax); got != 100 {
		t.Errorf("DeviceToPercent(max) = %d, want 100", got)
	}
	if got := DeviceToPercent(40); got != 100 {
		t.Errorf("DeviceToPercent(40) = %d, want clamped 100", got)
	}
}

// Percentages survive encode and decode only to within the rounding of
// the coarser device scale.
func TestDimPercentRoundTripIsLossy(t *testing.T) {
	codec := TextCodec{}
	for percent := 2; percent <= 100; percent++ {
		cmd := NewDimCommand("100", 1, 1, percent)
		pkt, err := codec.Encode(cmd)
		if err != nil {
			t.Fatalf("Encode(%d%%) error = %v", percent, err)
		}
		msg, err := codec.Decode(pkt.Data)
		if err != nil {
			t.Fatalf("Decode(%q) error = %v", pkt.Data, err)
		}
		dim, ok := msg.(DimCommand)
		if !ok {
			t.Fatalf("Decode(%q) = %T, want DimCommand", pkt.Data, msg)
		}

		expected := int(math.Round(math.Round(float64(percent)*32/100) * 100 / 32))
		got := dim.Percent()
		if got != expected {
			t.Errorf("percent %d came back as %d, want %d", percent, got, expected)
		}
		if diff := got - percent; diff < -2 || diff > 2 {
			t.Errorf("percent %d drifted to %d", percent, got)
		}
	}
}

func TestDimZeroPercentEncodesOff(t *testing.T) {
	pkt, err := TextCodec{}.Encode(NewDimCommand("100", 1, 1, 0))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	msg, err := TextCodec{}.Decode(pkt.Data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if want := (OnOffCommand{ID: "100", Room: 1, Device: 1}); msg != Message(want) {
		t.Errorf("decoded %v, want %v", msg, want)
	}
}

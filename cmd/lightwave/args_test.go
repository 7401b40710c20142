package main

import (
	"testing"
	"time"

	"github.com/muurk/lightwave/internal/cloud"
	"github.com/muurk/lightwave/internal/config"
	"github.com/muurk/lightwave/internal/hub"
	"github.com/muurk/lightwave/internal/protocol"
	"github.com/muurk/lightwave/internal/state"
)

func TestParseInt(t *testing.T) {
	tests := []struct {
		arg     string
		want    int
		wantErr bool
	}{
		{"1", 1, false},
		{"255", 255, false},
		{"0", 0, true},
		{"256", 0, true},
		{"two", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseInt("room", tt.arg, 1, 255)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseInt(%q) error = %v, wantErr %v", tt.arg, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseInt(%q) = %d, want %d", tt.arg, got, tt.want)
		}
	}
}

func TestParseRoomDevice(t *testing.T) {
	room, device, err := parseRoomDevice([]string{"3", "7"})
	if err != nil || room != 3 || device != 7 {
		t.Errorf("parseRoomDevice = %d, %d, %v", room, device, err)
	}
	if _, _, err := parseRoomDevice([]string{"3", "x"}); err == nil {
		t.Error("expected error for bad device")
	}
}

func TestParseRelay(t *testing.T) {
	tests := map[string]protocol.RelayDirection{
		"open":  protocol.RelayOpen,
		"UP":    protocol.RelayOpen,
		"close": protocol.RelayClose,
		"down":  protocol.RelayClose,
		"stop":  protocol.RelayStop,
	}
	for arg, want := range tests {
		got, err := parseRelay(arg)
		if err != nil || got != want {
			t.Errorf("parseRelay(%q) = %v, %v; want %v", arg, got, err, want)
		}
	}
	if _, err := parseRelay("sideways"); err == nil {
		t.Error("expected error for unknown direction")
	}
}

func TestCollectorHeatReports(t *testing.T) {
	c := &collector{}
	now := time.Now()
	c.OnUpdate(hub.Update{Hub: "legacy", Source: "R1D1", Kind: state.KindSwitch, State: state.On,
		Message: protocol.OnOffCommand{Room: 1, Device: 1, On: true}, Time: now})
	c.OnUpdate(hub.Update{Hub: "legacy", Source: "64B5E2", Kind: state.KindTemperature, State: state.DecimalType(19.5),
		Message: protocol.HeatInfoMessage{Serial: "64B5E2"}, Time: now})

	got := c.heatReports()
	if len(got) != 1 || got[0].Source != "64B5E2" {
		t.Errorf("heatReports = %+v", got)
	}
}

func TestFeatureFromCloud(t *testing.T) {
	tests := []struct {
		name string
		in   cloud.FeatureInfo
		want config.Feature
	}{
		{
			name: "set named after device",
			in: cloud.FeatureInfo{
				Feature:    cloud.Feature{ID: "a-1", Type: "switch", Writable: true},
				DeviceID:   "d1",
				DeviceName: "Lamp",
				SetName:    "Lamp",
			},
			want: config.Feature{Name: "switch", Kind: "switch", DeviceID: "d1", DeviceName: "Lamp", Writable: true},
		},
		{
			name: "second gang",
			in: cloud.FeatureInfo{
				Feature:    cloud.Feature{ID: "a-2", Type: "dimLevel", Writable: true},
				DeviceID:   "d2",
				DeviceName: "Dimmer",
				SetName:    "Gang 2",
			},
			want: config.Feature{Name: "Gang 2 dimLevel", Kind: "dimLevel", DeviceID: "d2", DeviceName: "Dimmer", Writable: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := featureFromCloud(tt.in)
			if *got != tt.want {
				t.Errorf("featureFromCloud = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

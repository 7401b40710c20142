package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/lightwave/internal/hub"
	"github.com/muurk/lightwave/internal/state"
)

var monitorNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func testModel(label Labeler) MonitorModel {
	m := NewMonitor("Live monitor", "lightwave smart monitor", label).Model()
	m.width = 100
	m.now = func() time.Time { return monitorNow }
	return m
}

func send(t *testing.T, m MonitorModel, msg tea.Msg) MonitorModel {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(MonitorModel)
	require.True(t, ok)
	return out
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestMonitorOnUpdateDropsWhenFull(t *testing.T) {
	mon := NewMonitor("t", "c", nil)
	for i := 0; i < cap(mon.updates)+10; i++ {
		mon.OnUpdate(hub.Update{Source: "x"})
	}
	assert.Len(t, mon.updates, cap(mon.updates))
}

func TestMonitorModelRows(t *testing.T) {
	m := testModel(func(u hub.Update) string {
		if u.Source == "5-1-1" {
			return "Lounge temperature"
		}
		return ""
	})

	m = send(t, m, updateMsg{Hub: "smart", Source: "5-1-1", Kind: state.KindTemperature, State: state.DecimalType(21.5), Time: monitorNow})
	m = send(t, m, updateMsg{Hub: "legacy", Source: "R1D2", Kind: state.KindSwitch, State: state.On, Time: monitorNow})
	m = send(t, m, updateMsg{Hub: "smart", Source: "5-1-1", Kind: state.KindTemperature, State: state.DecimalType(22), Time: monitorNow})

	require.Len(t, m.rows, 2)
	assert.Equal(t, 3, m.total)
	assert.Equal(t, "Lounge temperature", m.rows[0].source)
	assert.Equal(t, state.DecimalType(22), m.rows[0].value)
	assert.Equal(t, 2, m.rows[0].count)
	assert.Equal(t, "R1D2", m.rows[1].source)

	view := m.View()
	assert.Contains(t, view, "Lounge temperature")
	assert.Contains(t, view, "22")
	assert.Contains(t, view, "ON")
	assert.Contains(t, view, "2 channels")
}

func TestMonitorModelWaiting(t *testing.T) {
	m := testModel(nil)
	assert.Contains(t, m.View(), "Waiting for updates")
}

func TestMonitorModelKeys(t *testing.T) {
	m := testModel(nil)
	for _, src := range []string{"R1D1", "R1D2", "R1D3"} {
		m = send(t, m, updateMsg{Hub: "legacy", Source: src, Kind: state.KindSwitch, State: state.Off})
	}

	m = send(t, m, keyMsg("down"))
	m = send(t, m, keyMsg("j"))
	m = send(t, m, keyMsg("down"))
	assert.Equal(t, 2, m.cursor, "cursor stops at the last row")

	m = send(t, m, keyMsg("up"))
	assert.Equal(t, 1, m.cursor)

	m = send(t, m, keyMsg("p"))
	assert.True(t, m.paused)
	m = send(t, m, updateMsg{Hub: "legacy", Source: "R9D9", Kind: state.KindSwitch, State: state.On})
	assert.Len(t, m.rows, 3, "paused monitor ignores updates")
	assert.Contains(t, m.View(), "paused")

	m = send(t, m, keyMsg("c"))
	assert.Empty(t, m.rows)
	assert.Equal(t, 0, m.cursor)

	_, cmd := m.Update(keyMsg("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestMonitorModelWaitsForNextUpdate(t *testing.T) {
	mon := NewMonitor("t", "c", nil)
	m := mon.Model()

	_, cmd := m.Update(updateMsg{Source: "R1"})
	require.NotNil(t, cmd)

	mon.OnUpdate(hub.Update{Hub: "legacy", Source: "R2"})
	msg := cmd()
	u, ok := msg.(updateMsg)
	require.True(t, ok)
	assert.Equal(t, "R2", u.Source)
}

func TestMonitorModelUnknownKindAndZeroTime(t *testing.T) {
	m := testModel(nil)
	m = send(t, m, updateMsg{Hub: "legacy", Source: "R1", Kind: state.KindUnknown, State: state.DecimalType(3)})
	require.Len(t, m.rows, 1)
	assert.Equal(t, "-", m.rows[0].kind)
	assert.Equal(t, monitorNow, m.rows[0].updated)
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "now"},
		{5 * time.Second, "5s"},
		{3 * time.Minute, "3m"},
		{2 * time.Hour, "2h"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatAge(tt.d))
	}
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "-", formatValue(nil))
	assert.True(t, strings.Contains(formatValue(state.Off), "OFF"))
	assert.Equal(t, "50", formatValue(state.PercentType(50)))
}

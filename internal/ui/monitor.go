package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/lightwave/internal/hub"
	"github.com/muurk/lightwave/internal/state"
)

// staleAfter greys out rows that have not changed for a while.
const staleAfter = 10 * time.Minute

// Labeler names the source of an update for display. Returning "" keeps the
// raw source.
type Labeler func(u hub.Update) string

type updateMsg hub.Update

type tickMsg time.Time

// Monitor is a hub.Listener that feeds a live table of channel states.
// Updates arriving faster than the table can draw them are dropped.
type Monitor struct {
	title   string
	command string
	label   Labeler
	updates chan hub.Update
}

// NewMonitor creates a monitor. label may be nil.
func NewMonitor(title, command string, label Labeler) *Monitor {
	return &Monitor{
		title:   title,
		command: command,
		label:   label,
		updates: make(chan hub.Update, 256),
	}
}

// OnUpdate implements hub.Listener.
func (m *Monitor) OnUpdate(u hub.Update) {
	select {
	case m.updates <- u:
	default:
	}
}

// Model returns the Bubble Tea model reading from this monitor.
func (m *Monitor) Model() MonitorModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	width, height := GetTerminalSize()
	return MonitorModel{
		title:   m.title,
		command: m.command,
		label:   m.label,
		updates: m.updates,
		index:   make(map[string]*row),
		spinner: s,
		keys:    defaultMonitorKeys(),
		help:    help.New(),
		width:   width,
		height:  height,
		now:     time.Now,
	}
}

// Run shows the monitor until the user quits or ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	p := tea.NewProgram(m.Model(), tea.WithContext(ctx), tea.WithAltScreen())
	_, err := p.Run()
	if err != nil && errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

type monitorKeyMap struct {
	Up    key.Binding
	Down  key.Binding
	Pause key.Binding
	Clear key.Binding
	Quit  key.Binding
}

func (k monitorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Pause, k.Clear, k.Quit}
}

func (k monitorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func defaultMonitorKeys() monitorKeyMap {
	return monitorKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Pause: key.NewBinding(
			key.WithKeys("p", " "),
			key.WithHelp("p", "pause"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

type row struct {
	hub     string
	source  string
	kind    string
	value   state.State
	updated time.Time
	count   int
}

// MonitorModel is the Bubble Tea model of the live monitor. Rows keep the
// order in which their channel first reported.
type MonitorModel struct {
	title   string
	command string
	label   Labeler
	updates <-chan hub.Update

	rows   []*row
	index  map[string]*row
	total  int
	cursor int
	paused bool

	spinner spinner.Model
	keys    monitorKeyMap
	help    help.Model
	width   int
	height  int
	now     func() time.Time
}

func waitForUpdate(ch <-chan hub.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return updateMsg(u)
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model
func (m MonitorModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForUpdate(m.updates), tick())
}

// Update implements tea.Model
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		if !m.paused {
			m.apply(hub.Update(msg))
		}
		return m, waitForUpdate(m.updates)

	case tickMsg:
		return m, tick()

	case tea.WindowSizeMsg:
		m.width = clampWidth(msg.Width)
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Clear):
			m.rows = nil
			m.index = make(map[string]*row)
			m.cursor = 0
		}
	}
	return m, nil
}

func (m *MonitorModel) apply(u hub.Update) {
	kind := u.Kind.String()
	if u.Kind == state.KindUnknown {
		kind = "-"
	}
	source := u.Source
	if m.label != nil {
		if l := m.label(u); l != "" {
			source = l
		}
	}

	k := u.Hub + "/" + u.Source + "/" + kind
	r, ok := m.index[k]
	if !ok {
		r = &row{hub: u.Hub, source: source, kind: kind}
		m.index[k] = r
		m.rows = append(m.rows, r)
	}
	r.value = u.State
	r.updated = u.Time
	if r.updated.IsZero() {
		r.updated = m.now()
	}
	r.count++
	m.total++
}

func formatValue(st state.State) string {
	switch v := st.(type) {
	case nil:
		return "-"
	case state.OnOffType:
		if v {
			return StatusOnStyle.Render(v.String())
		}
		return StatusOffStyle.Render(v.String())
	}
	return st.String()
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh", int(d.Hours()))
}

// View implements tea.Model
func (m MonitorModel) View() string {
	var b strings.Builder

	status := fmt.Sprintf("%s live  %d channels  %d updates", LiveMarker, len(m.rows), m.total)
	if m.paused {
		status = "paused  " + status
	}
	b.WriteString(RenderHeader(m.title, m.command, map[string]string{"Status": status}, m.width))
	b.WriteString("\n")

	if len(m.rows) == 0 {
		b.WriteString("\n  " + m.spinner.View() + " Waiting for updates...\n")
	} else {
		b.WriteString(m.renderRows())
	}

	b.WriteString("\n" + HelpStyle.Render(m.help.View(m.keys)))
	return b.String()
}

func (m MonitorModel) renderRows() string {
	headers := []string{"HUB", "SOURCE", "KIND", "VALUE", "AGE", "N"}
	widths := []int{8, 28, 18, 16, 6, 5}

	cell := func(s string, w int) string {
		return lipgloss.NewStyle().Width(w).MaxWidth(w).Render(s)
	}
	line := func(cols []string) string {
		parts := make([]string, len(cols))
		for i, c := range cols {
			parts[i] = cell(c, widths[i])
		}
		return "  " + strings.Join(parts, " ")
	}

	var lines []string
	lines = append(lines, TableHeaderStyle.Render(line(headers)))

	now := m.now()
	for i, r := range m.rows {
		age := now.Sub(r.updated)
		text := line([]string{r.hub, r.source, r.kind, formatValue(r.value), formatAge(age), fmt.Sprint(r.count)})
		switch {
		case i == m.cursor:
			text = SelectedRowStyle.Render(text)
		case age > staleAfter:
			text = StaleStyle.Render(text)
		}
		lines = append(lines, text)
	}
	return strings.Join(lines, "\n") + "\n"
}

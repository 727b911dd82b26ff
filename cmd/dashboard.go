// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/vigil/pkg/mmwave"
	"github.com/Thermoquad/vigil/pkg/session"
)

const maxLogEntries = 200

// Event log entry
type logEntry struct {
	timestamp time.Time
	port      string
	message   string
	isError   bool
}

// portPanel is the dashboard view of one port
type portPanel struct {
	label     string
	device    string
	state     session.State
	lastErr   error
	openedAt  time.Time
	latest    map[string]mmwave.Event
	stats     mmwave.Statistics
	fallCount int
	lastFall  time.Time
}

// sendFunc builds and sends a named command to a port
type sendFunc func(label, name string, args []string) (mmwave.Command, error)

// dashboardModel is the Bubble Tea model for monitor --tui
type dashboardModel struct {
	panels   []*portPanel
	sessions []*session.Session
	send     sendFunc

	logEntries []logEntry
	logView    viewport.Model
	input      textinput.Model

	width    int
	height   int
	quitting bool
}

// Messages
type dashTickMsg time.Time
type eventMsg session.Message
type eventsClosedMsg struct{}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// panelOrder is the display order of telemetry kinds in a port panel
var panelOrder = []struct {
	key   string
	title string
}{
	{"working_status", "Status"},
	{"presence_state", "Presence"},
	{"motion_state", "Motion"},
	{"trace_tracking", "Tracking"},
	{"trace_count", "Targets"},
	{"radar_target", "Last Target"},
	{"fall_detection", "Fall Detect"},
	{"fall_state", "Fall State"},
	{"fall_position", "Fall Pos"},
	{"fall_duration", "Fall Time"},
	{"stand_still_state", "Stand Still"},
	{"installation_angle", "Angle"},
	{"installation_height", "Height"},
	{"radar_range", "Range"},
}

func newDashboardModel(ports []PortConfig, sessions []*session.Session, send sendFunc) dashboardModel {
	input := textinput.New()
	input.Placeholder = "A set-height 250   (help for commands)"
	input.Prompt = "> "
	input.CharLimit = 128
	input.Focus()

	m := dashboardModel{
		sessions: sessions,
		send:     send,
		logView:  viewport.New(76, 10),
		input:    input,
		width:    80,
		height:   24,
	}
	for _, p := range ports {
		m.panels = append(m.panels, &portPanel{
			label:  p.Label,
			device: p.Device,
			latest: make(map[string]mmwave.Event),
		})
	}
	return m
}

// runDashboard runs the TUI until the user quits or ctx is cancelled
func runDashboard(ctx context.Context, group *portGroup, events <-chan session.Message) error {
	m := newDashboardModel(group.ports, group.Sessions(), group.Send)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	go func() {
		for msg := range events {
			p.Send(eventMsg(msg))
		}
		p.Send(eventsClosedMsg{})
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(dashTickCmd(), textinput.Blink)
}

func dashTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return dashTickMsg(t)
	})
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "q":
			if m.input.Value() == "" {
				m.quitting = true
				return m, tea.Quit
			}
		case "enter":
			m.submit(m.input.Value())
			m.input.SetValue("")
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.logView, cmd = m.logView.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeLog()
		return m, nil

	case dashTickMsg:
		m.refreshStats()
		return m, dashTickCmd()

	case eventMsg:
		m.handleEvent(session.Message(msg))
		return m, nil

	case eventsClosedMsg:
		m.quitting = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleEvent updates the port panel and the event log
func (m *dashboardModel) handleEvent(msg session.Message) {
	panel := m.panel(msg.Port)
	if panel == nil {
		return
	}

	switch ev := msg.Event.(type) {
	case session.StatusEvent:
		panel.state = ev.State
		panel.lastErr = ev.Err
		if ev.State == session.StateOpen {
			panel.openedAt = msg.Time
		}
		m.addLogEntry(msg.Time, msg.Port, describeEvent(ev), ev.Err != nil)

	case mmwave.FallAlert:
		if !ev.Cancelled {
			panel.fallCount++
			panel.lastFall = msg.Time
		}
		m.addLogEntry(msg.Time, msg.Port, mmwave.FormatEvent(ev), !ev.Cancelled)

	case mmwave.ProductInfo:
		panel.latest["product_info:"+ev.Field.String()] = ev

	case mmwave.DebugNote, mmwave.UnknownCommand:
		m.addLogEntry(msg.Time, msg.Port, mmwave.FormatEvent(ev), false)

	default:
		panel.latest[ev.EventName()] = ev
	}
}

// submit parses "<port> <command> [args...]" and sends the command
func (m *dashboardModel) submit(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	if fields[0] == "help" {
		m.addLogEntry(time.Now(), "", "commands: "+strings.Join(mmwave.CommandNames(), ", "), false)
		return
	}
	if len(fields) < 2 {
		m.addLogEntry(time.Now(), "", "usage: <port> <command> [args...]", true)
		return
	}

	label, name, args := fields[0], fields[1], fields[2:]
	command, err := m.send(label, name, args)
	if err != nil {
		m.addLogEntry(time.Now(), label, fmt.Sprintf("%s: %v", name, err), true)
		return
	}
	m.addLogEntry(time.Now(), label, fmt.Sprintf("sent %s: %s", name, mmwave.FormatHex(command.Frame())), false)
}

func (m *dashboardModel) refreshStats() {
	for i, s := range m.sessions {
		if i < len(m.panels) {
			m.panels[i].stats = s.Stats()
		}
	}
}

func (m *dashboardModel) panel(label string) *portPanel {
	for _, p := range m.panels {
		if p.label == label {
			return p
		}
	}
	return nil
}

func (m *dashboardModel) addLogEntry(ts time.Time, port, message string, isError bool) {
	m.logEntries = append(m.logEntries, logEntry{
		timestamp: ts,
		port:      port,
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.logEntries) > maxLogEntries {
		m.logEntries = m.logEntries[len(m.logEntries)-maxLogEntries:]
	}

	atBottom := m.logView.AtBottom()
	m.logView.SetContent(m.renderLog())
	if atBottom {
		m.logView.GotoBottom()
	}
}

func (m *dashboardModel) resizeLog() {
	logHeight := m.height - 20 // Reserve space for header, panels and prompt
	if logHeight < 5 {
		logHeight = 5
	}
	m.logView.Width = max(m.width-6, 20)
	m.logView.Height = logHeight
	m.input.Width = max(m.width-6, 20)
	m.logView.SetContent(m.renderLog())
	m.logView.GotoBottom()
}

func (m dashboardModel) renderLog() string {
	if len(m.logEntries) == 0 {
		return headerStyle.Render("  (no events yet)")
	}

	var b strings.Builder
	for i, entry := range m.logEntries {
		if i > 0 {
			b.WriteString("\n")
		}
		prefix := headerStyle.Render(entry.timestamp.Format("15:04:05.000"))
		if entry.port != "" {
			prefix += " " + labelStyle.Render(entry.port)
		}
		if entry.isError {
			b.WriteString(prefix + " " + errorStyle.Render("✗ "+entry.message))
		} else {
			b.WriteString(prefix + " " + warningStyle.Render("ℹ "+entry.message))
		}
	}
	return b.String()
}

func (m dashboardModel) renderPanel(p *portPanel, width int) string {
	var b strings.Builder

	state := valueStyle.Render(p.state.String())
	if p.state != session.StateOpen {
		state = errorStyle.Render(p.state.String())
	}
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Port "+p.label), headerStyle.Render(p.device))
	fmt.Fprintf(&b, "%s %s", labelStyle.Render("State:"), state)
	if p.state == session.StateOpen && !p.openedAt.IsZero() {
		fmt.Fprintf(&b, " %s", headerStyle.Render("("+formatUptime(time.Since(p.openedAt))+")"))
	}
	b.WriteString("\n")
	if p.lastErr != nil {
		fmt.Fprintf(&b, "%s\n", errorStyle.Render(p.lastErr.Error()))
	}

	fmt.Fprintf(&b, "%s %s   %s %s\n",
		labelStyle.Render("Frames:"), valueStyle.Render(fmt.Sprintf("%d", p.stats.ValidFrames)),
		labelStyle.Render("Bad:"), errorCount(p.stats.ChecksumErrors+p.stats.ShortFrames),
	)
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f frames/s", p.stats.FrameRate)))

	if p.fallCount > 0 {
		fmt.Fprintf(&b, "%s %s\n", errorStyle.Render("FALLS:"),
			errorStyle.Render(fmt.Sprintf("%d (last %s)", p.fallCount, p.lastFall.Format("15:04:05"))))
	}

	b.WriteString("\n")
	for _, row := range panelOrder {
		ev, ok := p.latest[row.key]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(row.title+":"), valueStyle.Render(panelValue(ev)))
	}

	var product []string
	for key := range p.latest {
		if strings.HasPrefix(key, "product_info:") {
			product = append(product, key)
		}
	}
	sort.Strings(product)
	for _, key := range product {
		info := p.latest[key].(mmwave.ProductInfo)
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(info.Field.String()+":"), valueStyle.Render(info.Value))
	}

	return boxStyle.Width(width).Render(strings.TrimRight(b.String(), "\n"))
}

// panelValue is the event text without its kind prefix
func panelValue(ev mmwave.Event) string {
	text := mmwave.FormatEvent(ev)
	if _, rest, found := strings.Cut(text, ": "); found {
		return rest
	}
	return text
}

func errorCount(n uint64) string {
	if n > 0 {
		return errorStyle.Render(fmt.Sprintf("%d", n))
	}
	return valueStyle.Render("0")
}

func (m dashboardModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("VIGIL - RADAR MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render("Type a command and press Enter | PgUp/PgDn scroll | Esc or q to quit"))
	s.WriteString("\n\n")

	if len(m.panels) > 0 {
		panelWidth := m.width/len(m.panels) - 4
		if panelWidth < 30 {
			panelWidth = 30
		}
		rendered := make([]string, 0, len(m.panels))
		for _, p := range m.panels {
			rendered = append(rendered, m.renderPanel(p, panelWidth))
		}
		s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
		s.WriteString("\n\n")
	}

	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Width(m.width - 4).Render(m.logView.View()))
	s.WriteString("\n")
	s.WriteString(m.input.View())

	return s.String()
}

// formatUptime formats a duration as a human-friendly string
func formatUptime(d time.Duration) string {
	seconds := int64(d / time.Second)
	if seconds <= 0 {
		return "0 seconds"
	}

	units := []struct {
		name string
		size int64
	}{
		{"day", 86400},
		{"hour", 3600},
		{"minute", 60},
		{"second", 1},
	}

	parts := []string{}
	for _, u := range units {
		n := seconds / u.size
		seconds %= u.size
		if n == 0 {
			continue
		}
		if n == 1 {
			parts = append(parts, "1 "+u.name)
		} else {
			parts = append(parts, fmt.Sprintf("%d %ss", n, u.name))
		}
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

// Package tui implements a Bubble Tea dashboard over a Handler's diagnostic
// event stream: per-session lifecycle state and a scrolling event log.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	tarantool "github.com/mickamy/go-tarantool"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	connectedSty = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	disconnSty   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	connectingSty = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	dimSty       = lipgloss.NewStyle().Faint(true)
	errSty       = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
)

type sessionRow struct {
	id       uuid.UUID
	state    string
	lastSeen time.Time
	lastErr  error
}

// Model is the Bubble Tea model for the pool monitor.
type Model struct {
	target string
	watch  <-chan tarantool.Event

	sessions map[uuid.UUID]sessionRow
	order    []uuid.UUID // first-seen order, stable across redraws
	log      []tarantool.Event

	width, height int
	quitting      bool
}

const maxLogLines = 200

// New creates a Model watching h's diagnostic event stream.
func New(target string, h *tarantool.Handler) Model {
	return Model{
		target:   target,
		watch:    h.Watch(),
		sessions: make(map[uuid.UUID]sessionRow),
	}
}

type eventMsg struct{ Event tarantool.Event }

type watchClosedMsg struct{}

func recvEvent(ch <-chan tarantool.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return watchClosedMsg{}
		}
		return eventMsg{Event: ev}
	}
}

// Init starts listening for pool events.
func (m Model) Init() tea.Cmd {
	return recvEvent(m.watch)
}

// Update applies one Bubble Tea message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		m.applyEvent(msg.Event)
		return m, recvEvent(m.watch)

	case watchClosedMsg:
		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *Model) applyEvent(ev tarantool.Event) {
	row, known := m.sessions[ev.SessionID]
	if !known {
		m.order = append(m.order, ev.SessionID)
	}
	row.id = ev.SessionID
	row.state = ev.State.String()
	row.lastSeen = ev.Time
	row.lastErr = ev.Err
	m.sessions[ev.SessionID] = row

	m.log = append(m.log, ev)
	if len(m.log) > maxLogLines {
		m.log = m.log[len(m.log)-maxLogLines:]
	}
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", headerStyle.Render(fmt.Sprintf("tnt-mon — %s", m.target)))
	fmt.Fprintf(&b, "%s\n\n", dimSty.Render(fmt.Sprintf("%d session(s) observed · q to quit", len(m.sessions))))

	b.WriteString(headerStyle.Render("sessions"))
	b.WriteString("\n")
	for _, id := range m.order {
		row := m.sessions[id]
		b.WriteString(renderSessionRow(row))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(headerStyle.Render("recent events"))
	b.WriteString("\n")
	for _, ev := range lastN(m.log, m.logLines()) {
		b.WriteString(renderLogLine(ev))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) logLines() int {
	n := m.height - len(m.sessions) - 6
	if n < 5 {
		n = 5
	}
	return n
}

func renderSessionRow(row sessionRow) string {
	style := connectingSty
	switch row.state {
	case "connected":
		style = connectedSty
	case "disconnected", "closed":
		style = disconnSty
	}
	line := fmt.Sprintf("  %s  %-12s  last seen %s", shortID(row.id), style.Render(row.state), humanAge(row.lastSeen))
	if row.lastErr != nil {
		line += "  " + errSty.Render(row.lastErr.Error())
	}
	return line
}

func renderLogLine(ev tarantool.Event) string {
	line := fmt.Sprintf("  %s  %s  %-12s", ev.Time.Format("15:04:05.000"), shortID(ev.SessionID), ev.State.String())
	if ev.Err != nil {
		line += "  " + dimSty.Render(ev.Err.Error())
	}
	return line
}

func shortID(id uuid.UUID) string {
	s := id.String()
	if len(s) < 8 {
		return s
	}
	return s[:8]
}

func humanAge(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return time.Since(t).Round(time.Second).String() + " ago"
}

func lastN(evs []tarantool.Event, n int) []tarantool.Event {
	if n <= 0 || len(evs) <= n {
		return evs
	}
	return evs[len(evs)-n:]
}

// Package monitor is a small bubbletea dashboard over a running daemon's
// session table.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/beads-continuation/internal/continuation"
)

// RefreshInterval is how often the dashboard polls the bridge.
const RefreshInterval = time.Second

type sessionsMsg struct {
	sessions []continuation.SessionStatus
	err      error
}

type refreshTickMsg struct{}

// Model is the bubbletea model behind `beads-continuation monitor`.
type Model struct {
	fetch    Fetcher
	source   string
	interval time.Duration
	clock    func() time.Time

	table     table.Model
	sessions  []continuation.SessionStatus
	err       error
	updatedAt time.Time
	width     int
}

// New builds a dashboard that polls fetch. source labels the header.
func New(fetch Fetcher, source string) *Model {
	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#5B8DEF")).
		Bold(false)
	t.SetStyles(styles)
	return &Model{
		fetch:    fetch,
		source:   source,
		interval: RefreshInterval,
		clock:    time.Now,
		table:    t,
	}
}

func columns(width int) []table.Column {
	session := max(16, width-48)
	return []table.Column{
		{Title: "Session", Width: session},
		{Title: "State", Width: 14},
		{Title: "Remaining", Width: 10},
		{Title: "Last error", Width: 16},
	}
}

// Init is called once when the program starts.
func (m *Model) Init() tea.Cmd {
	return m.fetchSessions()
}

// Update is called when a message is received.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.table.SetColumns(columns(msg.Width))
		m.table.SetHeight(max(3, msg.Height-6))
		return m, nil

	case sessionsMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.sessions = msg.sessions
			m.updatedAt = m.clock()
			m.table.SetRows(m.rows())
		}
		return m, m.scheduleRefresh()

	case refreshTickMsg:
		return m, m.fetchSessions()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			return m, m.fetchSessions()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the dashboard.
func (m *Model) View() string {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		MarginBottom(1).
		Render(fmt.Sprintf("⬡ BEADS CONTINUATION · %s", m.source))

	var body string
	if len(m.sessions) == 0 {
		body = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Render("No sessions tracked yet.")
	} else {
		body = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Render(m.table.View())
	}

	return strings.Join([]string{header, body, m.footer()}, "\n")
}

func (m *Model) footer() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).MarginTop(1)
	if m.err != nil {
		return style.Foreground(lipgloss.Color("#FF6B6B")).Render(fmt.Sprintf("error: %v · r retry · q quit", m.err))
	}
	updated := "never"
	if !m.updatedAt.IsZero() {
		updated = m.updatedAt.Format("15:04:05")
	}
	return style.Render(fmt.Sprintf("%d session(s) · updated %s · r refresh · q quit", len(m.sessions), updated))
}

func (m *Model) rows() []table.Row {
	now := m.clock()
	rows := make([]table.Row, 0, len(m.sessions))
	for _, s := range m.sessions {
		rows = append(rows, table.Row{s.ID, stateLabel(s), remainingLabel(s), lastErrorLabel(s, now)})
	}
	return rows
}

func stateLabel(s continuation.SessionStatus) string {
	switch {
	case s.Recovering:
		return "recovering"
	case s.CountingDown:
		return "counting down"
	default:
		return "watching"
	}
}

func remainingLabel(s continuation.SessionStatus) string {
	if !s.CountingDown {
		return "-"
	}
	return fmt.Sprintf("%ds", s.Remaining)
}

func lastErrorLabel(s continuation.SessionStatus, now time.Time) string {
	if s.LastErrorAt == nil {
		return "-"
	}
	ago := now.Sub(*s.LastErrorAt).Truncate(time.Second)
	if ago < 0 {
		ago = 0
	}
	return fmt.Sprintf("%s ago", ago)
}

func (m *Model) fetchSessions() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		sessions, err := fetch(ctx)
		return sessionsMsg{sessions: sessions, err: err}
	}
}

func (m *Model) scheduleRefresh() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

// Run blocks until the user quits.
func Run(fetch Fetcher, source string) error {
	_, err := tea.NewProgram(New(fetch, source), tea.WithAltScreen()).Run()
	return err
}

// Package ui provides the Bubble Tea TUI for the orderbook viewer.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/book-aggregator/pkg/ui/components"
)

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// Model is the main Bubble Tea model for the viewer.
type Model struct {
	// Components
	book  *components.BookComponent
	stats *components.StatsComponent
	keys  KeyMap

	// State
	quitting  bool
	paused    bool
	width     int
	connected bool
	addr      string

	lastUpdate time.Time
	errors     []ErrorEntry // Persistent error panel (last 3)

	// Activity tracking
	updatesReceived int64
	reconnects      int64
	errorCount      int64
	windowStart     time.Time
	windowCount     int64
	updatesPerSec   float64
}

// New creates a new viewer model.
func New(symbol string) Model {
	book := components.NewBookComponent()
	book.SetSymbol(symbol)
	return Model{
		book:        book,
		stats:       components.NewStatsComponent(),
		keys:        DefaultKeyMap(),
		errors:      make([]ErrorEntry, 0, 3),
		windowStart: time.Now(),
	}
}

// Init initializes the viewer model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd returns a command that sends a tick every 100ms for smooth updates.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
			return m, nil
		case key.Matches(msg, m.keys.Clear):
			m.book.Clear()
			m.errors = make([]ErrorEntry, 0, 3)
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case TickMsg:
		// Refresh the updates-per-second window once a second.
		if elapsed := time.Since(m.windowStart); elapsed >= time.Second {
			m.updatesPerSec = float64(m.windowCount) / elapsed.Seconds()
			m.windowStart = time.Now()
			m.windowCount = 0
		}
		return m, tickCmd()

	case SummaryMsg:
		m.updatesReceived++
		m.windowCount++
		m.lastUpdate = time.Now()
		if m.paused || msg.Summary == nil {
			return m, nil
		}
		data := components.BookData{Spread: msg.Summary.GetSpread()}
		for _, l := range msg.Summary.GetBids() {
			data.Bids = append(data.Bids, components.BookLevel{
				Price:    l.GetPrice(),
				Amount:   l.GetAmount(),
				Exchange: l.GetExchange(),
			})
		}
		for _, l := range msg.Summary.GetAsks() {
			data.Asks = append(data.Asks, components.BookLevel{
				Price:    l.GetPrice(),
				Amount:   l.GetAmount(),
				Exchange: l.GetExchange(),
			})
		}
		m.book.Update(data)

	case ConnStateMsg:
		if msg.Connected && !m.connected {
			m.reconnects++
		}
		m.connected = msg.Connected
		m.addr = msg.Addr

	case ErrorMsg:
		m.errorCount++
		m.errors = append(m.errors, ErrorEntry{
			Message:   msg.Err.Error(),
			Timestamp: time.Now(),
		})
		if len(m.errors) > 3 {
			m.errors = m.errors[len(m.errors)-3:]
		}
	}

	return m, nil
}

// View renders the viewer.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(" 📖 Orderbook Viewer "))
	b.WriteString("\n\n")

	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	width := m.width
	if width <= 0 {
		width = 90
	}
	b.WriteString(BoxStyle.Width(width - 4).Render(m.book.View()))
	b.WriteString("\n\n")

	m.stats.Update(components.Stats{
		UpdatesReceived: m.updatesReceived,
		UpdatesPerSec:   m.updatesPerSec,
		Reconnects:      m.reconnects,
		Errors:          m.errorCount,
	})
	b.WriteString(m.stats.View())
	b.WriteString("\n\n")

	// Persistent error panel (last 3 errors)
	if len(m.errors) > 0 {
		errorHeader := lipgloss.NewStyle().Bold(true).Foreground(ColorAsk)
		errorStyle := lipgloss.NewStyle().Foreground(ColorAsk)

		b.WriteString(errorHeader.Render("ERRORS"))
		b.WriteString(MutedValue.Render(" (c: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(errorStyle.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(MutedValue.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.paused {
		pauseStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorWarning)
		b.WriteString(pauseStyle.Render("⏸ PAUSED"))
		b.WriteString(" • ")
	}
	b.WriteString(HelpStyle.Render("q: quit • p: pause • c: clear"))

	return b.String()
}

func (m Model) renderStatusBar() string {
	var parts []string

	if m.connected {
		parts = append(parts, StatusConnected.Render("● Connected"))
	} else {
		parts = append(parts, StatusDisconnected.Render("○ Disconnected"))
	}

	if m.addr != "" {
		parts = append(parts, MutedValue.Render(m.addr))
	}

	if !m.lastUpdate.IsZero() {
		ago := time.Since(m.lastUpdate).Round(time.Second)
		indicator := ""
		if ago < 2*time.Second {
			indicator = "▪"
		}
		parts = append(parts, MutedValue.Render(fmt.Sprintf("Updated: %s ago %s", ago, indicator)))
	}

	return strings.Join(parts, "  │  ")
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// Run starts the Bubble Tea program.
func Run(symbol string) error {
	Program = tea.NewProgram(New(symbol), tea.WithAltScreen())
	_, err := Program.Run()
	return err
}

// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
}

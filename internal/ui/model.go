// ABOUTME: Bubbletea model for the loopback status TUI
// ABOUTME: Defines session state and update logic
package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	runningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	stoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	helpStyle    = lipgloss.NewStyle().Faint(true)
)

// Model represents the TUI state
type Model struct {
	// Session
	sessionID string
	backend   string
	running   bool
	lastError string

	// Format
	sampleRate int
	channels   int
	decay      float32
	echoLen    int

	// Stats
	blocks    uint64
	skipped   uint64
	dropped   uint64
	underruns uint64
	buffered  int
	capacity  int

	control *Control

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	case StatsMsg:
		m.applyStats(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderFormat()
	s += m.renderStats()
	s += m.renderHelp()

	return s
}

// renderHeader renders session state
func (m Model) renderHeader() string {
	state, style := "Stopped", stoppedStyle
	if m.running {
		state, style = "Running", runningStyle
	}
	if m.lastError != "" {
		state, style = "Error: "+truncate(m.lastError, 37), errorStyle
	}

	return fmt.Sprintf(`┌─ Echo Loopback ──────────────────────────────────────┐
│ Session: %-44s │
│ Status:  %s │
├──────────────────────────────────────────────────────┤
`, truncate(m.sessionID, 44), style.Render(fmt.Sprintf("%-44s", state)))
}

// renderFormat renders the negotiated format and echo settings
func (m Model) renderFormat() string {
	if m.sampleRate == 0 {
		return "│ Waiting for capture device                           │\n"
	}

	return fmt.Sprintf("│ Device: %-45s │\n"+
		"│ Format: %-45s │\n"+
		"│ Echo:   %-45s │\n",
		m.backend,
		fmt.Sprintf("%dHz %s f32", m.sampleRate, channelName(m.channels)),
		fmt.Sprintf("%d samples, decay %.2f", m.echoLen, m.decay))
}

// renderStats renders queue statistics
func (m Model) renderStats() string {
	bar := renderBar(m.buffered, m.capacity, 20)

	return fmt.Sprintf("├──────────────────────────────────────────────────────┤\n"+
		"│ Queue:  [%s] %-23s │\n"+
		"│ Blocks: %-45s │\n"+
		"│ Loss:   %-45s │\n",
		bar, fmt.Sprintf("%d/%d B", m.buffered, m.capacity),
		fmt.Sprintf("%d processed, %d skipped", m.blocks, m.skipped),
		fmt.Sprintf("%d B dropped, %d underruns", m.dropped, m.underruns))
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return "│ " + helpStyle.Render(fmt.Sprintf("%-52s", "enter/q:Stop")) + " │\n" +
		"└──────────────────────────────────────────────────────┘\n"
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "q", "ctrl+c":
		if m.control != nil {
			select {
			case m.control.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.SessionID != "" {
		m.sessionID = msg.SessionID
	}
	if msg.Backend != "" {
		m.backend = msg.Backend
	}
	if msg.Running != nil {
		m.running = *msg.Running
	}
	if msg.SampleRate != 0 {
		m.sampleRate = msg.SampleRate
		m.channels = msg.Channels
	}
	if msg.Decay != 0 {
		m.decay = msg.Decay
		m.echoLen = msg.EchoLen
	}
	if msg.Error != "" {
		m.lastError = msg.Error
	}
}

// applyStats updates counters from a stats message
func (m *Model) applyStats(msg StatsMsg) {
	m.blocks = msg.Blocks
	m.skipped = msg.Skipped
	m.dropped = msg.Dropped
	m.underruns = msg.Underruns
	m.buffered = msg.Buffered
	m.capacity = msg.Capacity
}

// StatusMsg updates session state; zero fields are left unchanged
type StatusMsg struct {
	SessionID  string
	Backend    string
	Running    *bool
	SampleRate int
	Channels   int
	Decay      float32
	EchoLen    int
	Error      string
}

// StatsMsg replaces the queue counters
type StatsMsg struct {
	Blocks    uint64
	Skipped   uint64
	Dropped   uint64
	Underruns uint64
	Buffered  int
	Capacity  int
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := 0
	if max > 0 {
		filled = (value * width) / max
	}
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func channelName(channels int) string {
	switch channels {
	case 1:
		return "Mono"
	case 2:
		return "Stereo"
	default:
		return fmt.Sprintf("%dch", channels)
	}
}

// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program for the loopback status screen
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// QuitMsg signals that the user asked to stop
type QuitMsg struct{}

// Control holds channels for TUI to application communication
type Control struct {
	Quit chan QuitMsg
}

// NewControl creates a new control handler
func NewControl() *Control {
	return &Control{
		Quit: make(chan QuitMsg, 1),
	}
}

// NewModel creates a new TUI model
func NewModel(ctrl *Control) Model {
	return Model{
		control: ctrl,
	}
}

// Run creates the TUI program; the caller runs it
func Run(ctrl *Control) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(ctrl), tea.WithAltScreen())
	return p, nil
}

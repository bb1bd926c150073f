// Package tui provides the terminal user interface for the chat front-end.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/linanwx/hypermath/controller"
)

// Panel is a composable TUI region with its own state, update logic, and view.
// The root App model orchestrates panels without knowing their internals.
type Panel interface {
	Update(tea.Msg) (Panel, tea.Cmd)
	View() string
	SetSize(width, height int)
}

// LogLineMsg carries a single log line from the logger writer.
type LogLineMsg struct{ Line string }

// StateMsg carries a controller snapshot. Every panel redraws from it.
type StateMsg struct{ State controller.State }

// InputSubmitMsg is emitted when the user presses Enter in the input panel.
type InputSubmitMsg struct{ Text string }

// InputRejectedMsg returns submitted text the controller did not accept, so
// the user can send it again once the current request settles.
type InputRejectedMsg struct{ Text string }

// ToggleCodeMsg flips the code listing in the artifact panel.
type ToggleCodeMsg struct{}

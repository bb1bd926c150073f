package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// BusyText is shown in place of the input while a request is in flight.
const BusyText = "Processing your request..."

var busyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

// InputPanel provides a single-line text input that locks while busy.
type InputPanel struct {
	input         textinput.Model
	spinner       spinner.Model
	busy          bool
	width, height int
}

// NewInputPanel creates an input panel with the given prompt.
func NewInputPanel(prompt string) *InputPanel {
	ti := textinput.New()
	ti.Prompt = prompt
	ti.Placeholder = "Ask about any mathematical concept..."
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return &InputPanel{input: ti, spinner: sp}
}

func (p *InputPanel) Update(msg tea.Msg) (Panel, tea.Cmd) {
	switch msg := msg.(type) {
	case StateMsg:
		wasBusy := p.busy
		p.busy = msg.State.Busy
		if p.busy && !wasBusy {
			p.input.Blur()
			return p, p.spinner.Tick
		}
		if !p.busy && wasBusy {
			return p, p.input.Focus()
		}
		return p, nil

	case InputRejectedMsg:
		if p.input.Value() == "" && msg.Text != "" {
			p.input.SetValue(msg.Text)
			p.input.CursorEnd()
		}
		return p, nil

	case spinner.TickMsg:
		if !p.busy {
			return p, nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd

	case tea.KeyMsg:
		if p.busy {
			return p, nil
		}
		if msg.Type == tea.KeyEnter {
			text := p.input.Value()
			if text == "" {
				return p, nil
			}
			p.input.Reset()
			return p, func() tea.Msg { return InputSubmitMsg{Text: text} }
		}
	}
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return p, cmd
}

func (p *InputPanel) View() string {
	if p.busy {
		return p.spinner.View() + " " + busyStyle.Render(BusyText)
	}
	return p.input.View()
}

func (p *InputPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
	p.input.Width = max(width-lipgloss.Width(p.input.Prompt)-1, 1)
}

// Busy reports whether the panel is locked.
func (p *InputPanel) Busy() bool { return p.busy }

package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/linanwx/hypermath/conversation"
	"github.com/linanwx/hypermath/termmd"
)

var (
	userMsgStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6")) // cyan
	attachedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Italic(true)
	assistantLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true).Render("HyperMath")
)

// ChatPanel displays conversation history in a scrollable viewport.
type ChatPanel struct {
	viewport viewport.Model
	turns    []conversation.Turn
	version  uint64
	width    int
}

// NewChatPanel creates a chat panel.
func NewChatPanel() *ChatPanel {
	vp := viewport.New(0, 0)
	vp.SetContent("")
	return &ChatPanel{viewport: vp}
}

func (p *ChatPanel) Update(msg tea.Msg) (Panel, tea.Cmd) {
	switch msg := msg.(type) {
	case StateMsg:
		if msg.State.Version != 0 && msg.State.Version <= p.version {
			return p, nil
		}
		p.version = msg.State.Version
		p.turns = msg.State.Turns
		p.refresh()
		return p, nil
	}
	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

func (p *ChatPanel) View() string {
	return p.viewport.View()
}

func (p *ChatPanel) SetSize(width, height int) {
	p.viewport.Width = width
	p.viewport.Height = height
	if width != p.width {
		p.width = width
		p.refresh()
	}
}

func (p *ChatPanel) refresh() {
	blocks := make([]string, 0, len(p.turns))
	for _, t := range p.turns {
		blocks = append(blocks, renderTurn(t, p.width))
	}
	p.viewport.SetContent(strings.Join(blocks, "\n\n"))
	p.viewport.GotoBottom()
}

func renderTurn(t conversation.Turn, width int) string {
	if t.IsUser() {
		return userMsgStyle.Render("> " + t.Content)
	}
	body := termmd.Render(t.Content, max(width-2, 0))
	out := assistantLabel + "\n" + body
	if t.HasArtifact() {
		out += "\n" + attachedStyle.Render("▶ visual explanation attached")
	}
	return out
}

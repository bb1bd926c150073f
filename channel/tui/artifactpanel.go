package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/linanwx/hypermath/conversation"
	"github.com/linanwx/hypermath/termmd"
)

// Placeholder strings for the empty artifact panel.
const (
	ArtifactTitle     = "Visual Explanation"
	NoArtifactTitle   = "No Visualization Yet"
	NoArtifactMessage = "Ask a math question to see a visual explanation here."
)

var (
	panelTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	videoRefStyle   = lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("6"))
	hintStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// ArtifactPanel shows the visual artifact of the newest assistant turn that
// has one.
type ArtifactPanel struct {
	viewport viewport.Model
	artifact *conversation.Artifact
	showCode bool
}

// NewArtifactPanel creates an empty artifact panel.
func NewArtifactPanel() *ArtifactPanel {
	p := &ArtifactPanel{viewport: viewport.New(0, 0)}
	p.refresh()
	return p
}

func (p *ArtifactPanel) Update(msg tea.Msg) (Panel, tea.Cmd) {
	switch msg := msg.(type) {
	case StateMsg:
		prev := p.artifact
		p.artifact = msg.State.Artifact
		if !sameArtifact(prev, p.artifact) {
			p.refresh()
			p.viewport.GotoTop()
		}
		return p, nil
	case ToggleCodeMsg:
		p.showCode = !p.showCode
		p.refresh()
		return p, nil
	}
	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

func (p *ArtifactPanel) View() string {
	return p.viewport.View()
}

func (p *ArtifactPanel) SetSize(width, height int) {
	p.viewport.Width = width
	p.viewport.Height = height
}

// ShowingCode reports whether the code listing is expanded.
func (p *ArtifactPanel) ShowingCode() bool { return p.showCode }

func (p *ArtifactPanel) refresh() {
	var b strings.Builder
	if p.artifact == nil {
		b.WriteString(panelTitleStyle.Render(NoArtifactTitle))
		b.WriteString("\n\n")
		b.WriteString(hintStyle.Render(NoArtifactMessage))
		p.viewport.SetContent(b.String())
		return
	}

	b.WriteString(panelTitleStyle.Render(ArtifactTitle))
	b.WriteString("\n\n")
	b.WriteString("video: ")
	b.WriteString(videoRefStyle.Render(p.artifact.VideoRef))
	if p.artifact.CodeText != "" {
		b.WriteString("\n\n")
		if p.showCode {
			b.WriteString(hintStyle.Render("ctrl+o hide code"))
			b.WriteString("\n")
			b.WriteString(termmd.Code(p.artifact.CodeText))
		} else {
			b.WriteString(hintStyle.Render("ctrl+o show code"))
		}
	}
	p.viewport.SetContent(b.String())
}

func sameArtifact(a, b *conversation.Artifact) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	defaultLogRatio      = 0.25
	sideBySideMinWidth   = 100
	chatWidthRatio       = 0.6
	stackedArtifactRatio = 0.35
)

var (
	separatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// App is the root bubbletea model that orchestrates panels and layout.
type App struct {
	logPanel      *LogPanel
	chatPanel     *ChatPanel
	artifactPanel *ArtifactPanel
	inputPanel    *InputPanel

	width, height int
	version       uint64 // newest state applied
	logRatio      float64
	showLogs      bool

	// InputCh receives submitted text from the input panel.
	InputCh chan string
}

// NewApp creates the root TUI model with default panels.
func NewApp() *App {
	return &App{
		logPanel:      NewLogPanel(),
		chatPanel:     NewChatPanel(),
		artifactPanel: NewArtifactPanel(),
		inputPanel:    NewInputPanel("hypermath> "),
		logRatio:      defaultLogRatio,
		InputCh:       make(chan string, 16),
	}
}

func (m *App) Init() tea.Cmd {
	return nil
}

func (m *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyCtrlO:
			return m.Update(ToggleCodeMsg{})
		case tea.KeyCtrlL:
			m.showLogs = !m.showLogs
			m.recalcLayout()
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			cmds = append(cmds, m.route(m.chatPanel, msg))
			return m, tea.Batch(cmds...)
		}
		cmds = append(cmds, m.route(m.inputPanel, msg))

	case InputSubmitMsg:
		select {
		case m.InputCh <- msg.Text:
		default:
		}

	case StateMsg:
		// The seed snapshot can race bus events; never step backwards.
		if msg.State.Version != 0 && msg.State.Version <= m.version {
			return m, nil
		}
		m.version = msg.State.Version
		cmds = append(cmds,
			m.route(m.chatPanel, msg),
			m.route(m.artifactPanel, msg),
			m.route(m.inputPanel, msg),
		)

	case InputRejectedMsg:
		cmds = append(cmds, m.route(m.inputPanel, msg))

	case ToggleCodeMsg:
		cmds = append(cmds, m.route(m.artifactPanel, msg))

	case LogLineMsg:
		cmds = append(cmds, m.route(m.logPanel, msg))

	case tea.MouseMsg:
		cmds = append(cmds, m.route(m.chatPanel, msg))

	default:
		// Spinner ticks and cursor blinks belong to the input panel.
		cmds = append(cmds, m.route(m.inputPanel, msg))
	}

	return m, tea.Batch(cmds...)
}

func (m *App) route(p Panel, msg tea.Msg) tea.Cmd {
	_, cmd := p.Update(msg)
	return cmd
}

func (m *App) View() string {
	if m.width == 0 || m.height == 0 {
		return "initializing..."
	}

	hsep := separatorStyle.Render(strings.Repeat("─", m.width))
	var rows []string
	rows = append(rows, m.header())
	if m.showLogs {
		rows = append(rows, m.logPanel.View(), hsep)
	}

	if m.sideBySide() {
		chatH := m.bodyHeight()
		vsep := separatorStyle.Render(strings.TrimRight(strings.Repeat("│\n", chatH), "\n"))
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top,
			m.chatPanel.View(), vsep, " ", m.artifactPanel.View(),
		))
	} else {
		rows = append(rows, m.chatPanel.View(), hsep, m.artifactPanel.View())
	}

	rows = append(rows, hsep, m.inputPanel.View())
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m *App) header() string {
	help := "ctrl+o code · ctrl+l logs · /quit exit"
	gap := max(m.width-lipgloss.Width("HyperMath")-lipgloss.Width(help), 1)
	return headerStyle.Render("HyperMath") + strings.Repeat(" ", gap) + helpStyle.Render(help)
}

func (m *App) sideBySide() bool { return m.width >= sideBySideMinWidth }

// bodyHeight is the height shared by the chat and artifact panels.
func (m *App) bodyHeight() int {
	const headerH, inputH = 1, 1
	used := headerH + inputH + 1 // input separator
	if m.showLogs {
		used += m.logHeight() + 1
	}
	return max(m.height-used, 2)
}

func (m *App) logHeight() int {
	return max(int(float64(m.height)*m.logRatio), 1)
}

func (m *App) recalcLayout() {
	if m.showLogs {
		m.logPanel.SetSize(m.width, m.logHeight())
	}
	m.inputPanel.SetSize(m.width, 1)

	body := m.bodyHeight()
	if m.sideBySide() {
		chatW := int(float64(m.width) * chatWidthRatio)
		m.chatPanel.SetSize(chatW, body)
		m.artifactPanel.SetSize(max(m.width-chatW-2, 1), body)
		return
	}
	artH := max(int(float64(body)*stackedArtifactRatio), 3)
	chatH := max(body-artH-1, 1)
	m.chatPanel.SetSize(m.width, chatH)
	m.artifactPanel.SetSize(m.width, artH)
}

// ShowingLogs reports whether the log panel is visible.
func (m *App) ShowingLogs() bool { return m.showLogs }

package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"emprenix/internal/models"
)

// Chain is the TUI-facing subset of the retrieval chain.
type Chain interface {
	Query(ctx context.Context, question string) (*models.PromptResponse, error)
}

type answerMsg struct {
	res *models.PromptResponse
	err error
}

// Model is the Bubble Tea model for the terminal chat.
type Model struct {
	ctx      context.Context
	chain    Chain
	input    textinput.Model
	viewport viewport.Model
	history  []models.Message
	status   string
	loading  bool
	ready    bool
}

func New(ctx context.Context, chain Chain) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask us anything about how Emprenix can help you!"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		ctx:      ctx,
		chain:    chain,
		input:    ti,
		viewport: viewport.New(0, 0),
		status:   "Doesn´t matter the language, ask anything you need!",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := historyBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + ih + 1 // header, status, input box
		m.viewport.Width = max(20, msg.Width-4)
		m.viewport.Height = max(3, msg.Height-reserved-bh)
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.loading {
				return m, nil
			}
			m.loading = true
			m.status = "Thinking..."
			m.input.SetValue("")
			return m, m.ask(q)
		}
	case answerMsg:
		m.loading = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.history = msg.res.History
		m.status = ""
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(question string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.chain.Query(m.ctx, question)
		return answerMsg{res: res, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(renderHistory(m.history, m.viewport.Width))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("Chat with Us, know me and let´s contact!")
	history := historyBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + history + "\n" + input + "\n" + status
}

// renderHistory styles entries by position: even entries are the user's,
// odd entries the assistant's.
func renderHistory(history []models.Message, width int) string {
	if len(history) == 0 {
		return "No messages yet."
	}
	parts := make([]string, len(history))
	for i, msg := range history {
		if i%2 == 0 {
			parts[i] = userStyle.Width(width).Render("You: " + msg.Content)
		} else {
			parts[i] = assistantStyle.Width(width).Render("Emprenix: " + msg.Content)
		}
	}
	return strings.Join(parts, "\n")
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	historyBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#2b313e")).Padding(0, 1)
	assistantStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#475063")).Padding(0, 1)
)

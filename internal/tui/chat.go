package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"clara/internal/rag"
)

const helpText = `Commands:
  /context - show the sources behind the last answer
  /clear   - clear conversation history
  /exit    - quit
  /help    - show this help
Ctrl-C cancels a running query.`

type chatModel struct {
	viewport    viewport.Model
	input       textinput.Model
	spinner     spinner.Model
	renderer    *glamour.TermRenderer
	messages    []chatMessage
	orch        *rag.Orchestrator
	ctx         context.Context
	cancelQuery context.CancelFunc
	sessionID   string
	width       int
	height      int
	initialized bool
}

type chatMessage struct {
	role    string
	content string
}

// answerMsg is sent when a query completes.
type answerMsg struct {
	result *rag.Result
	err    error
}

func newChatModel(ctx context.Context, orch *rag.Orchestrator, sessionID string) chatModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle

	ti := textinput.New()
	ti.Placeholder = "Ask a question about your codebase..."
	ti.CharLimit = 2000
	ti.Focus()

	return chatModel{
		spinner:   sp,
		input:     ti,
		orch:      orch,
		ctx:       ctx,
		sessionID: sessionID,
	}
}

func (m *chatModel) initViewport(width, height int) {
	m.width = width
	m.height = height

	// Layout: viewport + status bar (1 line) + input (1 line) + borders/gaps (1 line).
	vpHeight := height - 3
	if vpHeight < 5 {
		vpHeight = 5
	}
	m.viewport = viewport.New(width, vpHeight)
	m.viewport.SetContent(dimStyle.Render("Ask a question about your codebase.\n\nCommands: /help, /context, /clear, /exit"))

	m.input.Width = width - 4

	// Create glamour renderer matched to current width.
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-2),
	)
	if err == nil {
		m.renderer = r
	}

	m.initialized = true
}

func (m chatModel) busy() bool { return m.cancelQuery != nil }

func (m chatModel) cancel() {
	if m.cancelQuery != nil {
		m.cancelQuery()
	}
}

func askQuestion(ctx context.Context, orch *rag.Orchestrator, question string) tea.Cmd {
	return func() tea.Msg {
		res, err := orch.Ask(ctx, question)
		return answerMsg{result: res, err: err}
	}
}

func (m chatModel) Update(msg tea.Msg) (chatModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.initViewport(msg.Width, msg.Height)
		m.refresh()
		return m, nil

	case answerMsg:
		m.cancelQuery = nil
		switch {
		case errors.Is(msg.err, context.Canceled):
			m.messages = append(m.messages, chatMessage{role: "system", content: "Query cancelled."})
		case msg.err != nil:
			m.messages = append(m.messages, chatMessage{role: "error", content: msg.err.Error()})
		default:
			m.messages = append(m.messages, chatMessage{role: "assistant", content: msg.result.Answer})
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.busy() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			// Re-render viewport so the spinner frame updates.
			m.refresh()
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		if m.busy() {
			return m, nil
		}
		switch msg.Type {
		case tea.KeyEnter:
			question := strings.TrimSpace(m.input.Value())
			if question == "" {
				return m, nil
			}
			m.input.Reset()

			switch question {
			case "/exit", "/quit":
				return m, tea.Quit
			case "/clear":
				m.messages = nil
				m.orch.History().Clear()
				m.viewport.SetContent(dimStyle.Render("Conversation cleared."))
				return m, nil
			case "/help":
				m.messages = append(m.messages, chatMessage{role: "system", content: helpText})
				m.refresh()
				return m, nil
			case "/context":
				m.messages = append(m.messages, chatMessage{role: "system", content: lastContext(m.orch)})
				m.refresh()
				return m, nil
			}

			m.messages = append(m.messages, chatMessage{role: "user", content: question})
			ctx, cancel := context.WithCancel(m.ctx)
			m.cancelQuery = cancel
			m.refresh()

			return m, tea.Batch(
				m.spinner.Tick,
				askQuestion(ctx, m.orch, question),
			)
		}
	}

	// Update text input.
	if !m.busy() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Update viewport (scrolling).
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *chatModel) refresh() {
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

// lastContext lists the sources of the most recent answer.
func lastContext(orch *rag.Orchestrator) string {
	last := orch.Last()
	if last == nil {
		return "No answer yet."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Condensed question: %s\n\nSources:\n", last.Condensed)
	for _, c := range last.Sources {
		fmt.Fprintf(&sb, "  - %s (%s)\n", c.SourcePath, c.Kind)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (m chatModel) renderMarkdown(content string) string {
	if m.renderer == nil {
		return assistantMsgStyle.Render(content)
	}
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return assistantMsgStyle.Render(content)
	}
	return strings.TrimRight(rendered, "\n")
}

func (m chatModel) renderMessages() string {
	var sb strings.Builder
	for _, msg := range m.messages {
		switch msg.role {
		case "user":
			sb.WriteString(userMsgStyle.Render("You: ") + msg.content + "\n\n")
		case "assistant":
			sb.WriteString(m.renderMarkdown(msg.content) + "\n\n")
		case "error":
			sb.WriteString(errorStyle.Render("Error: "+msg.content) + "\n\n")
		case "system":
			sb.WriteString(dimStyle.Render(msg.content) + "\n\n")
		}
	}

	if m.busy() {
		sb.WriteString(m.spinner.View() + " " + dimStyle.Render("Thinking...") + "\n")
	}

	return sb.String()
}

func (m chatModel) View(width, height int) string {
	if !m.initialized {
		return ""
	}

	statusText := "idle"
	if m.busy() {
		statusText = "thinking... (ctrl+c to cancel)"
	}
	turns := len(m.orch.History().Turns())
	statusBar := statusBarStyle.
		Width(m.width).
		Render(fmt.Sprintf(" clara • %s • %d turns in memory • %s", m.sessionID, turns, statusText))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewport.View(),
		statusBar,
		m.input.View(),
	)
}

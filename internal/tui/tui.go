// Package tui is the full-screen chat interface.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"clara/internal/index"
	"clara/internal/rag"
)

// ViewState represents which screen is active.
type ViewState int

const (
	ViewIndexing ViewState = iota
	ViewChat
)

// programRef is an indirect pointer to the tea.Program so background goroutines
// can send messages. It must be set after tea.NewProgram returns but before Run.
type programRef struct {
	p *tea.Program
}

func (r *programRef) send(msg tea.Msg) {
	if r != nil && r.p != nil {
		r.p.Send(msg)
	}
}

// Config holds configuration passed from the CLI layer.
type Config struct {
	Root    string
	Indexer *index.Indexer
	// NewOrchestrator builds the query pipeline over an opened index.
	NewOrchestrator func(*index.Index) (*rag.Orchestrator, error)
	// SessionID labels the status bar.
	SessionID string

	// program is set internally so background goroutines can send messages.
	program *programRef
}

// Model is the top-level Bubble Tea model.
type Model struct {
	state  ViewState
	config Config
	ctx    context.Context
	width  int
	height int

	indexing indexingModel
	chat     chatModel
	idx      *index.Index
	err      error
}

// New creates a new TUI model with the given config.
func New(ctx context.Context, cfg Config) Model {
	return Model{
		state:    ViewIndexing,
		config:   cfg,
		ctx:      ctx,
		indexing: newIndexingModel(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.indexing.spinner.Tick, runIndex(m.ctx, m.config))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.state == ViewChat {
			var c tea.Cmd
			m.chat, c = m.chat.Update(msg)
			return m, c
		}
		return m, nil

	case tea.KeyMsg:
		// Global quit.
		switch msg.String() {
		case "ctrl+c":
			if m.state == ViewChat && m.chat.busy() {
				m.chat.cancel()
				return m, nil
			}
			return m, tea.Quit
		case "q":
			if m.state != ViewChat {
				return m, tea.Quit
			}
		}
	}

	var cmd tea.Cmd

	switch m.state {
	case ViewIndexing:
		m.indexing, cmd = m.indexing.Update(msg)
		if done, ok := msg.(indexDoneMsg); ok && done.err == nil {
			m.idx = done.index
		}
		if cmd != nil {
			return m, cmd
		}
		// Handle Enter after indexing completes.
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter && m.indexing.done {
			if m.indexing.err != nil {
				return m, tea.Quit
			}
			return m, m.transitionToChat()
		}

	case ViewChat:
		m.chat, cmd = m.chat.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) transitionToChat() tea.Cmd {
	orch, err := m.config.NewOrchestrator(m.idx)
	if err != nil {
		m.err = err
		return nil
	}
	m.chat = newChatModel(m.ctx, orch, m.config.SessionID)
	m.chat.initViewport(m.width, m.height)
	m.state = ViewChat
	return nil
}

func (m Model) View() string {
	if m.err != nil {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}

	switch m.state {
	case ViewIndexing:
		return m.indexing.View(m.width, m.height)
	case ViewChat:
		return m.chat.View(m.width, m.height)
	}
	return ""
}

// Run starts the TUI program and closes the index when it exits.
func Run(ctx context.Context, cfg Config) error {
	ref := &programRef{}
	cfg.program = ref
	model := New(ctx, cfg)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	ref.p = p
	final, err := p.Run()
	if m, ok := final.(Model); ok && m.idx != nil {
		m.idx.Close()
	}
	return err
}

package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"clara/internal/index"
)

type indexingModel struct {
	spinner        spinner.Model
	phase          string
	filesProcessed int
	filesTotal     int
	done           bool
	reused         bool
	stats          index.Stats
	err            error
}

func newIndexingModel() indexingModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle
	return indexingModel{
		spinner: sp,
		phase:   "Loading index...",
	}
}

// indexDoneMsg is sent when indexing completes.
type indexDoneMsg struct {
	index *index.Index
	err   error
}

// indexProgressMsg is sent periodically during indexing.
type indexProgressMsg struct {
	phase          string
	filesProcessed int
	filesTotal     int
}

func runIndex(ctx context.Context, cfg Config) tea.Cmd {
	return func() tea.Msg {
		idx := cfg.Indexer.WithProgress(func(phase string, processed, total int) {
			cfg.program.send(indexProgressMsg{
				phase:          phase,
				filesProcessed: processed,
				filesTotal:     total,
			})
		})
		i, err := idx.Ingest(ctx, cfg.Root)
		return indexDoneMsg{index: i, err: err}
	}
}

func (m indexingModel) Update(msg tea.Msg) (indexingModel, tea.Cmd) {
	switch msg := msg.(type) {
	case indexDoneMsg:
		m.done = true
		m.err = msg.err
		if msg.index != nil {
			m.reused = msg.index.Reused
			m.stats = msg.index.Stats
		}
		return m, nil
	case indexProgressMsg:
		m.phase = msg.phase
		m.filesProcessed = msg.filesProcessed
		m.filesTotal = msg.filesTotal
		return m, nil
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m indexingModel) View(width, height int) string {
	s := "\n"
	s += titleStyle.Render("  clara") + "\n\n"

	if m.done {
		if m.err != nil {
			s += errorStyle.Render(fmt.Sprintf("  Error: %v", m.err)) + "\n\n"
			s += dimStyle.Render("  Press Enter or q to quit.") + "\n"
			return s
		}
		if m.reused {
			s += successStyle.Render("  ✓ Loaded persisted index") + "\n"
			s += dimStyle.Render("  Run 'clara index --force' to rebuild it.") + "\n"
		} else {
			s += successStyle.Render("  ✓ Indexing complete!") + "\n\n"
			s += fmt.Sprintf("  Files: %d total, %d indexed, %d skipped\n",
				m.stats.FilesTotal, m.stats.FilesIndexed, m.stats.FilesSkipped)
			s += fmt.Sprintf("  Chunks: %d\n", m.stats.ChunksTotal)
		}
		s += "\n"
		s += dimStyle.Render("  Press Enter to start chatting") + "\n"
		return s
	}

	s += fmt.Sprintf("  %s %s\n", m.spinner.View(), m.phase)
	if m.filesTotal > 0 {
		s += fmt.Sprintf("  %d / %d files processed\n", m.filesProcessed, m.filesTotal)
	}
	s += "\n"
	s += dimStyle.Render("  This may take a while for large codebases...") + "\n"
	return s
}

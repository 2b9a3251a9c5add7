package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clara/internal/rag"
)

const replHelp = `Commands:
  /context - show the context used for the last answer
  /edit    - compose the question in $EDITOR
  /clear   - clear conversation history
  /help    - show this help
  /exit    - quit (also /quit or Ctrl-D)
Ctrl-C cancels a running query.`

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat interactively about the repository at --path",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		// From here on an interrupt only cancels the running query.
		return runREPL(context.WithoutCancel(ctx), s, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

// inflight holds the cancel func of the running query, if any.
type inflight struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (f *inflight) set(c context.CancelFunc) {
	f.mu.Lock()
	f.cancel = c
	f.mu.Unlock()
}

// interrupt cancels the running query and reports whether there was one.
func (f *inflight) interrupt() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel == nil {
		return false
	}
	f.cancel()
	return true
}

func runREPL(ctx context.Context, s *session, in io.Reader, out io.Writer) error {
	var running inflight
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			if !running.interrupt() {
				fmt.Fprintln(out, "\n(use /exit or Ctrl-D to quit)")
			}
		}
	}()

	histLog, err := os.OpenFile(s.persist.HistoryPath(s.index.Key), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logger.Warn("cannot open history log", zap.Error(err))
	} else {
		defer histLog.Close()
	}

	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, "clara chat (type /help for commands, /exit to quit)")
	fmt.Fprintln(out)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}

		switch question {
		case "/exit", "/quit":
			fmt.Fprintln(out, "Goodbye.")
			return nil
		case "/clear":
			s.orch.History().Clear()
			fmt.Fprintln(out, "Conversation cleared.")
			continue
		case "/help":
			fmt.Fprintln(out, replHelp)
			continue
		case "/context":
			printContext(out, s.orch.Last())
			continue
		case "/edit":
			edited, err := editQuestion()
			if err != nil {
				fmt.Fprintf(out, "edit failed: %v\n", err)
				continue
			}
			if edited == "" {
				continue
			}
			question = edited
			fmt.Fprintln(out, question)
		}

		if histLog != nil {
			fmt.Fprintln(histLog, question)
		}

		qctx, cancel := context.WithCancel(ctx)
		running.set(cancel)
		res, err := s.orch.Ask(qctx, question)
		running.set(nil)
		cancel()

		if err != nil {
			logger.Debug("query failed", zap.Error(err))
			fmt.Fprintf(out, "Error: %s\n\n", describeQueryError(err))
			continue
		}
		fmt.Fprintln(out)
		printAnswer(out, res)
	}

	return scanner.Err()
}

func printContext(out io.Writer, last *rag.Result) {
	if last == nil {
		fmt.Fprintln(out, "No answer yet.")
		return
	}
	fmt.Fprintf(out, "Condensed question: %s\n\n", last.Condensed)
	fmt.Fprintln(out, last.Context)
}

// editQuestion opens $EDITOR on a scratch file and returns what was saved.
func editQuestion() (string, error) {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}
	f, err := os.CreateTemp("", "clara-question-*.md")
	if err != nil {
		return "", err
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	c := exec.Command(editor, path)
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := c.Run(); err != nil {
		return "", fmt.Errorf("%s: %w", editor, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

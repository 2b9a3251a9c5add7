package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"clara/internal/rag"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question about the repository at --path",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := s.orch.Ask(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return errors.New(describeQueryError(err))
		}
		printAnswer(cmd.OutOrStdout(), res)
		return nil
	},
}

// printAnswer renders the answer as Markdown followed by its sources.
func printAnswer(out io.Writer, res *rag.Result) {
	rendered, err := glamour.Render(res.Answer, "auto")
	if err != nil {
		rendered = res.Answer + "\n"
	}
	fmt.Fprint(out, rendered)
	if len(res.Sources) == 0 {
		return
	}
	fmt.Fprintln(out, "Sources:")
	seen := make(map[string]bool)
	for _, c := range res.Sources {
		if seen[c.SourcePath] {
			continue
		}
		seen[c.SourcePath] = true
		fmt.Fprintf(out, "  - %s\n", c.SourcePath)
	}
	fmt.Fprintln(out)
}

func init() {
	rootCmd.AddCommand(askCmd)
}

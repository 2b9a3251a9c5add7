package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"clara/internal/index"
	"clara/internal/persist"
)

var flagYes bool

var cleanCmd = &cobra.Command{
	Use:   "clean [path]",
	Short: "Delete the persisted index for path (default --path)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		usePathArg(args)
		ps, err := openPersist()
		if err != nil {
			return err
		}
		key, err := index.KeyFor(flagPath)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if !ps.HasState(key) {
			return fmt.Errorf("no index for %s: %w", flagPath, persist.ErrNotFound)
		}

		if !flagYes {
			ok, err := confirm(cmd.InOrStdin(), out, fmt.Sprintf("Delete %s?", ps.Dir(key)))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(out, "Aborted.")
				return nil
			}
		}

		if err := ps.Clean(key); err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed %s\n", ps.Dir(key))
		return nil
	},
}

// confirm asks a yes/no question, defaulting to no.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func init() {
	cleanCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(cleanCmd)
}

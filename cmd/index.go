package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var flagForce bool

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index the repository at path (default --path)",
	Args:  cobra.MaximumNArgs(1),
	Long: `Index the repository at --path. An existing index is reused as is,
even if files changed since it was built; pass --force to rebuild it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		usePathArg(args)
		idx, _, err := newIndexer(flagForce)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Indexing %s...\n", flagPath)
		start := time.Now()

		i, err := idx.Ingest(cmd.Context(), flagPath)
		if err != nil {
			return describeIngestError(err)
		}
		defer i.Close()
		elapsed := time.Since(start)

		if i.Reused {
			fmt.Fprintf(out, "Index already exists at %s (use --force to rebuild)\n", i.Dir)
			return nil
		}
		fmt.Fprintf(out, "\nDone in %s\n", elapsed.Round(time.Millisecond))
		fmt.Fprintf(out, "  Files:   %d total, %d indexed, %d skipped\n",
			i.Stats.FilesTotal, i.Stats.FilesIndexed, i.Stats.FilesSkipped)
		fmt.Fprintf(out, "  Chunks:  %d\n", i.Stats.ChunksTotal)
		fmt.Fprintf(out, "  Stored:  %s\n", i.Dir)
		return nil
	},
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "rebuild even if an index exists")
	rootCmd.AddCommand(indexCmd)
}

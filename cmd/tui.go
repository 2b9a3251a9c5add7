package cmd

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"clara/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Chat with the repository in a full-screen interface",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd.Context())
	},
}

func runTUI(ctx context.Context) error {
	idx, _, err := newIndexer(false)
	if err != nil {
		return err
	}
	return tui.Run(ctx, tui.Config{
		Root:            flagPath,
		Indexer:         idx,
		NewOrchestrator: newOrchestrator,
		SessionID:       uuid.NewString()[:8],
	})
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"clara/internal/config"
	"clara/internal/index"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show where configuration and the index for --path are stored",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := flagConfig
		if path == "" {
			p, err := config.DefaultPath()
			if err != nil {
				return err
			}
			path = p
		}
		ps, err := openPersist()
		if err != nil {
			return err
		}
		key, err := index.KeyFor(flagPath)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Config file:  %s\n", path)
		fmt.Fprintf(out, "Cache dir:    %s\n", ps.BaseDir())
		fmt.Fprintf(out, "Persist key:  %s\n", key)
		fmt.Fprintf(out, "Index dir:    %s\n", ps.Dir(key))
		fmt.Fprintf(out, "Indexed:      %t\n", ps.Exists(key))
		fmt.Fprintf(out, "LLM:          %s (%s)\n", cfg.LLM.Name, cfg.LLM.Provider)
		fmt.Fprintf(out, "Embeddings:   %s\n", cfg.Embedding.Model)
		fmt.Fprintf(out, "Retrieval:    %s, k=%d\n", cfg.Index.SearchType, cfg.Index.K)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

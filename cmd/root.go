package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clara/internal/config"
	"clara/internal/logging"
)

var (
	flagConfig string
	flagDebug  bool
	flagPath   string

	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "clara",
	Short: "Ask questions about a code repository",
	Long: `clara indexes a repository into a local vector store and answers
natural-language questions about it with a language model.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return bootstrap()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd.Context())
	},
}

// Execute runs the root command. An interrupt cancels the command's context
// so a running ingestion can discard its staging directory.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default $XDG_CONFIG_HOME/clara/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging (or set "+logging.DebugEnvVar+"=1)")
	rootCmd.PersistentFlags().StringVarP(&flagPath, "path", "p", ".", "repository root")
}

// bootstrap loads .env, the config file and the logger once per invocation.
func bootstrap() error {
	// A missing .env is fine; provider keys may come from the real environment.
	_ = godotenv.Load()

	path := flagConfig
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	c, err := config.Load(path)
	if err != nil {
		return err
	}
	if flagDebug || logging.DebugFromEnv() {
		c.Debug = true
	}
	cfg = c

	l, err := logging.New(cfg.Debug)
	if err != nil {
		return err
	}
	logger = l
	logger.Debug("loaded config", zap.String("path", path))
	return nil
}

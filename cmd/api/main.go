package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nosotros/api/internal/config"
	"nosotros/api/internal/logging"
)

var (
	cfg    config.Config
	logger *zap.Logger
	debug  bool
)

var rootCmd = &cobra.Command{
	Use:   "api",
	Short: "Nosotros couple tracker API",
	Long: `Nosotros keeps a couple's shared document: plans, calendar, notes,
reasons, moods, challenges, a virtual pet and achievements.

Configuration is read from the environment, optionally filled from the
YAML file named by CONFIG_FILE.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if debug {
			cfg.Debug = true
		}
		var err error
		logger, err = logging.New(logging.Config{Debug: cfg.Debug, LogFile: cfg.LogFile})
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd, migrateCmd, pairCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"symposium/internal/config"
	"symposium/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	config    string
	logLevel  string
	logFormat string
}

// cfg is loaded once per invocation in the persistent pre-run.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "symposium",
	Short: "Conference session reporting pipeline",
	Long: "Symposium turns raw conference materials into reviewed session reports:\n" +
		"it matches uploaded artifacts to scheduled sessions, summarizes and\n" +
		"fact-checks each session, and publishes Markdown reports with human\n" +
		"review gates along the way.",
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logging.Init(logging.ParseLevel(rootFlags.logLevel), rootFlags.logFormat, cmd.ErrOrStderr())
		var err error
		if cfg, err = config.Load(rootFlags.config); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&rootFlags.config, "config", "c", "symposium.yaml", "Path to the pipeline config file")
	pf.StringVar(&rootFlags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&rootFlags.logFormat, "log-format", "text", "Log format (text, json)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

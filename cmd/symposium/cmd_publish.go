package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"symposium/internal/engine"
)

var publishCmd = &cobra.Command{
	Use:   "publish <run-id>",
	Short: "Render the run's Markdown reports",
	Args:  cobra.ExactArgs(1),
	RunE:  runPublish,
}

func runPublish(cmd *cobra.Command, args []string) error {
	return stepPhase(args[0], engine.PhaseEvaluated, func(eng *engine.Engine, st *engine.RunState) error {
		if err := eng.Publish(st); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Run %s published.\nReports: %s\n", st.RunID, st.ReportPath)
		return nil
	})
}

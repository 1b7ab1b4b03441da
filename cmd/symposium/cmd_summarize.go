package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"symposium/internal/engine"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <run-id>",
	Short: "Generate a narrative summary per session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSummarize,
}

func runSummarize(cmd *cobra.Command, args []string) error {
	return stepPhase(args[0], engine.PhaseMatched, func(eng *engine.Engine, st *engine.RunState) error {
		if err := eng.Summarize(cmd.Context(), st); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Run %s: %d summaries, %d failures.\n",
			st.RunID, len(st.Summaries), len(st.SummaryErrors))
		return nil
	})
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"symposium/internal/engine"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <run-id>",
	Short: "Fact-check every summary against its source material",
	Long: `Scores each session's summary. Exits 2 and exports
review/evaluations.json when any session carries QA flags or scores
under the configured floor.`,
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	return stepPhase(args[0], engine.PhaseSummarized, func(eng *engine.Engine, st *engine.RunState) error {
		if err := eng.Evaluate(cmd.Context(), st); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Run %s: %d sessions evaluated.\n", st.RunID, len(st.Evaluations))
		return nil
	})
}

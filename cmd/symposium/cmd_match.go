package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"symposium/internal/engine"
)

var matchCmd = &cobra.Command{
	Use:   "match <run-id>",
	Short: "Match extracted artifacts to sessions",
	Long: `Scores every artifact against every session. Exits 2 and exports
review/matches.json when any match falls below the confidence threshold,
any artifact stays unmatched, or any session has no materials.`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func runMatch(cmd *cobra.Command, args []string) error {
	return stepPhase(args[0], engine.PhaseIngested, func(eng *engine.Engine, st *engine.RunState) error {
		if err := eng.Match(st); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Run %s: %d matches, %d unmatched artifacts, %d sessions without materials.\n",
			st.RunID, len(st.Matches), len(st.UnmatchedArtifactIDs), len(st.SessionsWithoutMatches))
		return nil
	})
}

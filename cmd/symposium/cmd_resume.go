package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Continue a halted run from its persisted state",
	Long: `Loads the run's state and continues from the last completed phase.
At a review gate the edited sheet under the run's review/ directory is
validated and merged before the run moves on.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func runResume(cmd *cobra.Command, args []string) error {
	eng, catalog, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer catalog.Close()

	st, err := eng.Resume(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Run %s published.\nReports: %s\n", st.RunID, st.ReportPath)
	return nil
}

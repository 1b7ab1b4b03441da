package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var runFlags struct {
	runID string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a full pipeline run, halting at review gates",
	Long: `Creates a new run and drives it through ingest, match, summarize,
evaluate, and publish. When a review gate fires the run halts with exit
code 2 and an editable sheet under the run's review/ directory; continue
with 'symposium resume'.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runFlags.runID, "run-id", "", "Run ID (default: random UUID)")
}

func runRun(cmd *cobra.Command, _ []string) error {
	runID := runFlags.runID
	if runID == "" {
		runID = uuid.NewString()
	}

	eng, catalog, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer catalog.Close()

	st, err := eng.Run(cmd.Context(), runID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Run %s published.\nReports: %s\n", st.RunID, st.ReportPath)
	return nil
}

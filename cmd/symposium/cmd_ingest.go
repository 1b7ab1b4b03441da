package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"symposium/internal/engine"
)

var ingestFlags struct {
	runID string
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Create a run and load its roster and session materials",
	Args:  cobra.NoArgs,
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFlags.runID, "run-id", "", "Run ID (default: random UUID)")
}

func runIngest(cmd *cobra.Command, _ []string) error {
	runID := ingestFlags.runID
	if runID == "" {
		runID = uuid.NewString()
	}

	eng, catalog, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer catalog.Close()

	lock, err := engine.AcquireLock(cfg.DataDir, runID)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := eng.CreateRun(runID)
	if err != nil {
		return err
	}
	if err := eng.Ingest(st); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Run %s: %d sessions, %d artifacts, %d extraction failures.\n",
		st.RunID, len(st.Sessions), len(st.Artifacts), len(st.ExtractFailures))
	return nil
}

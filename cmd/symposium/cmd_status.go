package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"symposium/internal/engine"
	"symposium/internal/evaluate"
	"symposium/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show run state; with no argument, list all runs",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		catalog, err := store.Open(catalogPath(cfg))
		if err != nil {
			return fmt.Errorf("open run catalog: %w", err)
		}
		defer catalog.Close()
		runs, err := catalog.ListRuns()
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs yet. Start one with 'symposium run'.")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(out, "%s  %-22s %s\n", r.RunID, r.Phase, r.UpdatedAt)
		}
		return nil
	}

	st, err := engine.LoadState(cfg.DataDir, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Run:       %s\n", st.RunID)
	fmt.Fprintf(out, "Event:     %s\n", st.Event)
	fmt.Fprintf(out, "Phase:     %s\n", st.Phase)
	fmt.Fprintf(out, "Sessions:  %d\n", len(st.Sessions))
	fmt.Fprintf(out, "Artifacts: %d\n", len(st.Artifacts))
	if len(st.Matches) > 0 || len(st.UnmatchedArtifactIDs) > 0 {
		fmt.Fprintf(out, "Matches:   %d (%d artifacts unmatched, %d sessions without materials)\n",
			len(st.Matches), len(st.UnmatchedArtifactIDs), len(st.SessionsWithoutMatches))
	}
	if len(st.Summaries) > 0 || len(st.SummaryErrors) > 0 {
		fmt.Fprintf(out, "Summaries: %d ok, %d failed\n", len(st.Summaries), len(st.SummaryErrors))
	}
	if len(st.Evaluations) > 0 {
		var flags []evaluate.Flag
		for _, r := range st.Evaluations {
			flags = append(flags, r.Flags...)
		}
		if len(flags) == 0 {
			fmt.Fprintf(out, "QA flags:  none\n")
		} else {
			counts := evaluate.Breakdown(flags)
			types := make([]string, 0, len(counts))
			for t := range counts {
				types = append(types, t)
			}
			sort.Strings(types)
			parts := make([]string, len(types))
			for i, t := range types {
				parts[i] = fmt.Sprintf("%s: %d", t, counts[t])
			}
			fmt.Fprintf(out, "QA flags:  %d (%s)\n", len(flags), strings.Join(parts, ", "))
		}
	}
	if st.ReportPath != "" {
		fmt.Fprintf(out, "Reports:   %s\n", st.ReportPath)
	}
	if st.Phase.Gate() {
		fmt.Fprintf(out, "\nRun is waiting on review. Edit the sheet under %s and run 'symposium resume %s'.\n",
			engine.ReviewDir(cfg.DataDir, st.RunID), st.RunID)
	}
	if len(st.History) > 0 {
		fmt.Fprintf(out, "History: (%d steps)\n", len(st.History))
		for _, h := range st.History {
			fmt.Fprintf(out, "  %s -> %s  %s  %s\n", h.From, h.To, h.Outcome, h.Timestamp)
		}
	}
	return nil
}

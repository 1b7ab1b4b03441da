package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"symposium/internal/config"
	"symposium/internal/evaluate"
	"symposium/internal/match"
	"symposium/internal/review"
	"symposium/internal/store"
	"symposium/internal/summarize"
)

// stubSummarizer returns a fixed narrative per session, failing the
// sessions listed in fail.
type stubSummarizer struct {
	fail map[string]bool
}

func (s *stubSummarizer) Name() string { return "stub" }

func (s *stubSummarizer) Summarize(_ context.Context, req summarize.Request) (string, error) {
	if s.fail[req.Session.ID] {
		return "", fmt.Errorf("backend unavailable")
	}
	return "Narrative for " + req.Session.ID, nil
}

// stubEvaluator passes everything except sessions listed in flags.
type stubEvaluator struct {
	flags map[string][]evaluate.Flag
}

func (e *stubEvaluator) Name() string { return "stub" }

func (e *stubEvaluator) Evaluate(_ context.Context, req evaluate.Request) (evaluate.Result, error) {
	fl := e.flags[req.Session.ID]
	score := evaluate.MaxScore - len(fl)
	return evaluate.Result{Score: score, Status: evaluate.StatusFor(len(fl)), Flags: fl}, nil
}

// testConfig builds a config over temp dirs with a two-session roster
// and one matching artifact per session.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()

	rosterPath := filepath.Join(root, "roster.json")
	rosterJSON := `{"sessions": [
		{"id": "dwarf", "title": "DWARF Debugging Format", "track": "Tooling"},
		{"id": "mape", "title": "MAPE Working Group"}
	]}`
	if err := os.WriteFile(rosterPath, []byte(rosterJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	inputs := filepath.Join(root, "inputs")
	if err := os.MkdirAll(inputs, 0o755); err != nil {
		t.Fatal(err)
	}
	writeInput(t, inputs, "dwarf_notes.md", "Notes from the DWARF debugging format session.")
	writeInput(t, inputs, "mape_agenda.md", "Agenda for the MAPE working group.")

	cfg := config.Default()
	cfg.Event = "testconf-2025"
	cfg.RosterPath = rosterPath
	cfg.InputsDir = inputs
	cfg.DataDir = filepath.Join(root, "data")
	cfg.ReportDir = filepath.Join(root, "reports")
	cfg.Workers = 2
	cfg.CallTimeout = config.Duration(5 * time.Second)
	cfg.Retries = 0
	return cfg
}

func writeInput(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// sheetManualMatch is a reviewer-added match entry.
func sheetManualMatch(artifactID, sessionID string) match.Match {
	return match.Match{
		ArtifactID: artifactID,
		SessionID:  sessionID,
		Confidence: 1,
		Method:     "manual",
		Rationale:  "assigned during review",
	}
}

func newTestEngine(cfg *config.Config, sum *stubSummarizer, eval *stubEvaluator, cat store.Store) *Engine {
	if sum == nil {
		sum = &stubSummarizer{}
	}
	if eval == nil {
		eval = &stubEvaluator{}
	}
	return New(cfg, sum, eval, cat)
}

func TestRunPublishesCleanRun(t *testing.T) {
	cfg := testConfig(t)
	cat := store.NewMemStore()
	e := newTestEngine(cfg, nil, nil, cat)

	st, err := e.Run(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.Phase != PhasePublished {
		t.Fatalf("phase = %s, want %s", st.Phase, PhasePublished)
	}
	if len(st.Matches) != 2 {
		t.Errorf("got %d matches, want 2: %+v", len(st.Matches), st.Matches)
	}
	if len(st.Summaries) != 2 || len(st.Evaluations) != 2 {
		t.Errorf("summaries=%d evaluations=%d, want 2 each", len(st.Summaries), len(st.Evaluations))
	}
	if _, err := os.Stat(st.ReportPath); err != nil {
		t.Errorf("report index missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(st.ReportPath), "dwarf.md")); err != nil {
		t.Errorf("session report missing: %v", err)
	}

	// History walks the phases in order with no gate stops.
	var phases []Phase
	for _, h := range st.History {
		phases = append(phases, h.To)
	}
	want := []Phase{PhaseIngested, PhaseMatched, PhaseSummarized, PhaseEvaluated, PhasePublished}
	if diff := cmp.Diff(want, phases); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}

	// Catalog mirrors the final phase and all transitions.
	run, err := cat.GetRun("run-1")
	if err != nil || run == nil {
		t.Fatalf("catalog GetRun: %v %v", run, err)
	}
	if run.Phase != string(PhasePublished) {
		t.Errorf("catalog phase = %s", run.Phase)
	}
	events, _ := cat.ListEvents("run-1")
	if len(events) != len(want) {
		t.Errorf("catalog has %d events, want %d", len(events), len(want))
	}
}

func TestRunHaltsAtMatchGate(t *testing.T) {
	cfg := testConfig(t)
	writeInput(t, cfg.InputsDir, "random_notes.md", "unrelated scribbles")
	e := newTestEngine(cfg, nil, nil, nil)

	st, err := e.Run(context.Background(), "run-1")
	if !errors.Is(err, ErrReviewRequired) {
		t.Fatalf("err = %v, want ErrReviewRequired", err)
	}
	if st.Phase != PhaseAwaitingMatchReview {
		t.Fatalf("phase = %s, want %s", st.Phase, PhaseAwaitingMatchReview)
	}
	if len(st.UnmatchedArtifactIDs) != 1 || st.UnmatchedArtifactIDs[0] != "random_notes.md" {
		t.Errorf("unmatched = %v", st.UnmatchedArtifactIDs)
	}

	sheetPath := filepath.Join(ReviewDir(cfg.DataDir, "run-1"), review.MatchSheetFile)
	if _, err := os.Stat(sheetPath); err != nil {
		t.Errorf("match sheet not exported: %v", err)
	}
	// The gate halt is persisted: a fresh load sees the same phase.
	loaded, err := LoadState(cfg.DataDir, "run-1")
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if loaded.Phase != PhaseAwaitingMatchReview {
		t.Errorf("persisted phase = %s", loaded.Phase)
	}
}

func TestTrackFilterRestrictsRun(t *testing.T) {
	cfg := testConfig(t)
	cfg.Track = "Tooling"
	e := newTestEngine(cfg, nil, nil, nil)

	// mape is filtered out, so its agenda file has nothing to match.
	st, err := e.Run(context.Background(), "run-1")
	if !errors.Is(err, ErrReviewRequired) {
		t.Fatalf("err = %v, want match gate", err)
	}
	if len(st.Sessions) != 1 || st.Sessions[0].ID != "dwarf" {
		t.Fatalf("sessions = %+v, want only dwarf", st.Sessions)
	}
	if len(st.UnmatchedArtifactIDs) != 1 || st.UnmatchedArtifactIDs[0] != "mape_agenda.md" {
		t.Errorf("unmatched = %v", st.UnmatchedArtifactIDs)
	}

	cfg.Track = "no-such-track"
	e = newTestEngine(cfg, nil, nil, nil)
	if _, err := e.Run(context.Background(), "run-2"); err == nil {
		t.Fatal("expected error for a track with no sessions")
	}
}

func TestResumeAfterMatchReview(t *testing.T) {
	cfg := testConfig(t)
	writeInput(t, cfg.InputsDir, "random_notes.md", "unrelated scribbles")
	e := newTestEngine(cfg, nil, nil, nil)

	if _, err := e.Run(context.Background(), "run-1"); !errors.Is(err, ErrReviewRequired) {
		t.Fatalf("expected match gate, got %v", err)
	}

	// Reviewer assigns the stray artifact to a session.
	sheetDir := ReviewDir(cfg.DataDir, "run-1")
	sheet, err := review.ReadMatchSheet(filepath.Join(sheetDir, review.MatchSheetFile))
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	sheet.Matches = append(sheet.Matches, sheetManualMatch("random_notes.md", "dwarf"))
	if _, err := review.WriteSheet(sheetDir, review.MatchSheetFile, sheet); err != nil {
		t.Fatalf("write sheet: %v", err)
	}

	st, err := e.Resume(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if st.Phase != PhasePublished {
		t.Fatalf("phase = %s, want %s", st.Phase, PhasePublished)
	}
	if len(st.UnmatchedArtifactIDs) != 0 {
		t.Errorf("unmatched after review = %v", st.UnmatchedArtifactIDs)
	}
	found := false
	for _, m := range st.Matches {
		if m.ArtifactID == "random_notes.md" && m.SessionID == "dwarf" {
			found = true
			if m.Review {
				t.Error("merged match still flagged for review")
			}
		}
	}
	if !found {
		t.Errorf("manual match lost: %+v", st.Matches)
	}
}

func TestResumeWithUneditedSheet(t *testing.T) {
	cfg := testConfig(t)
	writeInput(t, cfg.InputsDir, "random_notes.md", "unrelated scribbles")
	e := newTestEngine(cfg, nil, nil, nil)

	st, err := e.Run(context.Background(), "run-1")
	if !errors.Is(err, ErrReviewRequired) {
		t.Fatalf("expected match gate, got %v", err)
	}
	before := append([]match.Match(nil), st.Matches...)

	// Resuming over the untouched export accepts the results as-is.
	st, err = e.Resume(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if st.Phase != PhasePublished {
		t.Fatalf("phase = %s, want %s", st.Phase, PhasePublished)
	}
	if diff := cmp.Diff(before, st.Matches); diff != "" {
		t.Errorf("matches changed across an unedited review (-before +after):\n%s", diff)
	}
	if len(st.UnmatchedArtifactIDs) != 1 || st.UnmatchedArtifactIDs[0] != "random_notes.md" {
		t.Errorf("unmatched = %v, want the stray artifact kept", st.UnmatchedArtifactIDs)
	}
}

func TestResumeMissingSheetStaysAtGate(t *testing.T) {
	cfg := testConfig(t)
	writeInput(t, cfg.InputsDir, "random_notes.md", "unrelated scribbles")
	e := newTestEngine(cfg, nil, nil, nil)

	if _, err := e.Run(context.Background(), "run-1"); !errors.Is(err, ErrReviewRequired) {
		t.Fatalf("expected match gate, got %v", err)
	}
	sheetPath := filepath.Join(ReviewDir(cfg.DataDir, "run-1"), review.MatchSheetFile)
	if err := os.Remove(sheetPath); err != nil {
		t.Fatal(err)
	}

	// A deleted sheet is still a gate halt, not a fatal error.
	if _, err := e.Resume(context.Background(), "run-1"); !errors.Is(err, ErrReviewRequired) {
		t.Fatalf("err = %v, want ErrReviewRequired", err)
	}
	st, err := LoadState(cfg.DataDir, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if st.Phase != PhaseAwaitingMatchReview {
		t.Errorf("phase = %s after missing sheet", st.Phase)
	}
}

func TestResumeRejectsBadSheet(t *testing.T) {
	cfg := testConfig(t)
	writeInput(t, cfg.InputsDir, "random_notes.md", "unrelated scribbles")
	e := newTestEngine(cfg, nil, nil, nil)

	if _, err := e.Run(context.Background(), "run-1"); !errors.Is(err, ErrReviewRequired) {
		t.Fatalf("expected match gate, got %v", err)
	}

	sheetDir := ReviewDir(cfg.DataDir, "run-1")
	sheet, err := review.ReadMatchSheet(filepath.Join(sheetDir, review.MatchSheetFile))
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	sheet.Matches = append(sheet.Matches, sheetManualMatch("random_notes.md", "no-such-session"))
	if _, err := review.WriteSheet(sheetDir, review.MatchSheetFile, sheet); err != nil {
		t.Fatalf("write sheet: %v", err)
	}

	if _, err := e.Resume(context.Background(), "run-1"); !errors.Is(err, review.ErrReview) {
		t.Fatalf("err = %v, want review.ErrReview", err)
	}
	// Run stays at the gate.
	st, err := LoadState(cfg.DataDir, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if st.Phase != PhaseAwaitingMatchReview {
		t.Errorf("phase = %s after rejected sheet", st.Phase)
	}
}

func TestEvalGateAndResume(t *testing.T) {
	cfg := testConfig(t)
	eval := &stubEvaluator{flags: map[string][]evaluate.Flag{
		"dwarf": {{Type: "unverified", Description: "attendance claim"}},
	}}
	e := newTestEngine(cfg, nil, eval, nil)

	st, err := e.Run(context.Background(), "run-1")
	if !errors.Is(err, ErrReviewRequired) {
		t.Fatalf("err = %v, want ErrReviewRequired", err)
	}
	if st.Phase != PhaseAwaitingEvalReview {
		t.Fatalf("phase = %s, want %s", st.Phase, PhaseAwaitingEvalReview)
	}

	sheetDir := ReviewDir(cfg.DataDir, "run-1")
	sheetPath := filepath.Join(sheetDir, review.EvalSheetFile)
	sheet, err := review.ReadEvalSheet(sheetPath)
	if err != nil {
		t.Fatalf("read eval sheet: %v", err)
	}

	// Resuming with the flag still unresolved keeps the run halted.
	if _, err := e.Resume(context.Background(), "run-1"); !errors.Is(err, ErrReviewRequired) {
		t.Fatalf("unresolved sheet should keep the gate, got %v", err)
	}

	for i := range sheet.Entries {
		if sheet.Entries[i].SessionID == "dwarf" {
			sheet.Entries[i].Resolved = true
			sheet.Entries[i].Note = "Claim confirmed with the session chair."
		}
	}
	if _, err := review.WriteSheet(sheetDir, review.EvalSheetFile, sheet); err != nil {
		t.Fatalf("write eval sheet: %v", err)
	}

	st, err = e.Resume(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if st.Phase != PhasePublished {
		t.Fatalf("phase = %s, want %s", st.Phase, PhasePublished)
	}
	report, err := os.ReadFile(filepath.Join(filepath.Dir(st.ReportPath), "dwarf.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(report), "Claim confirmed with the session chair.") {
		t.Error("reviewer note missing from published report")
	}
}

func TestSummarizerFailureBecomesFlag(t *testing.T) {
	cfg := testConfig(t)
	sum := &stubSummarizer{fail: map[string]bool{"mape": true}}
	e := newTestEngine(cfg, sum, nil, nil)

	st, err := e.Run(context.Background(), "run-1")
	if !errors.Is(err, ErrReviewRequired) {
		t.Fatalf("err = %v, want eval gate from the failed summary", err)
	}
	if st.Phase != PhaseAwaitingEvalReview {
		t.Fatalf("phase = %s", st.Phase)
	}
	if _, ok := st.Summaries["dwarf"]; !ok {
		t.Error("healthy session lost its summary")
	}
	if st.SummaryErrors["mape"] == "" {
		t.Error("failed session has no recorded error")
	}
	res := st.Evaluations["mape"]
	if len(res.Flags) != 1 || res.Flags[0].Type != "summarizer-error" {
		t.Errorf("mape evaluation = %+v, want one summarizer-error flag", res)
	}
	if res.Score != 0 {
		t.Errorf("failed session score = %d, want 0", res.Score)
	}
}

func TestRunRefusesExistingRunID(t *testing.T) {
	cfg := testConfig(t)
	e := newTestEngine(cfg, nil, nil, nil)

	st, err := e.Run(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantHistory := len(st.History)

	if _, err := e.Run(context.Background(), "run-1"); err == nil {
		t.Fatal("second Run with the same id should refuse")
	} else if !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("err = %v, want the existing-run refusal", err)
	}

	// The completed run is untouched.
	loaded, err := LoadState(cfg.DataDir, "run-1")
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if loaded.Phase != PhasePublished {
		t.Errorf("phase = %s, want %s", loaded.Phase, PhasePublished)
	}
	if len(loaded.History) != wantHistory {
		t.Errorf("history has %d records, want %d", len(loaded.History), wantHistory)
	}
}

func TestRunLockContention(t *testing.T) {
	cfg := testConfig(t)
	lock, err := AcquireLock(cfg.DataDir, "run-1")
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	defer lock.Release()

	e := newTestEngine(cfg, nil, nil, nil)
	if _, err := e.Run(context.Background(), "run-1"); !errors.Is(err, ErrLocked) {
		t.Fatalf("err = %v, want ErrLocked", err)
	}
}

func TestLockReleaseAllowsReacquire(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireLock(dir, "run-1")
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if _, err := AcquireLock(dir, "run-1"); !errors.Is(err, ErrLocked) {
		t.Fatalf("second acquire: %v, want ErrLocked", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	again, err := AcquireLock(dir, "run-1")
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	_ = again.Release()
	// Double release is harmless.
	if err := lock.Release(); err != nil {
		t.Errorf("double release: %v", err)
	}
}

func TestStaleLockIsReclaimed(t *testing.T) {
	dir := t.TempDir()
	runDir := RunDir(dir, "run-1")
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		t.Fatal(err)
	}
	// A dead holder: no Linux pid reaches this high.
	if err := os.WriteFile(filepath.Join(runDir, "lock"), []byte("999999999\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	lock, err := AcquireLock(dir, "run-1")
	if err != nil {
		t.Fatalf("AcquireLock over stale lock: %v", err)
	}
	_ = lock.Release()
}

func TestUnreadableLockStaysHeld(t *testing.T) {
	dir := t.TempDir()
	runDir := RunDir(dir, "run-1")
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "lock"), []byte("not a pid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := AcquireLock(dir, "run-1"); !errors.Is(err, ErrLocked) {
		t.Fatalf("err = %v, want ErrLocked for an unidentifiable holder", err)
	}
}

func TestStateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	st := NewRunState("run-1", "testconf-2025")
	st.advance(PhaseIngested, "2 sessions")
	st.Summaries = map[string]string{"dwarf": "narrative"}

	if err := SaveState(dir, st); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	got, err := LoadState(dir, "run-1")
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if diff := cmp.Diff(st, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadStateCorrupt(t *testing.T) {
	dir := t.TempDir()
	runDir := RunDir(dir, "run-1")
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(runDir, StateFile), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadState(dir, "run-1"); !errors.Is(err, ErrStateCorrupt) {
		t.Fatalf("garbage state: err = %v, want ErrStateCorrupt", err)
	}

	// A state file holding a different run id is also corrupt.
	st := NewRunState("run-2", "ev")
	if err := SaveState(dir, st); err != nil {
		t.Fatal(err)
	}
	misplaced, err := os.ReadFile(filepath.Join(RunDir(dir, "run-2"), StateFile))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(runDir, StateFile), misplaced, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadState(dir, "run-1"); !errors.Is(err, ErrStateCorrupt) {
		t.Fatalf("mismatched run id: err = %v, want ErrStateCorrupt", err)
	}
}

func TestResumePublishedRunIsNoop(t *testing.T) {
	cfg := testConfig(t)
	e := newTestEngine(cfg, nil, nil, nil)
	if _, err := e.Run(context.Background(), "run-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	st, err := e.Resume(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if st.Phase != PhasePublished {
		t.Errorf("phase = %s", st.Phase)
	}
}

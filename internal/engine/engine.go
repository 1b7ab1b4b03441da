// Package engine drives a run through the reporting pipeline: ingest,
// match, summarize, evaluate, publish. Each phase persists its output
// to the run's state file before the next phase starts, and the two
// review gates halt the run until a human merges an edited sheet back
// in with resume.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"symposium/internal/artifact"
	"symposium/internal/config"
	"symposium/internal/evaluate"
	"symposium/internal/logging"
	"symposium/internal/match"
	"symposium/internal/publish"
	"symposium/internal/review"
	"symposium/internal/roster"
	"symposium/internal/store"
	"symposium/internal/summarize"
)

// ErrReviewRequired means the run halted at a gate. Not a failure: the
// run advanced as far as it can without a human. The CLI maps it to its
// own exit code.
var ErrReviewRequired = errors.New("engine: review required")

// Engine wires the pipeline stages to one config. The catalog is
// optional; a nil catalog just skips run indexing.
type Engine struct {
	cfg        *config.Config
	summarizer summarize.Summarizer
	evaluator  evaluate.Evaluator
	catalog    store.Store
	log        *slog.Logger
}

// New builds an engine. summarizer and evaluator must be non-nil;
// catalog may be nil.
func New(cfg *config.Config, s summarize.Summarizer, e evaluate.Evaluator, catalog store.Store) *Engine {
	return &Engine{
		cfg:        cfg,
		summarizer: s,
		evaluator:  e,
		catalog:    catalog,
		log:        logging.New("engine"),
	}
}

// ReviewDir returns the directory holding a run's review sheets.
func ReviewDir(dataDir, runID string) string {
	return filepath.Join(RunDir(dataDir, runID), review.Dir)
}

// CreateRun initializes and persists a new run in phase NEW. A run id
// with persisted state is refused: completed or in-flight runs are
// never silently recreated.
func (e *Engine) CreateRun(runID string) (*RunState, error) {
	statePath := filepath.Join(RunDir(e.cfg.DataDir, runID), StateFile)
	if _, err := os.Stat(statePath); err == nil {
		return nil, fmt.Errorf("engine: run %s already exists at %s; use 'symposium resume' to continue it", runID, statePath)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("engine: check existing state: %w", err)
	}
	st := NewRunState(runID, e.cfg.Event)
	if err := e.save(st); err != nil {
		return nil, err
	}
	e.log.Info("run created", "run_id", runID, "event", st.Event)
	return st, nil
}

// Run executes a new run from NEW until it publishes or hits a gate.
func (e *Engine) Run(ctx context.Context, runID string) (*RunState, error) {
	lock, err := AcquireLock(e.cfg.DataDir, runID)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	st, err := e.CreateRun(runID)
	if err != nil {
		return nil, err
	}
	return st, e.drive(ctx, st)
}

// Resume continues a persisted run from its current phase. At a gate it
// requires the run's edited review sheet and merges it before moving on.
func (e *Engine) Resume(ctx context.Context, runID string) (*RunState, error) {
	lock, err := AcquireLock(e.cfg.DataDir, runID)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	st, err := LoadState(e.cfg.DataDir, runID)
	if err != nil {
		return nil, err
	}
	if st.Phase.Terminal() {
		e.log.Info("run already published", "run_id", runID)
		return st, nil
	}

	switch st.Phase {
	case PhaseAwaitingMatchReview:
		if err := e.mergeMatchReview(st); err != nil {
			return st, err
		}
	case PhaseAwaitingEvalReview:
		if err := e.mergeEvalReview(st); err != nil {
			return st, err
		}
	}
	return st, e.drive(ctx, st)
}

// drive advances phase by phase until the run terminates or halts.
func (e *Engine) drive(ctx context.Context, st *RunState) error {
	for !st.Phase.Terminal() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch st.Phase {
		case PhaseNew:
			err = e.Ingest(st)
		case PhaseIngested:
			err = e.Match(st)
		case PhaseMatched:
			err = e.Summarize(ctx, st)
		case PhaseSummarized:
			err = e.Evaluate(ctx, st)
		case PhaseEvaluated:
			err = e.Publish(st)
		case PhaseAwaitingMatchReview, PhaseAwaitingEvalReview:
			return fmt.Errorf("%w: run %s is at %s; resume merges the reviewed sheet", ErrReviewRequired, st.RunID, st.Phase)
		default:
			return fmt.Errorf("engine: run %s in unexpected phase %s", st.RunID, st.Phase)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Ingest loads the roster, lightning talks, attendees, and extracts the
// session materials. Roster problems are fatal; a broken artifact file
// is recorded and skipped.
func (e *Engine) Ingest(st *RunState) error {
	sessions, err := roster.LoadSessions(e.cfg.RosterPath)
	if err != nil {
		return err
	}
	if e.cfg.Track != "" {
		sessions = roster.FilterByTrack(sessions, e.cfg.Track)
		if len(sessions) == 0 {
			return fmt.Errorf("%w: no sessions on track %q", roster.ErrRoster, e.cfg.Track)
		}
	}
	var talks []roster.LightningTalk
	if e.cfg.TalksPath != "" {
		if talks, err = roster.LoadTalksCSV(e.cfg.TalksPath); err != nil {
			return err
		}
	}
	var attendees []roster.Attendee
	if e.cfg.AttendeesPath != "" {
		if attendees, err = roster.LoadAttendeesCSV(e.cfg.AttendeesPath); err != nil {
			return err
		}
	}
	artifacts, failures, err := artifact.Scan(e.cfg.InputsDir, artifact.DefaultExtractors())
	if err != nil {
		return err
	}

	st.Sessions = sessions
	st.Talks = talks
	st.Attendees = roster.MergeSpeakers(attendees, talks)
	st.Artifacts = artifacts
	st.ExtractFailures = failures
	e.log.Info("ingested",
		"run_id", st.RunID,
		"sessions", len(sessions),
		"artifacts", len(artifacts),
		"extract_failures", len(failures))
	return e.transition(st, PhaseIngested, fmt.Sprintf("%d sessions, %d artifacts", len(sessions), len(artifacts)))
}

// Match scores every artifact against every session and halts at the
// match gate when any result needs a human: a low-confidence match, an
// unmatched artifact, or a session with no materials at all.
func (e *Engine) Match(st *RunState) error {
	res := match.New(e.cfg.MatchThreshold).Run(st.Sessions, st.Artifacts)
	st.Matches = res.Matches
	st.UnmatchedArtifactIDs = res.UnmatchedArtifactIDs
	st.SessionsWithoutMatches = res.SessionsWithoutMatches
	if err := e.transition(st, PhaseMatched, fmt.Sprintf("%d matches", len(res.Matches))); err != nil {
		return err
	}

	if !matchReviewNeeded(res) {
		return nil
	}
	sheet := review.MatchSheet{
		RunID:                  st.RunID,
		Threshold:              e.cfg.MatchThreshold,
		Matches:                res.Matches,
		UnmatchedArtifactIDs:   res.UnmatchedArtifactIDs,
		SessionsWithoutMatches: res.SessionsWithoutMatches,
	}
	path, err := review.WriteSheet(ReviewDir(e.cfg.DataDir, st.RunID), review.MatchSheetFile, sheet)
	if err != nil {
		return err
	}
	if err := e.transition(st, PhaseAwaitingMatchReview, "match review exported"); err != nil {
		return err
	}
	e.log.Warn("match review required", "run_id", st.RunID, "sheet", path)
	return fmt.Errorf("%w: edit %s and resume", ErrReviewRequired, path)
}

func matchReviewNeeded(res match.Result) bool {
	if len(res.UnmatchedArtifactIDs) > 0 || len(res.SessionsWithoutMatches) > 0 {
		return true
	}
	for _, m := range res.Matches {
		if m.Review {
			return true
		}
	}
	return false
}

// mergeMatchReview folds the edited match sheet back into the run and
// returns it to MATCHED.
func (e *Engine) mergeMatchReview(st *RunState) error {
	sheetPath := filepath.Join(ReviewDir(e.cfg.DataDir, st.RunID), review.MatchSheetFile)
	if err := requireSheet(st, sheetPath); err != nil {
		return err
	}
	sheet, err := review.ReadMatchSheet(sheetPath)
	if err != nil {
		return err
	}
	matches, err := review.ValidateMatchSheet(sheet, st.RunID, st.SessionIDs(), st.ArtifactIDs())
	if err != nil {
		return err
	}
	// Reviewed matches are accepted as-is.
	for i := range matches {
		matches[i].Review = false
	}
	st.Matches = matches
	st.UnmatchedArtifactIDs, st.SessionsWithoutMatches = coverage(st.SessionIDs(), st.ArtifactIDs(), matches)
	e.log.Info("match review merged", "run_id", st.RunID, "matches", len(matches))
	return e.transition(st, PhaseMatched, "match review merged")
}

// requireSheet reports a missing review sheet as a gate halt, not a
// fatal error: the run is still legitimately waiting on a human.
func requireSheet(st *RunState, sheetPath string) error {
	if _, err := os.Stat(sheetPath); os.IsNotExist(err) {
		return fmt.Errorf("%w: run %s is halted at %s but the review sheet %s is missing; restore it and resume", ErrReviewRequired, st.RunID, st.Phase, sheetPath)
	}
	return nil
}

// coverage recomputes which artifacts and sessions are left out by a
// set of matches.
func coverage(sessionIDs, artifactIDs []string, matches []match.Match) (unmatched, silent []string) {
	matchedArtifacts := map[string]bool{}
	matchedSessions := map[string]bool{}
	for _, m := range matches {
		matchedArtifacts[m.ArtifactID] = true
		matchedSessions[m.SessionID] = true
	}
	for _, id := range artifactIDs {
		if !matchedArtifacts[id] {
			unmatched = append(unmatched, id)
		}
	}
	for _, id := range sessionIDs {
		if !matchedSessions[id] {
			silent = append(silent, id)
		}
	}
	return unmatched, silent
}

// Summarize produces one narrative per session, fanned out over the
// configured worker count. A session whose summarizer call fails after
// retries is recorded in SummaryErrors and the run continues.
func (e *Engine) Summarize(ctx context.Context, st *RunState) error {
	texts := map[string][]string{}
	byID := map[string]string{}
	for _, a := range st.Artifacts {
		byID[a.ID] = a.Text
	}
	for _, m := range st.Matches {
		texts[m.SessionID] = append(texts[m.SessionID], byID[m.ArtifactID])
	}

	opt := summarize.CallOptions{
		Timeout: e.cfg.CallTimeout.Std(),
		Retries: e.cfg.Retries,
	}

	var mu sync.Mutex
	summaries := map[string]string{}
	failures := map[string]string{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for _, s := range st.Sessions {
		g.Go(func() error {
			req := summarize.Request{
				Session:   s,
				Texts:     texts[s.ID],
				Attendees: st.Attendees,
				Talks:     roster.TalksByTrack(st.Talks, s.Track),
			}
			text, err := summarize.Call(gctx, e.summarizer, req, opt)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				e.log.Warn("summarizer failed", "run_id", st.RunID, "session", s.ID, "error", err)
				failures[s.ID] = err.Error()
				return nil
			}
			summaries[s.ID] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	st.Summaries = summaries
	st.SummaryErrors = failures
	e.log.Info("summarized", "run_id", st.RunID, "ok", len(summaries), "failed", len(failures))
	return e.transition(st, PhaseSummarized, fmt.Sprintf("%d summaries, %d failures", len(summaries), len(failures)))
}

// Evaluate scores every summary and halts at the eval gate when any
// session carries flags or scores under the floor. Sessions whose
// summarizer failed are given a zero score with an explanatory flag so
// the gate surfaces them too.
func (e *Engine) Evaluate(ctx context.Context, st *RunState) error {
	texts := map[string][]string{}
	byID := map[string]string{}
	for _, a := range st.Artifacts {
		byID[a.ID] = a.Text
	}
	for _, m := range st.Matches {
		texts[m.SessionID] = append(texts[m.SessionID], byID[m.ArtifactID])
	}

	var mu sync.Mutex
	results := map[string]evaluate.Result{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for _, s := range st.Sessions {
		summary, ok := st.Summaries[s.ID]
		if !ok {
			mu.Lock()
			results[s.ID] = evaluate.Result{
				Score:  0,
				Status: evaluate.StatusReview,
				Flags: []evaluate.Flag{{
					Type:        "summarizer-error",
					Description: st.SummaryErrors[s.ID],
				}},
			}
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			res, err := e.evaluator.Evaluate(gctx, evaluate.Request{
				Session:   s,
				Summary:   summary,
				Sources:   texts[s.ID],
				Attendees: st.Attendees,
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				e.log.Warn("evaluator failed", "run_id", st.RunID, "session", s.ID, "error", err)
				res = evaluate.Result{
					Score:  0,
					Status: evaluate.StatusReview,
					Flags:  []evaluate.Flag{{Type: "evaluator-error", Description: err.Error()}},
				}
			}
			results[s.ID] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	st.Evaluations = results
	if err := e.transition(st, PhaseEvaluated, fmt.Sprintf("%d evaluated", len(results))); err != nil {
		return err
	}

	if !e.evalReviewNeeded(results) {
		return nil
	}
	sheet := review.EvalSheet{RunID: st.RunID, ScoreFloor: e.cfg.ScoreFloor}
	for _, s := range st.Sessions {
		res := results[s.ID]
		sheet.Entries = append(sheet.Entries, review.EvalEntry{
			SessionID: s.ID,
			Score:     res.Score,
			Status:    res.Status,
			Flags:     res.Flags,
		})
	}
	path, err := review.WriteSheet(ReviewDir(e.cfg.DataDir, st.RunID), review.EvalSheetFile, sheet)
	if err != nil {
		return err
	}
	if err := e.transition(st, PhaseAwaitingEvalReview, "evaluation review exported"); err != nil {
		return err
	}
	e.log.Warn("evaluation review required", "run_id", st.RunID, "sheet", path)
	return fmt.Errorf("%w: edit %s and resume", ErrReviewRequired, path)
}

func (e *Engine) evalReviewNeeded(results map[string]evaluate.Result) bool {
	for _, r := range results {
		if len(r.Flags) > 0 || r.Score < e.cfg.ScoreFloor {
			return true
		}
	}
	return false
}

// mergeEvalReview folds the edited evaluation sheet back into the run.
// Entries that still fail the gate and are not marked resolved keep the
// run halted.
func (e *Engine) mergeEvalReview(st *RunState) error {
	sheetPath := filepath.Join(ReviewDir(e.cfg.DataDir, st.RunID), review.EvalSheetFile)
	if err := requireSheet(st, sheetPath); err != nil {
		return err
	}
	sheet, err := review.ReadEvalSheet(sheetPath)
	if err != nil {
		return err
	}
	var evaluated []string
	for id := range st.Evaluations {
		evaluated = append(evaluated, id)
	}
	entries, err := review.ValidateEvalSheet(sheet, st.RunID, evaluated)
	if err != nil {
		return err
	}

	var unresolved []string
	for _, entry := range entries {
		if (len(entry.Flags) > 0 || entry.Score < e.cfg.ScoreFloor) && !entry.Resolved {
			unresolved = append(unresolved, entry.SessionID)
		}
	}
	if len(unresolved) > 0 {
		return fmt.Errorf("%w: unresolved sessions %v in %s", ErrReviewRequired, unresolved, sheetPath)
	}

	notes := map[string]string{}
	for _, entry := range entries {
		res := st.Evaluations[entry.SessionID]
		res.Score = entry.Score
		res.Status = entry.Status
		res.Flags = entry.Flags
		st.Evaluations[entry.SessionID] = res
		if entry.Note != "" {
			notes[entry.SessionID] = entry.Note
		}
	}
	st.ReviewNotes = notes
	e.log.Info("evaluation review merged", "run_id", st.RunID, "entries", len(entries))
	return e.transition(st, PhaseEvaluated, "evaluation review merged")
}

// Publish renders the run's reports and completes the run.
func (e *Engine) Publish(st *RunState) error {
	dir := filepath.Join(e.cfg.ReportDir, st.RunID)
	indexPath, err := publish.Write(dir, publish.Input{
		RunID:       st.RunID,
		Event:       st.Event,
		Sessions:    st.Sessions,
		Talks:       st.Talks,
		Attendees:   st.Attendees,
		Matches:     st.Matches,
		Summaries:   st.Summaries,
		Evaluations: st.Evaluations,
		Notes:       st.ReviewNotes,
	})
	if err != nil {
		return err
	}
	st.ReportPath = indexPath
	e.log.Info("published", "run_id", st.RunID, "index", indexPath)
	return e.transition(st, PhasePublished, "reports written")
}

// transition records the phase change, persists state, and mirrors the
// run into the catalog.
func (e *Engine) transition(st *RunState, p Phase, outcome string) error {
	from := st.Phase
	st.advance(p, outcome)
	if err := SaveState(e.cfg.DataDir, st); err != nil {
		return err
	}
	if e.catalog != nil {
		if err := e.syncCatalog(st); err != nil {
			return err
		}
		if _, err := e.catalog.AppendEvent(&store.RunEvent{
			RunID: st.RunID,
			From:  string(from),
			To:    string(p),
			Note:  outcome,
		}); err != nil {
			return fmt.Errorf("engine: record transition: %w", err)
		}
	}
	return nil
}

// save persists state and mirrors the run row without logging a
// transition. Used for run creation.
func (e *Engine) save(st *RunState) error {
	if err := SaveState(e.cfg.DataDir, st); err != nil {
		return err
	}
	if e.catalog != nil {
		return e.syncCatalog(st)
	}
	return nil
}

func (e *Engine) syncCatalog(st *RunState) error {
	err := e.catalog.SaveRun(&store.Run{
		RunID:      st.RunID,
		Event:      st.Event,
		Phase:      string(st.Phase),
		StateDir:   RunDir(e.cfg.DataDir, st.RunID),
		ReportPath: st.ReportPath,
		CreatedAt:  st.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("engine: sync catalog: %w", err)
	}
	return nil
}

// Package review projects run state into editable JSON sheets for the
// human gates and folds edited sheets back in. A sheet that is exported
// and re-imported untouched changes nothing: import validates identity
// against the run, never invents it.
package review

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"symposium/internal/evaluate"
	"symposium/internal/match"
)

// ErrReview wraps all validation failures on imported sheets.
var ErrReview = errors.New("review: invalid sheet")

// Dir is the per-run directory holding review sheets.
const Dir = "review"

// Sheet file names under Dir.
const (
	MatchSheetFile = "matches.json"
	EvalSheetFile  = "evaluations.json"
)

// MatchSheet is the editable projection of a run's match results.
// Reviewers may retarget a match's SessionID, delete match entries, or
// add new ones for unmatched artifacts.
type MatchSheet struct {
	RunID                  string        `json:"run_id"`
	Threshold              float64       `json:"threshold"`
	Matches                []match.Match `json:"matches"`
	UnmatchedArtifactIDs   []string      `json:"unmatched_artifact_ids,omitempty"`
	SessionsWithoutMatches []string      `json:"sessions_without_matches,omitempty"`
}

// EvalEntry is one session's evaluation as seen by a reviewer. Resolved
// marks the flags as reviewed and acceptable; Note is free text carried
// into the published report.
type EvalEntry struct {
	SessionID string          `json:"session_id"`
	Score     int             `json:"score"`
	Status    string          `json:"status"`
	Flags     []evaluate.Flag `json:"flags,omitempty"`
	Resolved  bool            `json:"resolved"`
	Note      string          `json:"note,omitempty"`
}

// EvalSheet is the editable projection of a run's evaluation results.
type EvalSheet struct {
	RunID      string      `json:"run_id"`
	ScoreFloor int         `json:"score_floor"`
	Entries    []EvalEntry `json:"entries"`
}

// WriteSheet writes any sheet as indented JSON under dir, creating the
// directory if needed.
func WriteSheet(dir, name string, sheet any) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("review: create sheet dir: %w", err)
	}
	data, err := json.MarshalIndent(sheet, "", "  ")
	if err != nil {
		return "", fmt.Errorf("review: encode sheet %s: %w", name, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("review: write sheet: %w", err)
	}
	return path, nil
}

// ReadMatchSheet loads and decodes a match sheet from path.
func ReadMatchSheet(path string) (MatchSheet, error) {
	var s MatchSheet
	if err := readSheet(path, &s); err != nil {
		return MatchSheet{}, err
	}
	return s, nil
}

// ReadEvalSheet loads and decodes an evaluation sheet from path.
func ReadEvalSheet(path string) (EvalSheet, error) {
	var s EvalSheet
	if err := readSheet(path, &s); err != nil {
		return EvalSheet{}, err
	}
	return s, nil
}

func readSheet(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("review: read sheet: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("review: decode sheet %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ValidateMatchSheet checks an imported match sheet against the run it
// claims to edit. Every referenced artifact and session must exist, and
// no artifact may be matched to the same session twice. It returns the
// accepted matches sorted the way the matcher sorts them.
func ValidateMatchSheet(s MatchSheet, runID string, sessionIDs, artifactIDs []string) ([]match.Match, error) {
	if s.RunID != runID {
		return nil, fmt.Errorf("%w: sheet is for run %q, not %q", ErrReview, s.RunID, runID)
	}
	sessions := toSet(sessionIDs)
	artifacts := toSet(artifactIDs)
	seen := map[[2]string]bool{}
	var problems []string
	for _, m := range s.Matches {
		if !artifacts[m.ArtifactID] {
			problems = append(problems, fmt.Sprintf("unknown artifact %q", m.ArtifactID))
		}
		if !sessions[m.SessionID] {
			problems = append(problems, fmt.Sprintf("unknown session %q", m.SessionID))
		}
		key := [2]string{m.SessionID, m.ArtifactID}
		if seen[key] {
			problems = append(problems, fmt.Sprintf("duplicate match %s -> %s", m.ArtifactID, m.SessionID))
		}
		seen[key] = true
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrReview, joinProblems(problems))
	}

	out := make([]match.Match, len(s.Matches))
	copy(out, s.Matches)
	sort.Slice(out, func(i, j int) bool {
		if out[i].SessionID != out[j].SessionID {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].ArtifactID < out[j].ArtifactID
	})
	return out, nil
}

// ValidateEvalSheet checks an imported evaluation sheet against the
// run. Every entry must name a session that was evaluated, exactly
// once, with a score in range.
func ValidateEvalSheet(s EvalSheet, runID string, evaluatedSessionIDs []string) ([]EvalEntry, error) {
	if s.RunID != runID {
		return nil, fmt.Errorf("%w: sheet is for run %q, not %q", ErrReview, s.RunID, runID)
	}
	evaluated := toSet(evaluatedSessionIDs)
	seen := map[string]bool{}
	var problems []string
	for _, e := range s.Entries {
		if !evaluated[e.SessionID] {
			problems = append(problems, fmt.Sprintf("unknown session %q", e.SessionID))
		}
		if seen[e.SessionID] {
			problems = append(problems, fmt.Sprintf("duplicate entry for session %q", e.SessionID))
		}
		seen[e.SessionID] = true
		if e.Score < 0 || e.Score > evaluate.MaxScore {
			problems = append(problems, fmt.Sprintf("session %q: score %d out of range", e.SessionID, e.Score))
		}
	}
	for _, id := range evaluatedSessionIDs {
		if !seen[id] {
			problems = append(problems, fmt.Sprintf("missing entry for session %q", id))
		}
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrReview, joinProblems(problems))
	}

	out := make([]EvalEntry, len(s.Entries))
	copy(out, s.Entries)
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func joinProblems(ps []string) string {
	out := ps[0]
	for _, p := range ps[1:] {
		out += "; " + p
	}
	return out
}

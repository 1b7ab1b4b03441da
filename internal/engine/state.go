package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"symposium/internal/artifact"
	"symposium/internal/evaluate"
	"symposium/internal/match"
	"symposium/internal/roster"
)

// ErrStateCorrupt marks a state file that exists but cannot be trusted:
// unreadable JSON, an unknown schema version, or identity fields that
// do not line up. A corrupt state never gets silently rewritten.
var ErrStateCorrupt = errors.New("engine: state corrupt")

// stateSchemaVersion is bumped when the state layout changes shape.
const stateSchemaVersion = 1

// StateFile is the persisted state file name inside a run directory.
const StateFile = "state.json"

// RunState is the single source of truth for one run. Everything a
// phase produces lands here before the next phase starts, so a process
// crash between phases loses at most the phase in flight.
type RunState struct {
	SchemaVersion int    `json:"schema_version"`
	RunID         string `json:"run_id"`
	Event         string `json:"event"`
	Phase         Phase  `json:"phase"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`

	Sessions  []roster.Session       `json:"sessions,omitempty"`
	Talks     []roster.LightningTalk `json:"lightning_talks,omitempty"`
	Attendees []roster.Attendee      `json:"attendees,omitempty"`

	Artifacts       []artifact.Artifact `json:"artifacts,omitempty"`
	ExtractFailures []artifact.Failure  `json:"extract_failures,omitempty"`

	Matches                []match.Match `json:"matches,omitempty"`
	UnmatchedArtifactIDs   []string      `json:"unmatched_artifact_ids,omitempty"`
	SessionsWithoutMatches []string      `json:"sessions_without_matches,omitempty"`

	Summaries     map[string]string `json:"summaries,omitempty"`
	SummaryErrors map[string]string `json:"summary_errors,omitempty"`

	Evaluations map[string]evaluate.Result `json:"evaluations,omitempty"`
	ReviewNotes map[string]string          `json:"review_notes,omitempty"`

	ReportPath string       `json:"report_path,omitempty"`
	History    []StepRecord `json:"history"`
}

// StepRecord logs one completed transition.
type StepRecord struct {
	From      Phase  `json:"from"`
	To        Phase  `json:"to"`
	Outcome   string `json:"outcome,omitempty"`
	Timestamp string `json:"timestamp"`
}

// NewRunState creates a fresh run in phase NEW.
func NewRunState(runID, event string) *RunState {
	now := nowUTC()
	return &RunState{
		SchemaVersion: stateSchemaVersion,
		RunID:         runID,
		Event:         event,
		Phase:         PhaseNew,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// advance moves the run to phase p and records the transition.
func (st *RunState) advance(p Phase, outcome string) {
	st.History = append(st.History, StepRecord{
		From:      st.Phase,
		To:        p,
		Outcome:   outcome,
		Timestamp: nowUTC(),
	})
	st.Phase = p
	st.UpdatedAt = nowUTC()
}

// SessionIDs returns the ids of all sessions in the run, in roster order.
func (st *RunState) SessionIDs() []string {
	out := make([]string, len(st.Sessions))
	for i, s := range st.Sessions {
		out[i] = s.ID
	}
	return out
}

// ArtifactIDs returns the ids of all extracted artifacts.
func (st *RunState) ArtifactIDs() []string {
	out := make([]string, len(st.Artifacts))
	for i, a := range st.Artifacts {
		out[i] = a.ID
	}
	return out
}

// RunDir returns the per-run directory under dataDir.
func RunDir(dataDir, runID string) string {
	return filepath.Join(dataDir, "runs", runID)
}

// SaveState writes the state atomically: the JSON goes to a temp file
// in the run directory first and is renamed over state.json, so a
// crash mid-write leaves the previous state intact.
func SaveState(dataDir string, st *RunState) error {
	dir := RunDir(dataDir, st.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("engine: create run dir: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("engine: encode state: %w", err)
	}
	tmp, err := os.CreateTemp(dir, StateFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("engine: create temp state: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("engine: write temp state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("engine: close temp state: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, StateFile)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("engine: replace state: %w", err)
	}
	return nil
}

// LoadState reads and validates a run's state. A missing file is a
// plain error; an unreadable or inconsistent one wraps ErrStateCorrupt.
func LoadState(dataDir, runID string) (*RunState, error) {
	path := filepath.Join(RunDir(dataDir, runID), StateFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("engine: read state: %w", err)
	}
	var st RunState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStateCorrupt, path, err)
	}
	if st.SchemaVersion != stateSchemaVersion {
		return nil, fmt.Errorf("%w: %s: schema version %d, want %d", ErrStateCorrupt, path, st.SchemaVersion, stateSchemaVersion)
	}
	if st.RunID != runID {
		return nil, fmt.Errorf("%w: %s: holds run %q, want %q", ErrStateCorrupt, path, st.RunID, runID)
	}
	if !st.Phase.valid() {
		return nil, fmt.Errorf("%w: %s: unknown phase %q", ErrStateCorrupt, path, st.Phase)
	}
	return &st, nil
}

func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

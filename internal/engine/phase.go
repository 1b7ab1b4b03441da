package engine

// Phase is a run's position in the pipeline. Transitions only move
// forward; the two AWAITING phases are side stops a run enters when a
// gate fires and leaves when a reviewed sheet is merged back in.
type Phase string

const (
	PhaseNew                 Phase = "NEW"
	PhaseIngested            Phase = "INGESTED"
	PhaseMatched             Phase = "MATCHED"
	PhaseAwaitingMatchReview Phase = "AWAITING_MATCH_REVIEW"
	PhaseSummarized          Phase = "SUMMARIZED"
	PhaseEvaluated           Phase = "EVALUATED"
	PhaseAwaitingEvalReview  Phase = "AWAITING_EVAL_REVIEW"
	PhasePublished           Phase = "PUBLISHED"
)

// valid reports whether p is a known phase. Used when loading
// persisted state.
func (p Phase) valid() bool {
	switch p {
	case PhaseNew, PhaseIngested, PhaseMatched, PhaseAwaitingMatchReview,
		PhaseSummarized, PhaseEvaluated, PhaseAwaitingEvalReview, PhasePublished:
		return true
	}
	return false
}

// Terminal reports whether the run is complete.
func (p Phase) Terminal() bool { return p == PhasePublished }

// Gate reports whether the run is halted waiting on a reviewed sheet.
func (p Phase) Gate() bool {
	return p == PhaseAwaitingMatchReview || p == PhaseAwaitingEvalReview
}

// Package evaluate is the QA boundary: it scores a session summary
// against its source data and raises flags for content the sources do
// not support. Flags use the inline annotation grammar
// [FLAG: type "description"].
package evaluate

import (
	"context"

	"symposium/internal/roster"
)

// Verification statuses, derived from the flag count.
const (
	StatusPass        = "PASS"
	StatusReview      = "REVIEW NEEDED"
	StatusMajorIssues = "MAJOR ISSUES"
)

// reviewFlagLimit is the flag count above which a report has major
// issues rather than needing simple review.
const reviewFlagLimit = 5

// MaxScore is the top QA score.
const MaxScore = 5

// Flag is one QA finding on a summary.
type Flag struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Result is the evaluation outcome for one session summary.
type Result struct {
	Score  int    `json:"score"` // 0..MaxScore
	Status string `json:"status"`
	Flags  []Flag `json:"flags,omitempty"`
}

// Request carries a summary and its ground truth for evaluation.
type Request struct {
	Session   roster.Session
	Summary   string
	Sources   []string // matched artifact texts the summary was built from
	Attendees []roster.Attendee
}

// Evaluator scores one summary. One session's failure never aborts the
// phase; the engine records it as a flag and continues.
type Evaluator interface {
	Name() string
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// StatusFor maps a flag count to a verification status.
func StatusFor(totalFlags int) string {
	switch {
	case totalFlags == 0:
		return StatusPass
	case totalFlags <= reviewFlagLimit:
		return StatusReview
	default:
		return StatusMajorIssues
	}
}

// Breakdown tallies flags by type.
func Breakdown(flags []Flag) map[string]int {
	out := make(map[string]int, len(flags))
	for _, f := range flags {
		out[f.Type]++
	}
	return out
}

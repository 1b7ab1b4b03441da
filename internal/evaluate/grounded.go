package evaluate

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// Grounded is the offline evaluator. It checks that the technical
// vocabulary of a summary actually appears in the session's source
// material and flags terms that do not, alongside any flags the
// summarizer embedded inline. It needs no network and is fully
// deterministic, which makes it the default for scripted runs.
type Grounded struct {
	// MinTermLen is the shortest token treated as a checkable term.
	// Zero means the default of 6.
	MinTermLen int
}

func (g *Grounded) Name() string { return "grounded" }

func (g *Grounded) Evaluate(_ context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Summary) == "" {
		return Result{}, fmt.Errorf("evaluate: empty summary for session %q", req.Session.ID)
	}

	flags := ParseFlags(req.Summary)

	minLen := g.MinTermLen
	if minLen == 0 {
		minLen = 6
	}
	corpus := groundTerms(req, minLen)

	seen := map[string]bool{}
	for _, term := range terms(StripFlags(req.Summary), minLen) {
		if corpus[term] || seen[term] {
			continue
		}
		seen[term] = true
		flags = append(flags, Flag{
			Type:        "unverified",
			Description: fmt.Sprintf("term %q not found in session materials", strings.ToLower(term)),
		})
	}

	score := MaxScore - len(flags)
	if score < 0 {
		score = 0
	}
	return Result{
		Score:  score,
		Status: StatusFor(len(flags)),
		Flags:  flags,
	}, nil
}

// groundTerms collects every acceptable term from the session record,
// its source texts, and the attendee roster.
func groundTerms(req Request, minLen int) map[string]bool {
	ok := map[string]bool{}
	add := func(text string) {
		for _, t := range terms(text, minLen) {
			ok[t] = true
		}
	}
	add(req.Session.ID)
	add(req.Session.Title)
	add(req.Session.Track)
	for _, l := range req.Session.Leaders {
		add(l)
	}
	for _, src := range req.Sources {
		add(src)
	}
	for _, a := range req.Attendees {
		add(a.Name)
		add(a.Organization)
	}
	return ok
}

// terms splits text into uppercase alphanumeric tokens of at least
// minLen runes. Short tokens are connective noise, not claims.
func terms(text string, minLen int) []string {
	fields := strings.FieldsFunc(strings.ToUpper(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= minLen {
			out = append(out, f)
		}
	}
	return out
}

package evaluate

import (
	"context"
	"fmt"
	"strings"

	"symposium/internal/llm"
)

const checkPrompt = `You are a fact checker for conference session reports.
Compare the report against the source material. For every claim the
sources do not support, emit an inline annotation in the exact form
[FLAG: type "description"] where type is one of: unverified,
contradiction, fabricated-attendee, fabricated-talk.
Return the annotated report and nothing else.`

// LLM evaluates a summary by asking a model to annotate unsupported
// claims with inline flags, then parsing the annotations back out.
type LLM struct {
	Client *llm.Client
}

func (e *LLM) Name() string { return "llm" }

func (e *LLM) Evaluate(ctx context.Context, req Request) (Result, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# Report for session %s\n\n%s\n\n# Source material\n\n", req.Session.ID, req.Summary)
	for i, src := range req.Sources {
		fmt.Fprintf(&b, "## Source %d\n\n%s\n\n", i+1, src)
	}
	if len(req.Attendees) > 0 {
		b.WriteString("# Registered attendees\n\n")
		for _, a := range req.Attendees {
			fmt.Fprintf(&b, "- %s (%s)\n", a.Name, a.Organization)
		}
	}

	annotated, err := e.Client.ChatCompletion(ctx, []llm.Message{
		{Role: "system", Content: checkPrompt},
		{Role: "user", Content: b.String()},
	})
	if err != nil {
		return Result{}, fmt.Errorf("evaluate: check call for session %q: %w", req.Session.ID, err)
	}

	flags := ParseFlags(annotated)
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

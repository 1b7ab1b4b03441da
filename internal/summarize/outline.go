package summarize

import (
	"context"
	"fmt"
	"strings"
)

// maxOutlineLines caps how much of each source text the outline quotes.
const maxOutlineLines = 12

// Outline is the offline, deterministic summarizer: it assembles a
// structured digest from the roster entry and matched source text
// without calling any model. Used for dry runs and tests; its output
// depends only on its input.
type Outline struct{}

func (Outline) Name() string { return "outline" }

func (Outline) Summarize(_ context.Context, req Request) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", req.Session.Title)
	if len(req.Session.Leaders) > 0 {
		fmt.Fprintf(&b, "Led by %s.\n", strings.Join(req.Session.Leaders, ", "))
	}
	if req.Session.Track != "" {
		fmt.Fprintf(&b, "Track: %s.\n", req.Session.Track)
	}

	if len(req.Talks) > 0 {
		b.WriteString("\nLightning talks:\n")
		for _, t := range req.Talks {
			if t.Institution != "" {
				fmt.Fprintf(&b, "- %s - %s (%s)\n", t.Title, t.Speaker, t.Institution)
			} else {
				fmt.Fprintf(&b, "- %s - %s\n", t.Title, t.Speaker)
			}
		}
	}

	if len(req.Texts) > 0 {
		b.WriteString("\nFrom the session materials:\n")
		for _, text := range req.Texts {
			for _, line := range headLines(text, maxOutlineLines) {
				fmt.Fprintf(&b, "> %s\n", line)
			}
		}
	} else {
		b.WriteString("\nNo session materials were matched to this session.\n")
	}

	return b.String(), nil
}

// headLines returns up to n non-empty lines from text.
func headLines(text string, n int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == n {
			break
		}
	}
	return out
}

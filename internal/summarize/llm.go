package summarize

import (
	"context"
	"fmt"
	"strings"

	"symposium/internal/llm"
	"symposium/internal/roster"
)

const systemPrompt = `You are a technical writer producing a factual session report
for a systems conference. Use only the provided roster data and session
materials. Do not invent names, affiliations, talks, or claims. Write
plain prose, 2-4 paragraphs.`

// LLM summarizes through a chat-completions client.
type LLM struct {
	Client *llm.Client
}

func (LLM) Name() string { return "llm" }

func (l LLM) Summarize(ctx context.Context, req Request) (string, error) {
	if l.Client == nil {
		return "", fmt.Errorf("llm summarizer has no client")
	}
	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: formatRequest(req)},
	}
	return l.Client.ChatCompletion(ctx, messages)
}

// formatRequest renders the session bundle as the user prompt, following
// the same section order the reports use.
func formatRequest(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Session: %s (%s)\n", req.Session.Title, req.Session.ID)
	if len(req.Session.Leaders) > 0 {
		fmt.Fprintf(&b, "Leaders: %s\n", strings.Join(req.Session.Leaders, ", "))
	}
	if req.Session.Track != "" {
		fmt.Fprintf(&b, "Track: %s\n", req.Session.Track)
	}
	if req.Session.ScheduledTime != "" {
		fmt.Fprintf(&b, "Time: %s\n", req.Session.ScheduledTime)
	}

	if len(req.Talks) > 0 {
		b.WriteString("\n## Lightning Talks\n")
		for _, t := range req.Talks {
			fmt.Fprintf(&b, "**%s** - %s", t.Title, t.Speaker)
			if t.Institution != "" {
				fmt.Fprintf(&b, " (%s)", t.Institution)
			}
			b.WriteString("\n")
			if t.Abstract != "" {
				fmt.Fprintf(&b, "Abstract: %s\n", t.Abstract)
			}
		}
	}

	if len(req.Attendees) > 0 {
		b.WriteString("\n## Attendees\n")
		b.WriteString(formatAttendees(req.Attendees))
	}

	if len(req.Texts) > 0 {
		b.WriteString("\n## Session Materials\n")
		for i, text := range req.Texts {
			fmt.Fprintf(&b, "\n### Material %d\n%s\n", i+1, text)
		}
	}

	b.WriteString("\nWrite the session summary now.")
	return b.String()
}

func formatAttendees(attendees []roster.Attendee) string {
	var parts []string
	for _, a := range attendees {
		if a.Organization != "" {
			parts = append(parts, fmt.Sprintf("%s (%s)", a.Name, a.Organization))
		} else {
			parts = append(parts, a.Name)
		}
	}
	return strings.Join(parts, ", ") + "\n"
}

// Package publish renders a run's summaries and evaluation results
// into per-session Markdown reports plus an index. It only reads run
// data; the engine owns all state mutation.
package publish

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"symposium/internal/evaluate"
	"symposium/internal/match"
	"symposium/internal/roster"
)

// Input is everything the publisher needs from a run.
type Input struct {
	RunID       string
	Event       string
	Sessions    []roster.Session
	Talks       []roster.LightningTalk
	Attendees   []roster.Attendee
	Matches     []match.Match
	Summaries   map[string]string
	Evaluations map[string]evaluate.Result
	Notes       map[string]string // reviewer notes by session id
}

// session is the per-report template payload.
type session struct {
	Session   roster.Session
	Talks     []roster.LightningTalk
	Summary   string
	Eval      evaluate.Result
	Note      string
	Artifacts []string
	Generated string
}

// indexRow is one line of the index table.
type indexRow struct {
	ID        string
	Title     string
	Status    string
	Score     int
	FlagCount int
	File      string
}

var sessionTmpl = template.Must(template.New("session").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(`# {{.Session.Title}}

- Session: {{.Session.ID}}{{if .Session.Track}}
- Track: {{.Session.Track}}{{end}}{{if .Session.Leaders}}
- Leaders: {{join .Session.Leaders ", "}}{{end}}
- QA status: {{.Eval.Status}} (score {{.Eval.Score}}/5)
- Generated: {{.Generated}}
{{if .Talks}}
## Lightning talks
{{range .Talks}}
- {{.Title}} - {{.Speaker}}{{if .Institution}} ({{.Institution}}){{end}}{{end}}
{{end}}
## Summary

{{.Summary}}
{{if .Eval.Flags}}
## Open flags
{{range .Eval.Flags}}
- **{{.Type}}**{{if .Description}}: {{.Description}}{{end}}{{end}}
{{end}}{{if .Note}}
## Reviewer note

{{.Note}}
{{end}}{{if .Artifacts}}
## Source materials
{{range .Artifacts}}
- {{.}}{{end}}
{{end}}`))

var indexTmpl = template.Must(template.New("index").Parse(`# {{.Event}} session reports

Run {{.RunID}}, generated {{.Generated}}.

| Session | Title | Status | Score | Flags |
|---------|-------|--------|-------|-------|
{{range .Rows}}| {{if .File}}[{{.ID}}]({{.File}}){{else}}{{.ID}}{{end}} | {{.Title}} | {{.Status}} | {{.Score}}/5 | {{.FlagCount}} |
{{end}}{{if .Attendees}}
## Attendees

{{.Attendees}}
{{end}}`))

// Write renders one report per session plus index.md under dir and
// returns the index path. Sessions without a summary are skipped in the
// per-session reports but still listed in the index as unreported.
func Write(dir string, in Input) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("publish: create report dir: %w", err)
	}

	byArtifact := artifactsBySession(in.Matches)
	now := time.Now().UTC().Format(time.RFC3339)

	sorted := make([]roster.Session, len(in.Sessions))
	copy(sorted, in.Sessions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var rows []indexRow
	for _, s := range sorted {
		summary, ok := in.Summaries[s.ID]
		if !ok {
			rows = append(rows, indexRow{ID: s.ID, Title: s.Title, Status: "NOT REPORTED", File: ""})
			continue
		}
		payload := session{
			Session:   s,
			Talks:     roster.TalksByTrack(in.Talks, s.Track),
			Summary:   strings.TrimSpace(summary),
			Eval:      in.Evaluations[s.ID],
			Note:      in.Notes[s.ID],
			Artifacts: byArtifact[s.ID],
			Generated: now,
		}
		name := s.ID + ".md"
		if err := render(filepath.Join(dir, name), sessionTmpl, payload); err != nil {
			return "", err
		}
		rows = append(rows, indexRow{
			ID:        s.ID,
			Title:     s.Title,
			Status:    payload.Eval.Status,
			Score:     payload.Eval.Score,
			FlagCount: len(payload.Eval.Flags),
			File:      name,
		})
	}

	indexPath := filepath.Join(dir, "index.md")
	err := render(indexPath, indexTmpl, struct {
		Event     string
		RunID     string
		Generated string
		Rows      []indexRow
		Attendees string
	}{in.Event, in.RunID, now, rows, attendeeRoll(in.Attendees)})
	if err != nil {
		return "", err
	}
	return indexPath, nil
}

func render(path string, tmpl *template.Template, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("publish: create %s: %w", filepath.Base(path), err)
	}
	if err := tmpl.Execute(f, data); err != nil {
		_ = f.Close()
		return fmt.Errorf("publish: render %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// attendeeRoll renders the registered attendees as one comma-joined line.
func attendeeRoll(attendees []roster.Attendee) string {
	var parts []string
	for _, a := range attendees {
		if a.Organization != "" {
			parts = append(parts, fmt.Sprintf("%s (%s)", a.Name, a.Organization))
		} else {
			parts = append(parts, a.Name)
		}
	}
	return strings.Join(parts, ", ")
}

func artifactsBySession(matches []match.Match) map[string][]string {
	out := map[string][]string{}
	for _, m := range matches {
		out[m.SessionID] = append(out[m.SessionID], m.ArtifactID)
	}
	for _, ids := range out {
		sort.Strings(ids)
	}
	return out
}

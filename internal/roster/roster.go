// Package roster loads the session registry for an event: the sessions
// themselves plus lightning talks and attendees that enrich them.
package roster

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// ErrRoster marks a malformed roster: no meaningful run can start.
var ErrRoster = errors.New("invalid roster")

// Session is one scheduled session. Immutable once ingested for a run.
type Session struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Leaders       []string `json:"leaders,omitempty"`
	Track         string   `json:"track,omitempty"`
	ScheduledTime string   `json:"scheduled_time,omitempty"`
}

// LightningTalk is one short talk assigned to a track.
type LightningTalk struct {
	Title       string `json:"title"`
	Speaker     string `json:"speaker"`
	Institution string `json:"institution,omitempty"`
	Abstract    string `json:"abstract,omitempty"`
	Track       string `json:"track,omitempty"`
}

// Attendee is one registered participant.
type Attendee struct {
	Name         string `json:"name"`
	Organization string `json:"organization,omitempty"`
}

// Roster is the full session registry for one event.
type Roster struct {
	Sessions  []Session       `json:"sessions"`
	Talks     []LightningTalk `json:"talks,omitempty"`
	Attendees []Attendee      `json:"attendees,omitempty"`
}

type rosterFile struct {
	Sessions []Session `json:"sessions"`
}

// LoadSessions reads sessions from a roster JSON file. Sessions must have
// unique, non-empty ids and non-empty titles. The returned slice is sorted
// by id for deterministic downstream processing.
func LoadSessions(path string) ([]Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrRoster, path, err)
	}
	var rf rosterFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrRoster, path, err)
	}
	if len(rf.Sessions) == 0 {
		return nil, fmt.Errorf("%w: %s contains no sessions", ErrRoster, path)
	}

	seen := make(map[string]bool, len(rf.Sessions))
	for i, s := range rf.Sessions {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: session %d has empty id", ErrRoster, i)
		}
		if strings.TrimSpace(s.Title) == "" {
			return nil, fmt.Errorf("%w: session %q has empty title", ErrRoster, id)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate session id %q", ErrRoster, id)
		}
		seen[id] = true
		rf.Sessions[i].ID = id
	}

	sort.Slice(rf.Sessions, func(i, j int) bool { return rf.Sessions[i].ID < rf.Sessions[j].ID })
	return rf.Sessions, nil
}

// FilterByTrack returns only sessions belonging to the named track.
// An empty track keeps everything. Filtering happens once, at ingest.
func FilterByTrack(sessions []Session, track string) []Session {
	if track == "" {
		return sessions
	}
	var out []Session
	for _, s := range sessions {
		if s.Track == track {
			out = append(out, s)
		}
	}
	return out
}

// TalksByTrack returns only the lightning talks on the named track.
// An empty track matches nothing: talks without a track assignment stay
// out of per-session material.
func TalksByTrack(talks []LightningTalk, track string) []LightningTalk {
	if track == "" {
		return nil
	}
	var out []LightningTalk
	for _, t := range talks {
		if t.Track == track {
			out = append(out, t)
		}
	}
	return out
}

// MergeSpeakers folds talk speakers into the attendee list, skipping names
// already present (case-insensitive). The result preserves attendee order,
// with new speakers appended in talk order.
func MergeSpeakers(attendees []Attendee, talks []LightningTalk) []Attendee {
	out := make([]Attendee, len(attendees))
	copy(out, attendees)

	known := make(map[string]bool, len(attendees))
	for _, a := range attendees {
		known[strings.ToLower(a.Name)] = true
	}
	for _, t := range talks {
		name := strings.TrimSpace(t.Speaker)
		if name == "" || known[strings.ToLower(name)] {
			continue
		}
		out = append(out, Attendee{Name: name, Organization: t.Institution})
		known[strings.ToLower(name)] = true
	}
	return out
}

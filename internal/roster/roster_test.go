package roster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadSessionsSorted(t *testing.T) {
	path := writeFile(t, "roster.json", `{
  "sessions": [
    {"id": "mape", "title": "Modeling and Performance"},
    {"id": "dwarf", "title": "Debugging Formats (DWARF)", "leaders": ["A. Person"], "track": "Track-1"}
  ]
}`)
	sessions, err := LoadSessions(path)
	if err != nil {
		t.Fatalf("LoadSessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("len = %d, want 2", len(sessions))
	}
	if sessions[0].ID != "dwarf" || sessions[1].ID != "mape" {
		t.Errorf("not sorted by id: %q, %q", sessions[0].ID, sessions[1].ID)
	}
	if sessions[0].Track != "Track-1" {
		t.Errorf("Track = %q, want Track-1", sessions[0].Track)
	}
}

func TestLoadSessionsRejectsDuplicates(t *testing.T) {
	path := writeFile(t, "roster.json", `{
  "sessions": [
    {"id": "dwarf", "title": "A"},
    {"id": "dwarf", "title": "B"}
  ]
}`)
	if _, err := LoadSessions(path); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestLoadSessionsRejectsEmptyID(t *testing.T) {
	path := writeFile(t, "roster.json", `{"sessions": [{"id": "  ", "title": "A"}]}`)
	if _, err := LoadSessions(path); err == nil {
		t.Fatal("expected empty id error")
	}
}

func TestLoadSessionsRejectsEmpty(t *testing.T) {
	path := writeFile(t, "roster.json", `{"sessions": []}`)
	if _, err := LoadSessions(path); err == nil {
		t.Fatal("expected error for empty roster")
	}
}

func TestFilterByTrack(t *testing.T) {
	sessions := []Session{
		{ID: "a", Title: "A", Track: "Track-1"},
		{ID: "b", Title: "B", Track: "Track-2"},
	}
	got := FilterByTrack(sessions, "Track-2")
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("FilterByTrack = %+v", got)
	}
	if got := FilterByTrack(sessions, ""); len(got) != 2 {
		t.Errorf("empty track should keep all, got %d", len(got))
	}
}

func TestLoadTalksCSV(t *testing.T) {
	// Positional columns: A,B,speaker,institution,E,title,abstract,track.
	path := writeFile(t, "talks.csv", "\xEF\xBB\xBF"+
		"ts,email,name,inst,x,title,abstract,track\n"+
		"1,a@x,Ada Lovelace,Analytical,y,On Engines,About engines,Track-1\n"+
		"2,b@x,Short Row\n"+
		"3,c@x,No Title,Inst,y,,abs,Track-1\n"+
		"4,d@x,Grace Hopper,Navy,y,On Compilers,About compilers,Track-2\n")
	talks, err := LoadTalksCSV(path)
	if err != nil {
		t.Fatalf("LoadTalksCSV: %v", err)
	}
	want := []LightningTalk{
		{Title: "On Engines", Speaker: "Ada Lovelace", Institution: "Analytical", Abstract: "About engines", Track: "Track-1"},
		{Title: "On Compilers", Speaker: "Grace Hopper", Institution: "Navy", Abstract: "About compilers", Track: "Track-2"},
	}
	if diff := cmp.Diff(want, talks); diff != "" {
		t.Errorf("talks mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadAttendeesCSVHeaderVariants(t *testing.T) {
	path := writeFile(t, "attendees.csv",
		"Full Name,Affiliation\n"+
			"Ada Lovelace,Analytical Engine Co\n"+
			",Empty Name Inc\n"+
			"Grace Hopper,US Navy\n")
	got, err := LoadAttendeesCSV(path)
	if err != nil {
		t.Fatalf("LoadAttendeesCSV: %v", err)
	}
	want := []Attendee{
		{Name: "Ada Lovelace", Organization: "Analytical Engine Co"},
		{Name: "Grace Hopper", Organization: "US Navy"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("attendees mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadAttendeesCSVMissingFile(t *testing.T) {
	got, err := LoadAttendeesCSV(filepath.Join(t.TempDir(), "nope.csv"))
	if err != nil {
		t.Fatalf("missing attendees file should not error: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestMergeSpeakers(t *testing.T) {
	attendees := []Attendee{{Name: "Ada Lovelace", Organization: "AE"}}
	talks := []LightningTalk{
		{Title: "T1", Speaker: "ada lovelace", Institution: "dup, different case"},
		{Title: "T2", Speaker: "Grace Hopper", Institution: "US Navy"},
		{Title: "T3", Speaker: ""},
	}
	got := MergeSpeakers(attendees, talks)
	want := []Attendee{
		{Name: "Ada Lovelace", Organization: "AE"},
		{Name: "Grace Hopper", Organization: "US Navy"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merged mismatch (-want +got):\n%s", diff)
	}
}

func TestTalksByTrack(t *testing.T) {
	talks := []LightningTalk{
		{Title: "T1", Track: "Tooling"},
		{Title: "T2", Track: "Libraries"},
		{Title: "T3", Track: "Tooling"},
	}
	got := TalksByTrack(talks, "Tooling")
	if len(got) != 2 || got[0].Title != "T1" || got[1].Title != "T3" {
		t.Errorf("got %+v", got)
	}
	if blank := TalksByTrack(talks, ""); blank != nil {
		t.Errorf("empty track should match nothing, got %+v", blank)
	}
}

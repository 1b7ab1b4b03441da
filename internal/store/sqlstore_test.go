package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *SqlStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndGetRun(t *testing.T) {
	s := openTestStore(t)

	r := &Run{RunID: "run-1", Event: "cppcon-2025", Phase: "NEW", StateDir: "/tmp/runs/run-1"}
	if err := s.SaveRun(r); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	got, err := s.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got == nil {
		t.Fatal("GetRun returned nil for an existing run")
	}
	if got.Event != "cppcon-2025" || got.Phase != "NEW" {
		t.Errorf("got %+v", got)
	}
	if got.CreatedAt == "" || got.UpdatedAt == "" {
		t.Error("timestamps not set")
	}
}

func TestSaveRunUpserts(t *testing.T) {
	s := openTestStore(t)

	r := &Run{RunID: "run-1", Event: "ev", Phase: "NEW", StateDir: "d"}
	if err := s.SaveRun(r); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	r.Phase = "PUBLISHED"
	r.ReportPath = "reports/run-1/index.md"
	if err := s.SaveRun(r); err != nil {
		t.Fatalf("SaveRun update: %v", err)
	}
	got, err := s.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Phase != "PUBLISHED" || got.ReportPath != "reports/run-1/index.md" {
		t.Errorf("update lost: %+v", got)
	}
	runs, err := s.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("upsert created %d rows, want 1", len(runs))
	}
}

func TestGetRunMissing(t *testing.T) {
	s := openTestStore(t)
	got, err := s.GetRun("nope")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got != nil {
		t.Errorf("GetRun = %+v, want nil", got)
	}
}

func TestRunEvents(t *testing.T) {
	s := openTestStore(t)
	if err := s.SaveRun(&Run{RunID: "run-1", Event: "ev", Phase: "NEW", StateDir: "d"}); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	for _, e := range []*RunEvent{
		{RunID: "run-1", From: "NEW", To: "INGESTED"},
		{RunID: "run-1", From: "INGESTED", To: "MATCHED", Note: "2 matches"},
	} {
		if _, err := s.AppendEvent(e); err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
	}
	events, err := s.ListEvents("run-1")
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].To != "INGESTED" || events[1].Note != "2 matches" {
		t.Errorf("events out of order or lossy: %+v %+v", events[0], events[1])
	}
	if events[1].ID <= events[0].ID {
		t.Errorf("ids not monotonic: %d then %d", events[0].ID, events[1].ID)
	}
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SaveRun(&Run{RunID: "run-1", Event: "ev", Phase: "NEW", StateDir: "d"}); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, err := s2.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got == nil {
		t.Fatal("run lost across reopen")
	}
}

func TestMemStoreMatchesSqlBehavior(t *testing.T) {
	m := NewMemStore()
	if err := m.SaveRun(&Run{RunID: "run-1", Event: "ev", Phase: "NEW"}); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := m.SaveRun(&Run{RunID: "run-1", Phase: "MATCHED"}); err != nil {
		t.Fatalf("SaveRun update: %v", err)
	}
	got, _ := m.GetRun("run-1")
	if got == nil || got.Phase != "MATCHED" || got.Event != "ev" {
		t.Errorf("got %+v", got)
	}
	if missing, _ := m.GetRun("x"); missing != nil {
		t.Errorf("GetRun(x) = %+v, want nil", missing)
	}
	if id, _ := m.AppendEvent(&RunEvent{RunID: "run-1", From: "NEW", To: "MATCHED"}); id != 1 {
		t.Errorf("first event id = %d, want 1", id)
	}
	events, _ := m.ListEvents("run-1")
	if len(events) != 1 {
		t.Errorf("got %d events, want 1", len(events))
	}
}

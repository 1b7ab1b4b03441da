package store

import (
	"errors"
	"sync"
)

// MemStore is an in-memory Store for tests and dry runs.
type MemStore struct {
	mu     sync.Mutex
	runs   map[string]*Run
	order  []string
	events []*RunEvent
	nextID int64
}

// NewMemStore returns an empty in-memory catalog.
func NewMemStore() *MemStore {
	return &MemStore{runs: map[string]*Run{}, nextID: 1}
}

func (m *MemStore) SaveRun(r *Run) error {
	if r == nil {
		return errors.New("run is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := nowUTC()
	if existing, ok := m.runs[r.RunID]; ok {
		existing.Phase = r.Phase
		existing.ReportPath = r.ReportPath
		existing.UpdatedAt = now
		return nil
	}
	cp := *r
	if cp.CreatedAt == "" {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	m.runs[r.RunID] = &cp
	m.order = append(m.order, r.RunID)
	return nil
}

func (m *MemStore) GetRun(runID string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *MemStore) ListRuns() ([]*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Run, 0, len(m.order))
	for _, id := range m.order {
		cp := *m.runs[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemStore) AppendEvent(e *RunEvent) (int64, error) {
	if e == nil {
		return 0, errors.New("event is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	cp.ID = m.nextID
	m.nextID++
	if cp.At == "" {
		cp.At = nowUTC()
	}
	m.events = append(m.events, &cp)
	return cp.ID, nil
}

func (m *MemStore) ListEvents(runID string) ([]*RunEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*RunEvent
	for _, e := range m.events {
		if e.RunID == runID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemStore) Close() error { return nil }

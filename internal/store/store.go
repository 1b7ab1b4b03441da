package store

// DefaultDBPath is the default relative path for the SQLite run
// catalog. Resolve against the data dir; Open() creates the parent
// directory.
const DefaultDBPath = ".symposium/symposium.db"

// Run is one pipeline run as the catalog sees it. The catalog is an
// index over run state directories, not the source of truth: the full
// state lives in each run's state file.
type Run struct {
	RunID      string
	Event      string
	Phase      string
	StateDir   string
	ReportPath string
	CreatedAt  string
	UpdatedAt  string
}

// RunEvent is one recorded phase transition or gate outcome.
type RunEvent struct {
	ID    int64
	RunID string
	From  string
	To    string
	Note  string
	At    string
}

// Store is the run catalog facade. CLI and the status server use only
// this interface; implementation is SQLite or in-memory.
type Store interface {
	// SaveRun inserts the run or, if the run id exists, updates its
	// mutable fields (phase, report path, updated_at).
	SaveRun(r *Run) error
	// GetRun returns the run by id, or nil if not found.
	GetRun(runID string) (*Run, error)
	ListRuns() ([]*Run, error)
	AppendEvent(e *RunEvent) (int64, error)
	ListEvents(runID string) ([]*RunEvent, error)
	Close() error
}

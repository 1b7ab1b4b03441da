package store

// Schema versions. schema_version holds a single row with the current
// version; migrate() walks it forward.
const (
	schemaVersionV1 = 1
)

// schemaV1 is the initial catalog schema.
const schemaV1 = `
CREATE TABLE schema_version (
    version INTEGER NOT NULL
);

CREATE TABLE runs (
    run_id      TEXT PRIMARY KEY,
    event       TEXT NOT NULL,
    phase       TEXT NOT NULL,
    state_dir   TEXT NOT NULL,
    report_path TEXT,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);

CREATE TABLE run_events (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id    TEXT NOT NULL REFERENCES runs(run_id),
    from_phase TEXT NOT NULL,
    to_phase   TEXT NOT NULL,
    note      TEXT,
    at        TEXT NOT NULL
);

CREATE INDEX idx_run_events_run ON run_events(run_id);
`

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

// nullStr converts a sql.NullString to a plain string (empty if null).
func nullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// currentSchemaVersion is the target schema version for this build.
const currentSchemaVersion = schemaVersionV1

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory (e.g. .symposium) if it does not exist.
func Open(path string) (*SqlStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableCount == 0 {
		// Fresh database.
		if _, err := s.db.Exec(schemaV1); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", currentSchemaVersion); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		return nil
	}

	var v int
	err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read schema version: %w", err)
	}
	switch v {
	case currentSchemaVersion:
		return nil
	default:
		return fmt.Errorf("unknown schema version %d", v)
	}
}

// Close closes the database connection.
func (s *SqlStore) Close() error {
	return s.db.Close()
}

func (s *SqlStore) SaveRun(r *Run) error {
	if r == nil {
		return errors.New("run is nil")
	}
	now := nowUTC()
	if r.CreatedAt == "" {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	_, err := s.db.Exec(
		`INSERT INTO runs(run_id, event, phase, state_dir, report_path, created_at, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
		     phase = excluded.phase,
		     report_path = excluded.report_path,
		     updated_at = excluded.updated_at`,
		r.RunID, r.Event, r.Phase, r.StateDir, nilIfEmpty(r.ReportPath), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func (s *SqlStore) GetRun(runID string) (*Run, error) {
	var r Run
	var reportPath sql.NullString
	err := s.db.QueryRow(
		`SELECT run_id, event, phase, state_dir, report_path, created_at, updated_at
		 FROM runs WHERE run_id = ?`, runID,
	).Scan(&r.RunID, &r.Event, &r.Phase, &r.StateDir, &reportPath, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	r.ReportPath = nullStr(reportPath)
	return &r, nil
}

func (s *SqlStore) ListRuns() ([]*Run, error) {
	rows, err := s.db.Query(
		`SELECT run_id, event, phase, state_dir, report_path, created_at, updated_at
		 FROM runs ORDER BY created_at, run_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var out []*Run
	for rows.Next() {
		var r Run
		var reportPath sql.NullString
		if err := rows.Scan(&r.RunID, &r.Event, &r.Phase, &r.StateDir, &reportPath, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.ReportPath = nullStr(reportPath)
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *SqlStore) AppendEvent(e *RunEvent) (int64, error) {
	if e == nil {
		return 0, errors.New("event is nil")
	}
	if e.At == "" {
		e.At = nowUTC()
	}
	res, err := s.db.Exec(
		`INSERT INTO run_events(run_id, from_phase, to_phase, note, at)
		 VALUES(?, ?, ?, ?, ?)`,
		e.RunID, e.From, e.To, nilIfEmpty(e.Note), e.At,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run event: %w", err)
	}
	return res.LastInsertId()
}

func (s *SqlStore) ListEvents(runID string) ([]*RunEvent, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, from_phase, to_phase, note, at
		 FROM run_events WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list run events: %w", err)
	}
	defer rows.Close()
	var out []*RunEvent
	for rows.Next() {
		var e RunEvent
		var note sql.NullString
		if err := rows.Scan(&e.ID, &e.RunID, &e.From, &e.To, &note, &e.At); err != nil {
			return nil, fmt.Errorf("scan run event: %w", err)
		}
		e.Note = nullStr(note)
		out = append(out, &e)
	}
	return out, rows.Err()
}

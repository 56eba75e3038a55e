// Package journal records committed renames in SQLite so a run can be
// listed and reverted.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrRunNotFound is returned when a run ID matches nothing.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	location    TEXT NOT NULL,
	provider    TEXT NOT NULL,
	template    TEXT NOT NULL,
	dry_run     INTEGER NOT NULL DEFAULT 0,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	completed   INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	undone_at   TEXT
);

CREATE TABLE IF NOT EXISTS entries (
	id           TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq          INTEGER NOT NULL,
	location     TEXT NOT NULL,
	old_name     TEXT NOT NULL,
	new_name     TEXT NOT NULL,
	committed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_run ON entries(run_id, seq);
`

// Run is one batch invocation.
type Run struct {
	ID         string     `json:"id"`
	Location   string     `json:"location"`
	Provider   string     `json:"provider"`
	Template   string     `json:"template"`
	DryRun     bool       `json:"dry_run"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Completed  int        `json:"completed"`
	Failed     int        `json:"failed"`
	UndoneAt   *time.Time `json:"undone_at,omitempty"`
	Renames    int        `json:"renames"`
}

// Entry is one committed rename.
type Entry struct {
	ID          string    `json:"id"`
	RunID       string    `json:"run_id"`
	Seq         int       `json:"seq"`
	Location    string    `json:"location"`
	OldName     string    `json:"old_name"`
	NewName     string    `json:"new_name"`
	CommittedAt time.Time `json:"committed_at"`
}

// RunInfo describes a run being started.
type RunInfo struct {
	Location string
	Provider string
	Template string
	DryRun   bool
}

// Store is the SQLite-backed journal.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the journal at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun records the beginning of a run and returns its ID.
func (s *Store) StartRun(ctx context.Context, info RunInfo) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, location, provider, template, dry_run, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, info.Location, info.Provider, info.Template, info.DryRun, formatTime(s.now()))
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// Record appends a committed rename to runID.
func (s *Store) Record(ctx context.Context, runID, location, oldName, newName string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (id, run_id, seq, location, old_name, new_name, committed_at)
		 VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM entries WHERE run_id = ?), ?, ?, ?, ?)`,
		uuid.NewString(), runID, runID, location, oldName, newName, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// FinishRun stores the outcome counts of runID.
func (s *Store) FinishRun(ctx context.Context, runID string, completed, failed int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, completed = ?, failed = ? WHERE id = ?`,
		formatTime(s.now()), completed, failed, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return expectRow(res)
}

// MarkUndone flags runID as reverted.
func (s *Store) MarkUndone(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET undone_at = ? WHERE id = ?`, formatTime(s.now()), runID)
	if err != nil {
		return fmt.Errorf("mark undone: %w", err)
	}
	return expectRow(res)
}

const runColumns = `r.id, r.location, r.provider, r.template, r.dry_run, r.started_at, r.finished_at,
	r.completed, r.failed, r.undone_at, (SELECT COUNT(*) FROM entries e WHERE e.run_id = r.id)`

// Runs lists the most recent runs first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs r ORDER BY r.started_at DESC, r.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns runID.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs r WHERE r.id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return run, err
}

// LatestUndoable returns the newest run that has renames and was not undone.
func (s *Store) LatestUndoable(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs r
		 WHERE r.undone_at IS NULL AND EXISTS (SELECT 1 FROM entries e WHERE e.run_id = r.id)
		 ORDER BY r.started_at DESC, r.rowid DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return run, err
}

// Entries returns the renames of runID in commit order.
func (s *Store) Entries(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, seq, location, old_name, new_name, committed_at
		 FROM entries WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var committed string
		if err := rows.Scan(&e.ID, &e.RunID, &e.Seq, &e.Location, &e.OldName, &e.NewName, &committed); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.CommittedAt = parseTime(committed)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (Run, error) {
	var r Run
	var started string
	var finished, undone sql.NullString
	err := row.Scan(&r.ID, &r.Location, &r.Provider, &r.Template, &r.DryRun, &started, &finished,
		&r.Completed, &r.Failed, &undone, &r.Renames)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	r.StartedAt = parseTime(started)
	if finished.Valid {
		t := parseTime(finished.String)
		r.FinishedAt = &t
	}
	if undone.Valid {
		t := parseTime(undone.String)
		r.UndoneAt = &t
	}
	return r, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

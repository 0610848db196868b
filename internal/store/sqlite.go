package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store represents the SQLite run store.
type Store struct {
	db *sql.DB
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Prepare(query string) (*sql.Stmt, error)
}

// Open opens or creates the SQLite database at the given path and runs migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the underlying connection for migration tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SaveRun stores a run with its steps and diagnostics in one transaction.
// The run's steps hash and diagnostic count are set from what is stored.
func (s *Store) SaveRun(r *Run, steps []Step, diags []Diagnostic) error {
	r.StepsHash = computeStepsHash(steps)
	r.Diagnostics = len(diags)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertRun(tx, r); err != nil {
		return err
	}
	if err := insertSteps(tx, steps); err != nil {
		return err
	}
	if err := insertDiagnostics(tx, diags); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// InsertRun inserts a run.
func (s *Store) InsertRun(r *Run) error {
	return insertRun(s.db, r)
}

func insertRun(x execer, r *Run) error {
	_, err := x.Exec(`
		INSERT INTO runs (id, log_path, seed_hash, final_text, final_text_hash, steps_hash, event_count, in_focus_count, changed_count, diag_count, failure, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.LogPath, r.SeedHash[:], r.FinalText, r.FinalTextHash[:], r.StepsHash[:],
		r.Events, r.InFocus, r.Changed, r.Diagnostics, r.Failure, r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// InsertSteps inserts steps for a run.
func (s *Store) InsertSteps(steps []Step) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertSteps(tx, steps); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertSteps(x execer, steps []Step) error {
	if len(steps) == 0 {
		return nil
	}

	stmt, err := x.Prepare(`
		INSERT INTO steps (run_id, ordinal, event_index, event_id, char_offset, inserted, removed)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, st := range steps {
		if _, err := stmt.Exec(st.RunID, st.Ordinal, st.EventIndex, st.EventID, st.Offset, st.Inserted, st.Removed); err != nil {
			return fmt.Errorf("insert step: %w", err)
		}
	}
	return nil
}

// InsertDiagnostics inserts diagnostics for a run.
func (s *Store) InsertDiagnostics(diags []Diagnostic) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertDiagnostics(tx, diags); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertDiagnostics(x execer, diags []Diagnostic) error {
	if len(diags) == 0 {
		return nil
	}

	stmt, err := x.Prepare(`
		INSERT INTO diagnostics (run_id, ordinal, event_id, severity, kind, message, expected, actual, context)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, d := range diags {
		if _, err := stmt.Exec(d.RunID, d.Ordinal, d.EventID, d.Severity, d.Kind, d.Message, d.Expected, d.Actual, d.Context); err != nil {
			return fmt.Errorf("insert diagnostic: %w", err)
		}
	}
	return nil
}

const runColumns = `id, log_path, seed_hash, final_text, final_text_hash, steps_hash, event_count, in_focus_count, changed_count, diag_count, COALESCE(failure, ''), started_at, finished_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(sc rowScanner) (*Run, error) {
	var r Run
	var seedHash, textHash, stepsHash []byte

	if err := sc.Scan(&r.ID, &r.LogPath, &seedHash, &r.FinalText, &textHash, &stepsHash,
		&r.Events, &r.InFocus, &r.Changed, &r.Diagnostics, &r.Failure, &r.StartedAt, &r.FinishedAt); err != nil {
		return nil, err
	}

	copy(r.SeedHash[:], seedHash)
	copy(r.FinalTextHash[:], textHash)
	copy(r.StepsHash[:], stepsHash)
	return &r, nil
}

// GetRun retrieves a run by ID. It returns nil when no run has that ID.
func (s *Store) GetRun(id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs, newest first. A limit of zero or
// less returns every run.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// ListRunsForLog returns every run of one log file, oldest first.
func (s *Store) ListRunsForLog(logPath string) ([]Run, error) {
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs WHERE log_path = ? ORDER BY started_at ASC`, logPath)
	if err != nil {
		return nil, fmt.Errorf("query runs for log: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetSteps retrieves the steps of a run in order.
func (s *Store) GetSteps(runID string) ([]Step, error) {
	rows, err := s.db.Query(`
		SELECT run_id, ordinal, event_index, event_id, char_offset, inserted, removed
		FROM steps
		WHERE run_id = ?
		ORDER BY ordinal ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var st Step
		if err := rows.Scan(&st.RunID, &st.Ordinal, &st.EventIndex, &st.EventID, &st.Offset, &st.Inserted, &st.Removed); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return steps, nil
}

// GetDiagnostics retrieves the diagnostics of a run in order.
func (s *Store) GetDiagnostics(runID string) ([]Diagnostic, error) {
	rows, err := s.db.Query(`
		SELECT run_id, ordinal, event_id, severity, kind, message, expected, actual, COALESCE(context, '')
		FROM diagnostics
		WHERE run_id = ?
		ORDER BY ordinal ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()

	var diags []Diagnostic
	for rows.Next() {
		var d Diagnostic
		if err := rows.Scan(&d.RunID, &d.Ordinal, &d.EventID, &d.Severity, &d.Kind, &d.Message, &d.Expected, &d.Actual, &d.Context); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		diags = append(diags, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagnostics: %w", err)
	}
	return diags, nil
}

// DeleteRun removes a run with its steps and diagnostics.
func (s *Store) DeleteRun(id string) error {
	result, err := s.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// PruneRuns deletes the oldest runs of logPath until at most keep remain and
// returns how many were deleted. A keep of zero or less deletes nothing.
func (s *Store) PruneRuns(logPath string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	runs, err := s.ListRunsForLog(logPath)
	if err != nil {
		return 0, err
	}

	pruned := 0
	for len(runs)-pruned > keep {
		if err := s.DeleteRun(runs[pruned].ID); err != nil {
			return pruned, err
		}
		pruned++
	}
	return pruned, nil
}

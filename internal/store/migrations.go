package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database schema migration.
type Migration struct {
	Version     int
	Description string
	Up          string
}

// migrations contains all database migrations in order.
var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema with runs",
		Up:          migrationV1Up,
	},
	{
		Version:     2,
		Description: "Add steps table for per-event buffer edits",
		Up:          migrationV2Up,
	},
	{
		Version:     3,
		Description: "Add diagnostics table for replay anomalies",
		Up:          migrationV3Up,
	},
}

// Migration SQL statements

const migrationV1Up = `
CREATE TABLE IF NOT EXISTS runs (
    id              TEXT PRIMARY KEY,
    log_path        TEXT NOT NULL,
    seed_hash       BLOB NOT NULL,
    final_text      TEXT NOT NULL,
    final_text_hash BLOB NOT NULL,
    steps_hash      BLOB NOT NULL,
    event_count     INTEGER NOT NULL,
    in_focus_count  INTEGER NOT NULL,
    changed_count   INTEGER NOT NULL,
    diag_count      INTEGER NOT NULL,
    failure         TEXT,
    started_at      INTEGER NOT NULL,
    finished_at     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_log ON runs(log_path, started_at);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

const migrationV2Up = `
CREATE TABLE IF NOT EXISTS steps (
    run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    ordinal     INTEGER NOT NULL,
    event_index INTEGER NOT NULL,
    event_id    INTEGER NOT NULL,
    char_offset INTEGER NOT NULL,
    inserted    TEXT NOT NULL,
    removed     TEXT NOT NULL,
    PRIMARY KEY (run_id, ordinal)
);
`

const migrationV3Up = `
CREATE TABLE IF NOT EXISTS diagnostics (
    run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    ordinal     INTEGER NOT NULL,
    event_id    INTEGER NOT NULL,
    severity    TEXT NOT NULL,
    kind        TEXT NOT NULL,
    message     TEXT NOT NULL,
    expected    INTEGER NOT NULL DEFAULT 0,
    actual      INTEGER NOT NULL DEFAULT 0,
    context     TEXT,
    PRIMARY KEY (run_id, ordinal)
);

CREATE INDEX IF NOT EXISTS idx_diagnostics_kind ON diagnostics(kind);
`

// MigrateDB applies all pending migrations to the database.
func MigrateDB(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			applied_at  INTEGER NOT NULL,
			description TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	currentVersion, err := currentSchemaVersion(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
			m.Version, time.Now().UnixNano(), m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func currentSchemaVersion(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("get current version: %w", err)
	}
	return v, nil
}

// MigrationStatus reports which migrations have been applied.
type MigrationStatus struct {
	CurrentVersion int
	LatestVersion  int
	Pending        []Migration
	Applied        []AppliedMigration
}

// AppliedMigration is one row of schema_migrations.
type AppliedMigration struct {
	Version     int
	AppliedAt   time.Time
	Description string
}

// GetMigrationStatus returns the current migration status.
func GetMigrationStatus(db *sql.DB) (*MigrationStatus, error) {
	status := &MigrationStatus{
		LatestVersion: migrations[len(migrations)-1].Version,
	}

	rows, err := db.Query("SELECT version, applied_at, description FROM schema_migrations ORDER BY version")
	if err != nil {
		// Table might not exist yet
		status.Pending = migrations
		return status, nil
	}
	defer rows.Close()

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var am AppliedMigration
		var appliedAt int64
		if err := rows.Scan(&am.Version, &appliedAt, &am.Description); err != nil {
			return nil, fmt.Errorf("scan migration: %w", err)
		}
		am.AppliedAt = time.Unix(0, appliedAt)
		status.Applied = append(status.Applied, am)
		appliedVersions[am.Version] = true

		if am.Version > status.CurrentVersion {
			status.CurrentVersion = am.Version
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migrations: %w", err)
	}

	for _, m := range migrations {
		if !appliedVersions[m.Version] {
			status.Pending = append(status.Pending, m)
		}
	}

	return status, nil
}

// ValidateSchema checks that all expected tables exist.
func ValidateSchema(db *sql.DB) error {
	requiredTables := []string{
		"runs",
		"steps",
		"diagnostics",
		"schema_migrations",
	}

	for _, table := range requiredTables {
		var count int
		err := db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&count)
		if err != nil {
			return fmt.Errorf("check table %s: %w", table, err)
		}
		if count == 0 {
			return fmt.Errorf("missing required table: %s", table)
		}
	}

	return nil
}

// Package sqlitelog implements a SQLite-backed history.Recorder using
// database/sql. Run rows and their per-file rows are written inside one
// transaction so a run is either fully recorded or not at all.
package sqlitelog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// SQLite driver.
	_ "modernc.org/sqlite"

	"marketcal/internal/history"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	kind        TEXT    NOT NULL,
	started_at  TEXT    NOT NULL,
	total_files INTEGER NOT NULL,
	failed      INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS run_files (
	run_id      INTEGER NOT NULL REFERENCES runs(id),
	path        TEXT    NOT NULL,
	ok          INTEGER NOT NULL,
	issues      INTEGER NOT NULL,
	repaired    INTEGER NOT NULL,
	fingerprint TEXT    NOT NULL,
	duration_ms INTEGER NOT NULL
);
`

// Recorder is a SQLite-backed implementation of history.Recorder.
type Recorder struct {
	db *sql.DB
}

// Open opens (creating if necessary) the ledger at path and ensures the
// schema exists.
//
// The path is passed directly to database/sql; for example:
//
//	"runs.db"
//	"file:runs.db?cache=shared"
func Open(ctx context.Context, path string) (*Recorder, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlitelog: path must not be empty")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitelog: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitelog: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitelog: ensure schema: %w", err)
	}
	return &Recorder{db: db}, nil
}

// RecordRun implements history.Recorder.
func (r *Recorder) RecordRun(ctx context.Context, run history.Run) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitelog: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (kind, started_at, total_files, failed) VALUES (?, ?, ?, ?)`,
		run.Kind, run.Started.UTC().Format(time.RFC3339), len(run.Files), run.Failed(),
	)
	if err != nil {
		return fmt.Errorf("sqlitelog: insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlitelog: run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_files (run_id, path, ok, issues, repaired, fingerprint, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("sqlitelog: prepare files: %w", err)
	}
	defer stmt.Close()

	for _, f := range run.Files {
		if _, err := stmt.ExecContext(ctx,
			runID, f.Path, f.OK, f.Issues, f.Repaired,
			fmt.Sprintf("%016x", f.Fingerprint), f.Duration.Milliseconds(),
		); err != nil {
			return fmt.Errorf("sqlitelog: insert file %q: %w", f.Path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlitelog: commit: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (r *Recorder) Close() error { return r.db.Close() }

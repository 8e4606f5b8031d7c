// Package history records the outcome of ingestion and validation runs so
// operators can answer "when did this file last pass, and what changed"
// without re-running anything.
//
// It mirrors the metrics package's shape: a narrow Recorder interface with a
// no-op default, and the concrete SQLite implementation isolated in a
// subpackage so the rest of the module never imports a database driver.
package history

import (
	"context"
	"time"
)

// FileEntry is the per-file outcome of one run.
type FileEntry struct {
	Path        string
	OK          bool
	Issues      int
	Repaired    int
	Fingerprint uint64
	Duration    time.Duration
}

// Run is one completed ingestion or validation run.
type Run struct {
	// Kind is "ingest" or "validate".
	Kind    string
	Started time.Time
	Files   []FileEntry
}

// Failed counts the files that did not pass.
func (r Run) Failed() int {
	n := 0
	for _, f := range r.Files {
		if !f.OK {
			n++
		}
	}
	return n
}

// Recorder persists completed runs.
type Recorder interface {
	RecordRun(ctx context.Context, run Run) error
	Close() error
}

// Nop is a Recorder that discards everything; it is the default so history
// is always safe to call when no ledger is configured.
type Nop struct{}

func (Nop) RecordRun(context.Context, Run) error { return nil }
func (Nop) Close() error                         { return nil }

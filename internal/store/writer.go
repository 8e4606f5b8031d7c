package store

import (
	"fmt"
	"os"
	"time"

	"github.com/zeebo/xxh3"

	"marketcal/internal/table"
	"marketcal/internal/validate"
)

// Defaults for lock-contention retries.
const (
	DefaultRetries = 3
	DefaultDelay   = time.Second
)

// Function variables used to introduce test seams. Production code never
// overrides these.
var (
	renameFn = os.Rename
	removeFn = os.Remove
	sleepFn  = time.Sleep
)

// LockExhaustedError reports that the destination stayed locked by another
// process through every rename attempt. It is fatal for the write.
type LockExhaustedError struct {
	Path     string
	Attempts int
}

func (e *LockExhaustedError) Error() string {
	return fmt.Sprintf("store: %q still locked after %d attempts", e.Path, e.Attempts)
}

// SchemaMismatchError reports that an existing destination does not carry
// the exact registry schema, which makes an append impossible.
type SchemaMismatchError struct {
	Path   string
	Issues []validate.Issue
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("store: %q schema does not match registry (%d issues)", e.Path, len(e.Issues))
}

// Writer performs atomic replacement writes of store files.
//
// The table is serialized to a sibling temporary file first, then moved over
// the destination in one rename. A failed or exhausted write leaves the
// previous destination content on disk. Only lock-contention errors are
// retried; every other I/O error propagates at once.
type Writer struct {
	// Retries is the number of replace attempts under lock contention.
	// Zero means DefaultRetries.
	Retries int

	// Delay is the pause between attempts. Zero means DefaultDelay.
	Delay time.Duration

	// Logf, when set, receives attempt-level diagnostics.
	Logf func(format string, args ...any)
}

func (w Writer) retries() int {
	if w.Retries > 0 {
		return w.Retries
	}
	return DefaultRetries
}

func (w Writer) delay() time.Duration {
	if w.Delay > 0 {
		return w.Delay
	}
	return DefaultDelay
}

func (w Writer) logf(format string, args ...any) {
	if w.Logf != nil {
		w.Logf(format, args...)
	}
}

// Write persists t to path via the atomic replace path and returns the
// xxh3 fingerprint of the serialized content.
func (w Writer) Write(path string, t *table.Table) (uint64, error) {
	data, err := EncodeBytes(t)
	if err != nil {
		return 0, err
	}
	sum := xxh3.Hash(data)

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("store: create temp %q: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		removeFn(tmp)
		return 0, fmt.Errorf("store: write temp %q: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		removeFn(tmp)
		return 0, fmt.Errorf("store: sync temp %q: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		removeFn(tmp)
		return 0, fmt.Errorf("store: close temp %q: %w", tmp, err)
	}

	retries := w.retries()
	for attempt := 1; attempt <= retries; attempt++ {
		err := w.replace(tmp, path)
		if err == nil {
			w.logf("store: wrote %s rows=%d fingerprint=%016x", path, t.Len(), sum)
			return sum, nil
		}
		if !isLockErr(err) {
			removeFn(tmp)
			return 0, err
		}
		w.logf("store: %q is locked (open elsewhere), attempt %d/%d", path, attempt, retries)
		if attempt < retries {
			sleepFn(w.delay())
		}
	}
	removeFn(tmp)
	return 0, &LockExhaustedError{Path: path, Attempts: retries}
}

// replace renames the temp file over the destination. The rename goes first
// so a locked destination is never deleted; only when the platform refuses
// to rename over an existing file is the destination removed and the rename
// tried once more.
func (w Writer) replace(tmp, path string) error {
	err := renameFn(tmp, path)
	if err == nil {
		return nil
	}
	if isLockErr(err) {
		return err
	}
	if _, serr := os.Stat(path); serr != nil {
		return fmt.Errorf("store: rename %q -> %q: %w", tmp, path, err)
	}
	if rerr := removeFn(path); rerr != nil {
		if isLockErr(rerr) {
			return rerr
		}
		return fmt.Errorf("store: remove %q: %w", path, rerr)
	}
	if err := renameFn(tmp, path); err != nil {
		if isLockErr(err) {
			return err
		}
		return fmt.Errorf("store: rename %q -> %q: %w", tmp, path, err)
	}
	return nil
}

// Overwrite replaces the store at path wholesale. A readable existing
// destination must carry exactly t's schema, so a mistyped path cannot
// clobber an unrelated store; an unreadable destination is replaced anyway,
// since overwrite is the recovery path for a corrupt file.
func (w Writer) Overwrite(path string, t *table.Table) (uint64, error) {
	existing, err := ReadFile(path)
	if err == nil && !existing.Schema().Equal(t.Schema()) {
		return 0, &SchemaMismatchError{Path: path, Issues: validate.Shape(existing.Schema(), t.Schema())}
	}
	return w.Write(path, t)
}

// Append concatenates t's rows after the rows already stored at path and
// rewrites the whole destination atomically. The existing file must carry
// exactly t's schema; there are no partial-schema appends and no per-row
// durability. A missing destination degrades to a plain Write. It returns
// the total row count persisted and the content fingerprint.
func (w Writer) Append(path string, t *table.Table) (int, uint64, error) {
	existing, err := ReadFile(path)
	if os.IsNotExist(err) {
		sum, werr := w.Write(path, t)
		return t.Len(), sum, werr
	}
	if err != nil {
		return 0, 0, fmt.Errorf("store: read existing %q: %w", path, err)
	}

	if !existing.Schema().Equal(t.Schema()) {
		return 0, 0, &SchemaMismatchError{Path: path, Issues: validate.Shape(existing.Schema(), t.Schema())}
	}

	combined, err := table.Concat(existing, t)
	if err != nil {
		return 0, 0, err
	}
	sum, err := w.Write(path, combined)
	if err != nil {
		return 0, 0, err
	}
	return combined.Len(), sum, nil
}

// FingerprintFile returns the xxh3 hash of the file's current content, used
// to identify store versions across validation runs.
func FingerprintFile(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return xxh3.Hash(data), nil
}

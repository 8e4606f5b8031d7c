//go:build unix

package store

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

/*
TestWrite_LockRetry overrides the rename seam to fail with EBUSY a fixed
number of times. Two transient failures within the retry budget succeed on
the third attempt; a destination that never unlocks exhausts the budget and
surfaces LockExhaustedError while leaving the original file intact.
*/
func TestWrite_LockRetry(t *testing.T) {
	origRename, origSleep := renameFn, sleepFn
	defer func() { renameFn, sleepFn = origRename, origSleep }()

	var slept int
	sleepFn = func(time.Duration) { slept++ }

	path := filepath.Join(t.TempDir(), "s.feather")
	tbl := marketTable(t, [][3]string{{"A", "Trading Holiday", "2024-01-01"}})

	// Two transient failures, then success.
	fails := 2
	renameFn = func(oldpath, newpath string) error {
		if fails > 0 {
			fails--
			return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EBUSY}
		}
		return os.Rename(oldpath, newpath)
	}
	if _, err := (Writer{Delay: time.Millisecond}).Write(path, tbl); err != nil {
		t.Fatalf("Write should survive two lock failures: %v", err)
	}
	if slept != 2 {
		t.Errorf("slept %d times, want 2", slept)
	}
	if _, err := ReadFile(path); err != nil {
		t.Fatalf("destination unreadable after retried write: %v", err)
	}
	before, err := FingerprintFile(path)
	if err != nil {
		t.Fatalf("FingerprintFile: %v", err)
	}

	// Destination never unlocks: budget exhausts, original stays intact.
	renameFn = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EBUSY}
	}
	next := marketTable(t, [][3]string{{"B", "Special Session", "2024-02-02"}})
	_, err = (Writer{Delay: time.Millisecond}).Write(path, next)

	var exhausted *LockExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected LockExhaustedError, got %v", err)
	}
	if exhausted.Attempts != DefaultRetries {
		t.Errorf("attempts = %d, want %d", exhausted.Attempts, DefaultRetries)
	}
	after, err := FingerprintFile(path)
	if err != nil {
		t.Fatalf("FingerprintFile: %v", err)
	}
	if before != after {
		t.Error("exhausted write corrupted the destination")
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after exhausted write")
	}
}

/*
TestWrite_NonLockErrorNoRetry: a permission-style failure propagates on the
first attempt without sleeping.
*/
func TestWrite_NonLockErrorNoRetry(t *testing.T) {
	origRename, origSleep := renameFn, sleepFn
	defer func() { renameFn, sleepFn = origRename, origSleep }()

	var slept int
	sleepFn = func(time.Duration) { slept++ }

	var attempts int
	renameFn = func(oldpath, newpath string) error {
		attempts++
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EACCES}
	}

	path := filepath.Join(t.TempDir(), "s.feather")
	tbl := marketTable(t, [][3]string{{"A", "Trading Holiday", "2024-01-01"}})
	_, err := (Writer{}).Write(path, tbl)
	if err == nil {
		t.Fatal("expected error")
	}
	var exhausted *LockExhaustedError
	if errors.As(err, &exhausted) {
		t.Fatal("non-lock error must not be classified as lock exhaustion")
	}
	if attempts != 1 || slept != 0 {
		t.Errorf("attempts=%d slept=%d, want a single attempt and no sleep", attempts, slept)
	}
}

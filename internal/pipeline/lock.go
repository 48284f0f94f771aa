package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/jamie8johnson/cqs-sub000/internal/cqserrors"
)

// LockFileName sits under the index directory; its presence signals an
// indexing run in progress (or one that crashed before Release), which
// `cqs doctor` reports via HeldSince, per SPEC_FULL.md §5.
const LockFileName = "indexing.lock"

// RunLock wraps an OS-level advisory lock so only one indexing run
// touches a given index directory at a time.
type RunLock struct {
	flock *flock.Flock
	path  string
}

// AcquireLock takes an exclusive, non-blocking lock on indexDir's lock
// file. A held lock from a still-running process yields a non-retryable
// I/O error; a stale lock left by a crashed process is still acquired,
// since flock releases automatically when its owning process exits.
func AcquireLock(indexDir string) (*RunLock, error) {
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return nil, cqserrors.IOError("pipeline.acquire_lock", indexDir, err)
	}
	path := filepath.Join(indexDir, LockFileName)
	fl := flock.New(path)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, cqserrors.IOError("pipeline.acquire_lock", path, err)
	}
	if !locked {
		return nil, cqserrors.New(cqserrors.ErrCodeIOGeneric, "pipeline.acquire_lock",
			fmt.Sprintf("another indexing run holds the lock at %s", path), nil).
			WithSuggestion("wait for the other run to finish, or remove the lock file if it's stale")
	}
	return &RunLock{flock: fl, path: path}, nil
}

// Release unlocks and removes the lock file. Safe to call once.
func (l *RunLock) Release() error {
	if l == nil {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return cqserrors.IOError("pipeline.release_lock", l.path, err)
	}
	return os.Remove(l.path)
}

// HeldSince reports how long ago the lock file was created, used to
// surface "a prior run has been indexing for N minutes" diagnostics.
func HeldSince(indexDir string) (time.Duration, bool) {
	info, err := os.Stat(filepath.Join(indexDir, LockFileName))
	if err != nil {
		return 0, false
	}
	return time.Since(info.ModTime()), true
}

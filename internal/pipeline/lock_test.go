package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLock_SecondAcquireFailsWhileHeld(t *testing.T) {
	// Given: a lock already held on an index directory
	dir := t.TempDir()
	first, err := AcquireLock(dir)
	require.NoError(t, err)
	defer first.Release()

	// When: a second run tries to acquire the same lock
	_, err = AcquireLock(dir)

	// Then: it fails rather than blocking
	assert.Error(t, err)
}

func TestAcquireLock_ReleaseAllowsReacquire(t *testing.T) {
	// Given: a lock taken then released
	dir := t.TempDir()
	first, err := AcquireLock(dir)
	require.NoError(t, err)
	require.NoError(t, first.Release())

	// When: another run acquires it
	second, err := AcquireLock(dir)

	// Then: it succeeds
	require.NoError(t, err)
	assert.NoError(t, second.Release())
}

func TestAcquireLock_CreatesIndexDirIfMissing(t *testing.T) {
	// Given: an index directory that doesn't exist yet
	dir := filepath.Join(t.TempDir(), "nested", "index")

	// When: I acquire the lock
	lock, err := AcquireLock(dir)

	// Then: the directory is created and the lock succeeds
	require.NoError(t, err)
	defer lock.Release()
}

func TestHeldSince_ReportsFalseWhenNoLockFile(t *testing.T) {
	// Given: an index directory with no lock file
	dir := t.TempDir()

	// When/Then: HeldSince reports not-held
	_, held := HeldSince(dir)
	assert.False(t, held)
}

func TestHeldSince_ReportsTrueWhileLockHeld(t *testing.T) {
	// Given: a held lock
	dir := t.TempDir()
	lock, err := AcquireLock(dir)
	require.NoError(t, err)
	defer lock.Release()

	// When/Then: HeldSince reports held, with a non-negative duration
	dur, held := HeldSince(dir)
	assert.True(t, held)
	assert.GreaterOrEqual(t, dur.Seconds(), 0.0)
}

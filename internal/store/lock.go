package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// fileLock guards a database file against concurrent process access using
// gofrs/flock. Works on all platforms (Unix, Linux, macOS, Windows).
type fileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// newFileLock creates a lock for the database at dbPath. The lock file is
// created next to the database as <dbPath>.lock.
func newFileLock(dbPath string) *fileLock {
	lockPath := dbPath + ".lock"
	return &fileLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// acquire takes the lock: shared for read-only access, exclusive otherwise.
// Returns ErrLocked without blocking when another process holds a
// conflicting lock.
func (l *fileLock) acquire(readOnly bool) error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	var acquired bool
	var err error
	if readOnly {
		acquired, err = l.flock.TryRLock()
	} else {
		acquired, err = l.flock.TryLock()
	}
	if err != nil {
		return fmt.Errorf("failed to acquire database lock: %w", err)
	}
	if !acquired {
		return ErrLocked
	}

	l.locked = true
	return nil
}

// release drops the lock if held.
func (l *fileLock) release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	return l.flock.Unlock()
}

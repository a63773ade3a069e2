package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Guard holds an exclusive file lock for the lifetime of the daemon. A
// second daemon against the same store would double-dispatch and corrupt
// attempt counts, so failing to take the lock is fatal at startup.
type Guard struct {
	fl *flock.Flock
}

// Acquire takes the lock without blocking. It returns an error when another
// process already holds it.
func Acquire(path string) (*Guard, error) {
	if path == "" {
		return nil, fmt.Errorf("lock path cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire instance lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another instance already holds the lock at %s", path)
	}

	return &Guard{fl: fl}, nil
}

// Release drops the lock. Safe to call once at shutdown.
func (g *Guard) Release() error {
	if g == nil || g.fl == nil {
		return nil
	}
	return g.fl.Unlock()
}

// Path returns the lock file path.
func (g *Guard) Path() string {
	return g.fl.Path()
}

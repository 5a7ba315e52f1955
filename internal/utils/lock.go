package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockFileName = ".refresh.lock"

// RefreshLock is a file-based lock over the data directory so two scrapview
// processes never rebuild the same snapshot artifacts concurrently.
type RefreshLock struct {
	lock *flock.Flock
	path string
}

// NewRefreshLock creates the lock for the given data directory.
func NewRefreshLock(dataDir string) (*RefreshLock, error) {
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("could not resolve data dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("could not create data dir: %w", err)
	}
	lockPath := filepath.Join(abs, lockFileName)
	return &RefreshLock{
		lock: flock.New(lockPath),
		path: lockPath,
	}, nil
}

// Lock acquires the lock, waiting if another process holds it.
func (l *RefreshLock) Lock() error {
	locked, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}
	if !locked {
		Log.Infof("Another scrapview process is refreshing, waiting for it to finish...")
		if err := l.lock.Lock(); err != nil {
			return fmt.Errorf("failed to acquire lock on %s after waiting: %w", l.path, err)
		}
	}
	return nil
}

// Unlock releases the lock.
func (l *RefreshLock) Unlock() error {
	if err := l.lock.Unlock(); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to release lock on %s: %w", l.path, err)
	}
	return nil
}

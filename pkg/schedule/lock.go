package schedule

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// lockRecord is the on-disk shape of the single-flight lock.
type lockRecord struct {
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// FileLock is a file-based mutual-exclusion lock so at most one process
// acts as healer at a time, surviving restarts. A lock whose expiry has
// passed is reclaimable by anyone; an owner may refresh its own lock.
type FileLock struct {
	path string
	now  func() time.Time
}

// NewFileLock creates a lock over the given file path.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path, now: time.Now}
}

// Acquire takes or refreshes the lock for owner with the given ttl.
// It returns false when another owner holds a live lock.
func (l *FileLock) Acquire(owner string, ttl time.Duration) (bool, error) {
	current, err := l.read()
	if err != nil {
		return false, err
	}
	if current != nil && current.Owner != owner && l.now().Before(current.ExpiresAt) {
		return false, nil
	}
	if err := l.write(&lockRecord{Owner: owner, ExpiresAt: l.now().Add(ttl)}); err != nil {
		return false, err
	}
	return true, nil
}

// Release removes the lock if owner holds it. Releasing a lock held by
// someone else is a no-op.
func (l *FileLock) Release(owner string) error {
	current, err := l.read()
	if err != nil {
		return err
	}
	if current == nil || current.Owner != owner {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock: %w", err)
	}
	return nil
}

// Holder returns the current owner, or "" when the lock is free or stale.
func (l *FileLock) Holder() (string, error) {
	current, err := l.read()
	if err != nil {
		return "", err
	}
	if current == nil || !l.now().Before(current.ExpiresAt) {
		return "", nil
	}
	return current.Owner, nil
}

func (l *FileLock) read() (*lockRecord, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read lock: %w", err)
	}
	var rec lockRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		// A corrupt lock file is treated as free rather than wedging the
		// healer forever.
		return nil, nil
	}
	return &rec, nil
}

func (l *FileLock) write(rec *lockRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write lock: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("commit lock: %w", err)
	}
	return nil
}

// DefaultLockPath places the lock next to the state database.
func DefaultLockPath(dataDir string) string {
	return filepath.Join(dataDir, "healer.lock")
}

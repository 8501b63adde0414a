//go:build !unix

package index

import (
	"errors"
	"os"
	"path/filepath"
)

// TryLock makes one non-blocking attempt at the lock. Without flock the lock
// is the existence of the lock file; a crashed holder leaves it behind and it
// must be removed by hand.
func (s *Store) TryLock() (func(), error) {
	path := s.LockPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &StoreIOError{Op: "lock", Path: path, Err: err}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, ErrLocked
		}
		return nil, &StoreIOError{Op: "lock", Path: path, Err: err}
	}
	_ = f.Close()
	return func() {
		_ = os.Remove(path)
	}, nil
}

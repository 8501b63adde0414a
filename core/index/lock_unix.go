//go:build unix

package index

import (
	"errors"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// TryLock makes one non-blocking attempt at the advisory lock.
func (s *Store) TryLock() (func(), error) {
	path := s.LockPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &StoreIOError{Op: "lock", Path: path, Err: err}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, &StoreIOError{Op: "lock", Path: path, Err: err}
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
			return nil, ErrLocked
		}
		return nil, &StoreIOError{Op: "lock", Path: path, Err: err}
	}
	s.logger.Debug("Channel index locked", zap.String("lock", path))
	return func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		_ = f.Close()
		s.logger.Debug("Channel index unlocked", zap.String("lock", path))
	}, nil
}

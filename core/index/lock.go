package index

import (
	"context"
	"errors"
	"time"
)

const lockPollInterval = 100 * time.Millisecond

// LockPath returns the path of the advisory lock file.
func (s *Store) LockPath() string {
	return s.path + ".lock"
}

// Lock acquires the exclusive advisory lock, polling until ctx ends. The
// returned func releases it. ErrLocked is returned when ctx expires first.
func (s *Store) Lock(ctx context.Context) (func(), error) {
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()
	for {
		unlock, err := s.TryLock()
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, ErrLocked) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ErrLocked
		case <-ticker.C:
		}
	}
}

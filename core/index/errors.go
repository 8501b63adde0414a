package index

import (
	"errors"
	"fmt"
)

// ErrLocked is returned when the index lock is held by another writer.
var ErrLocked = errors.New("channel index is locked by another operation")

// CorruptIndexError reports an index file that exists but cannot be parsed.
type CorruptIndexError struct {
	Path string
	Err  error
}

func (e *CorruptIndexError) Error() string {
	return fmt.Sprintf("channel index %s is corrupt: %v", e.Path, e.Err)
}

func (e *CorruptIndexError) Unwrap() error {
	return e.Err
}

// StoreIOError reports a failure to read or persist the index.
type StoreIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreIOError) Error() string {
	return fmt.Sprintf("channel index %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreIOError) Unwrap() error {
	return e.Err
}

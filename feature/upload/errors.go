package upload

import (
	"errors"
	"fmt"
)

// ErrNoConnectivity is returned when the channel API cannot be reached
// before the first task.
var ErrNoConnectivity = errors.New("channel API unreachable")

// TransientSendError is a send failure worth retrying.
type TransientSendError struct {
	Key string
	Err error
}

func (e *TransientSendError) Error() string {
	return fmt.Sprintf("send %q: %v", e.Key, e.Err)
}

func (e *TransientSendError) Unwrap() error {
	return e.Err
}

// Retryable marks the error as transient for the retry policy.
func (e *TransientSendError) Retryable() bool {
	return true
}

// PermanentSendError is a send failure that retrying cannot fix.
type PermanentSendError struct {
	Key string
	Err error
}

func (e *PermanentSendError) Error() string {
	return fmt.Sprintf("send %q: %v", e.Key, e.Err)
}

func (e *PermanentSendError) Unwrap() error {
	return e.Err
}

// Retryable marks the error as permanent for the retry policy.
func (e *PermanentSendError) Retryable() bool {
	return false
}

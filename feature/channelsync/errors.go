package channelsync

import "fmt"

// SyncError reports a history fetch that failed for good. The index file
// is left as it was.
type SyncError struct {
	// BeforeID is the page cursor that could not be fetched.
	BeforeID int64
	Err      error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("channel sync failed fetching history before message %d: %v", e.BeforeID, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

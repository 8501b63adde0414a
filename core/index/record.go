package index

import (
	"sort"
	"time"
)

// Record describes one published channel message.
type Record struct {
	// Key is the identity key. It is the JSON object member name, not a field.
	Key string `json:"-"`
	// MessageID is the channel message id.
	MessageID int64 `json:"message_id"`
	// Title is the book title as published.
	Title string `json:"title"`
	// Category is the published category, nil when the message had none.
	Category *string `json:"category"`
	// Timestamp is when the message was published.
	Timestamp time.Time `json:"timestamp"`
	// Sequence is the position of the record in channel order.
	Sequence int `json:"sequence"`
	// Filename is the name of the attached document, when known.
	Filename string `json:"filename,omitempty"`
	// Stale marks a record whose message could not be found on the channel
	// during the last full sync.
	Stale bool `json:"stale,omitempty"`
}

// CategoryString returns the category or "" when unset.
func (r Record) CategoryString() string {
	if r.Category == nil {
		return ""
	}
	return *r.Category
}

// StringPtr returns nil for "" and a pointer to s otherwise.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// sortRecords orders records by sequence, then message id, then key.
func sortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Sequence != b.Sequence {
			return a.Sequence < b.Sequence
		}
		if a.MessageID != b.MessageID {
			return a.MessageID < b.MessageID
		}
		return a.Key < b.Key
	})
}

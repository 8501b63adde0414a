package reconcile

import (
	"errors"
	"iter"
	"strconv"
	"strings"

	"channel-publisher/core/catalog"
)

// ErrOffsetNotFound is returned when an offset names an item the scan did
// not produce.
var ErrOffsetNotFound = errors.New("offset not found in local catalog")

// Offset selects where gap detection starts. A non-empty Key wins over
// Index. The zero value starts at the first item.
type Offset struct {
	// Index is a zero-based scan position.
	Index int
	// Key is a normalized identity key.
	Key string
}

// NoOffset starts at the first item.
var NoOffset = Offset{}

// KeyPrefix marks an offset as an identity key even when it is numeric.
const KeyPrefix = "key:"

// ParseOffset maps a decimal string to a position and anything else to a
// normalized identity key. File names are accepted as keys. A KeyPrefix
// forces key interpretation, so "key:1984" names the book 1984.
func ParseOffset(s string) Offset {
	s = strings.TrimSpace(s)
	if s == "" {
		return NoOffset
	}
	if rest, ok := strings.CutPrefix(s, KeyPrefix); ok {
		return keyOffset(strings.TrimSpace(rest), s)
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return Offset{Index: n}
	}
	return keyOffset(s, s)
}

// keyOffset normalizes s; raw is kept when nothing usable remains.
func keyOffset(s, raw string) Offset {
	if catalog.IsBookFile(s) {
		return Offset{Key: catalog.KeyFromFilename(s)}
	}
	key := catalog.NormalizeKey(s)
	if key == "" {
		// Keep something that cannot match so the caller gets ErrOffsetNotFound
		// rather than a silent full run.
		return Offset{Key: raw}
	}
	return Offset{Key: key}
}

// IsZero reports whether o starts at the first item.
func (o Offset) IsZero() bool {
	return o == NoOffset
}

func (o Offset) String() string {
	if o.Key != "" {
		return o.Key
	}
	return strconv.Itoa(o.Index)
}

func (o Offset) matches(item catalog.BookItem) bool {
	if o.Key != "" {
		return item.Key == o.Key
	}
	return item.Position == o.Index
}

// DetectGaps returns, in scan order, the items at or after offset whose key
// is not in published. Each key is returned at most once.
func DetectGaps(items iter.Seq[catalog.BookItem], published KeySet, offset Offset) ([]UploadTask, error) {
	var tasks []UploadTask
	queued := make(map[string]struct{})
	started := offset.IsZero()

	for item := range items {
		if !started {
			if !offset.matches(item) {
				continue
			}
			started = true
		}
		if _, ok := published[item.Key]; ok {
			continue
		}
		if _, ok := queued[item.Key]; ok {
			continue
		}
		queued[item.Key] = struct{}{}
		tasks = append(tasks, UploadTask{Key: item.Key, Item: item})
	}

	if !started {
		return nil, ErrOffsetNotFound
	}
	return tasks, nil
}

// Keys returns the identity keys of tasks, in order.
func Keys(tasks []UploadTask) []string {
	keys := make([]string, len(tasks))
	for i, t := range tasks {
		keys[i] = t.Key
	}
	return keys
}

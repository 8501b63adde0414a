package index

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Overridden in tests to simulate a crash mid-save.
var (
	createTemp = os.CreateTemp
	renameFile = os.Rename
)

// Store is the channel index. All methods are safe for concurrent use;
// cross-process exclusion is provided by Lock.
type Store struct {
	path   string
	logger *zap.Logger

	mu      sync.RWMutex
	records map[string]Record
}

// Open returns a store for the index file at path. Nothing is read until
// Load is called.
func Open(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:    path,
		logger:  logger,
		records: make(map[string]Record),
	}
}

// Path returns the index file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the index file into memory. A missing file yields an empty
// index. A malformed file yields *CorruptIndexError and leaves the current
// in-memory state untouched.
//
// Load discards unsaved changes, so callers that do not hold the lock should
// use Peek instead.
func (s *Store) Load() error {
	records, err := s.read()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.records = records
	s.mu.Unlock()

	s.logger.Debug("Channel index loaded", zap.String("path", s.path), zap.Int("records", len(records)))
	return nil
}

// Peek reads the index file without touching the in-memory index. It is
// the read path for reports that run alongside a sync or an upload batch.
func (s *Store) Peek() (*View, error) {
	records, err := s.read()
	if err != nil {
		return nil, err
	}
	return &View{records: records}, nil
}

func (s *Store) read() (map[string]Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("Channel index not found, starting empty", zap.String("path", s.path))
			return make(map[string]Record), nil
		}
		return nil, &StoreIOError{Op: "read", Path: s.path, Err: err}
	}
	records, err := decode(data)
	if err != nil {
		return nil, &CorruptIndexError{Path: s.path, Err: err}
	}
	return records, nil
}

// Import replaces the index with the document read from r and saves it. A
// malformed document yields *CorruptIndexError and changes nothing.
func (s *Store) Import(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return &StoreIOError{Op: "import", Path: s.path, Err: err}
	}
	records, err := decode(data)
	if err != nil {
		return &CorruptIndexError{Path: s.path, Err: err}
	}
	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	return s.Save()
}

// Get returns the record for key.
func (s *Store) Get(key string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	return rec, ok
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Records returns a copy of all records in sequence order.
func (s *Store) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedRecords(s.records)
}

// Keys returns the set of identity keys in the index.
func (s *Store) Keys() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return keySet(s.records)
}

// MaxMessageID returns the highest message id in the index, 0 if empty.
func (s *Store) MaxMessageID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var max int64
	for _, rec := range s.records {
		if rec.MessageID > max {
			max = rec.MessageID
		}
	}
	return max
}

// Upsert inserts rec or replaces the record with the same key. A replaced
// record keeps its original sequence; a new record is appended after the
// current last one. The stored record is returned.
func (s *Store) Upsert(rec Record) (Record, error) {
	if rec.Key == "" {
		return Record{}, fmt.Errorf("upsert: record has no key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[rec.Key]; ok {
		rec.Sequence = existing.Sequence
	} else {
		rec.Sequence = s.nextSequenceLocked()
	}
	s.records[rec.Key] = rec
	return rec, nil
}

// Replace installs records as the complete index. Sequences are taken as
// given; keys must be unique.
func (s *Store) Replace(records []Record) error {
	next := make(map[string]Record, len(records))
	for _, rec := range records {
		if rec.Key == "" {
			return fmt.Errorf("replace: record with message id %d has no key", rec.MessageID)
		}
		if _, dup := next[rec.Key]; dup {
			return fmt.Errorf("replace: duplicate key %q", rec.Key)
		}
		next[rec.Key] = rec
	}
	s.mu.Lock()
	s.records = next
	s.mu.Unlock()
	return nil
}

// Update applies fn to the record for key. It reports whether the key exists.
func (s *Store) Update(key string, fn func(*Record)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return false
	}
	fn(&rec)
	rec.Key = key
	s.records[key] = rec
	return true
}

// Delete removes the record for key. It reports whether the key existed.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return false
	}
	delete(s.records, key)
	return true
}

// Save atomically replaces the index file with the in-memory index.
func (s *Store) Save() error {
	data, err := encode(s.Records())
	if err != nil {
		return &StoreIOError{Op: "encode", Path: s.path, Err: err}
	}
	if err := writeFileAtomic(s.path, data, 0o644); err != nil {
		return &StoreIOError{Op: "write", Path: s.path, Err: err}
	}
	return nil
}

// View is a read-only copy of the index file taken by Peek.
type View struct {
	records map[string]Record
}

// Len returns the number of records.
func (v *View) Len() int { return len(v.records) }

// Get returns the record for key.
func (v *View) Get(key string) (Record, bool) {
	rec, ok := v.records[key]
	return rec, ok
}

// Records returns the records in sequence order.
func (v *View) Records() []Record { return sortedRecords(v.records) }

// Keys returns the set of identity keys.
func (v *View) Keys() map[string]struct{} { return keySet(v.records) }

func sortedRecords(records map[string]Record) []Record {
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		out = append(out, rec)
	}
	sortRecords(out)
	return out
}

func keySet(records map[string]Record) map[string]struct{} {
	keys := make(map[string]struct{}, len(records))
	for key := range records {
		keys[key] = struct{}{}
	}
	return keys
}

func (s *Store) nextSequenceLocked() int {
	next := 0
	for _, rec := range s.records {
		if rec.Sequence >= next {
			next = rec.Sequence + 1
		}
	}
	return next
}

func decode(data []byte) (map[string]Record, error) {
	var doc map[string]Record
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		// The literal "null" is not an index.
		return nil, errors.New("document is null")
	}
	records := make(map[string]Record, len(doc))
	for key, rec := range doc {
		rec.Key = key
		records[key] = rec
	}
	return records, nil
}

// encode renders records as a JSON object whose members follow the slice
// order. encoding/json would sort map keys alphabetically instead.
func encode(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, rec := range records {
		if i > 0 {
			buf.WriteString(",")
		}
		key, err := json.Marshal(rec.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.MarshalIndent(rec, "  ", "  ")
		if err != nil {
			return nil, err
		}
		buf.WriteString("\n  ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(value)
	}
	if len(records) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmpFile, err := createTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()
	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Chmod(mode); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := renameFile(tmpName, path); err != nil {
		return err
	}
	committed = true
	syncDir(dir)
	return nil
}

// syncDir makes the rename durable. Some filesystems reject fsync on a
// directory; the rename itself has already happened, so errors are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

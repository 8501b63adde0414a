package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return Open(filepath.Join(t.TempDir(), "channel_index.json"), zap.NewNop())
}

func rec(key string, id int64) Record {
	return Record{
		Key:       key,
		MessageID: id,
		Title:     strings.ToUpper(key),
		Timestamp: time.Date(2024, 1, 1, 0, 0, int(id), 0, time.UTC),
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Load())
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Records())
}

func TestLoadCorruptKeepsMemory(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Upsert(rec("a", 1))
	require.NoError(t, err)

	for _, body := range []string{"{not json", "null", "[1,2,3]"} {
		require.NoError(t, os.WriteFile(s.Path(), []byte(body), 0o644))
		err = s.Load()
		var corrupt *CorruptIndexError
		require.ErrorAs(t, err, &corrupt, body)
		assert.Equal(t, s.Path(), corrupt.Path)
		assert.Equal(t, 1, s.Len(), "in-memory index must survive a corrupt load")
	}
}

func TestUpsertSequencing(t *testing.T) {
	s := newTestStore(t)

	a, err := s.Upsert(rec("a", 10))
	require.NoError(t, err)
	assert.Equal(t, 0, a.Sequence)

	b, err := s.Upsert(rec("b", 11))
	require.NoError(t, err)
	assert.Equal(t, 1, b.Sequence)

	again := rec("a", 12)
	again.Sequence = 99
	a2, err := s.Upsert(again)
	require.NoError(t, err)
	assert.Equal(t, 0, a2.Sequence, "replaced record keeps first-seen sequence")
	assert.Equal(t, int64(12), a2.MessageID)

	_, err = s.Upsert(Record{Title: "no key"})
	assert.Error(t, err)
}

func TestSaveAndReload(t *testing.T) {
	s := newTestStore(t)
	for i, key := range []string{"zeta", "alpha", "mid"} {
		r := rec(key, int64(100+i))
		if key == "alpha" {
			r.Category = StringPtr("novel")
			r.Filename = "Alpha.epub"
		}
		_, err := s.Upsert(r)
		require.NoError(t, err)
	}
	require.NoError(t, s.Save())

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	text := string(data)

	// Members follow sequence order, not alphabetical order.
	zi := strings.Index(text, `"zeta"`)
	ai := strings.Index(text, `"alpha"`)
	mi := strings.Index(text, `"mid"`)
	assert.True(t, zi < ai && ai < mi, text)
	assert.Contains(t, text, "\n  \"zeta\": {\n    \"message_id\": 100,")
	assert.Contains(t, text, `"category": null`)
	assert.Contains(t, text, `"filename": "Alpha.epub"`)
	assert.NotContains(t, text, `"stale"`)

	other := Open(s.Path(), zap.NewNop())
	require.NoError(t, other.Load())
	assert.Equal(t, s.Records(), other.Records())

	got, ok := other.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "novel", got.CategoryString())
	assert.Equal(t, "alpha", got.Key)
}

func TestSaveEmptyIndex(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save())
	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))
}

func TestSaveFailureLeavesPreviousFile(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Upsert(rec("a", 1))
	require.NoError(t, err)
	require.NoError(t, s.Save())
	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	renameFile = func(string, string) error { return errors.New("disk gone") }
	t.Cleanup(func() { renameFile = os.Rename })

	_, err = s.Upsert(rec("b", 2))
	require.NoError(t, err)
	err = s.Save()
	var ioErr *StoreIOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "write", ioErr.Op)

	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-", "temporary file must be cleaned up")
	}

	reloaded := Open(s.Path(), zap.NewNop())
	require.NoError(t, reloaded.Load())
	assert.Equal(t, 1, reloaded.Len())
}

func TestReplaceRejectsDuplicates(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Upsert(rec("keep", 1))
	require.NoError(t, err)

	err = s.Replace([]Record{rec("a", 1), rec("a", 2)})
	assert.Error(t, err)
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.Replace([]Record{rec("x", 5), rec("y", 6)}))
	assert.ElementsMatch(t, []string{"x", "y"}, keysOf(s.Keys()))
}

func TestUpdateAndDelete(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Upsert(rec("a", 1))
	require.NoError(t, err)

	ok := s.Update("a", func(r *Record) { r.Category = StringPtr("poetry"); r.Key = "renamed" })
	require.True(t, ok)
	got, _ := s.Get("a")
	assert.Equal(t, "poetry", got.CategoryString())
	assert.Equal(t, "a", got.Key)

	assert.False(t, s.Update("missing", func(*Record) {}))
	assert.True(t, s.Delete("a"))
	assert.False(t, s.Delete("a"))
	assert.Equal(t, int64(0), s.MaxMessageID())
}

func TestLockExcludesSecondHandle(t *testing.T) {
	first := newTestStore(t)
	second := Open(first.Path(), zap.NewNop())

	unlock, err := first.TryLock()
	require.NoError(t, err)

	_, err = second.TryLock()
	assert.ErrorIs(t, err, ErrLocked)

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	_, err = second.Lock(ctx)
	assert.ErrorIs(t, err, ErrLocked)

	unlock()

	unlock2, err := second.Lock(context.Background())
	require.NoError(t, err)
	unlock2()
}

func keysOf(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func TestImport(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Upsert(rec("old", 1))
	require.NoError(t, err)

	err = s.Import(strings.NewReader("garbage"))
	var corrupt *CorruptIndexError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, 1, s.Len())

	doc := `{"b": {"message_id": 5, "title": "B", "category": null, "timestamp": "2024-01-01T00:00:00Z", "sequence": 0}}`
	require.NoError(t, s.Import(strings.NewReader(doc)))
	assert.Equal(t, []string{"b"}, keysOf(s.Keys()))

	reloaded := Open(s.Path(), zap.NewNop())
	require.NoError(t, reloaded.Load())
	got, ok := reloaded.Get("b")
	require.True(t, ok)
	assert.Equal(t, int64(5), got.MessageID)
}

func TestPeekLeavesUnsavedChanges(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Upsert(rec("a", 1))
	require.NoError(t, err)
	require.NoError(t, s.Save())

	_, err = s.Upsert(rec("b", 2))
	require.NoError(t, err)

	view, err := s.Peek()
	require.NoError(t, err)
	assert.Equal(t, 1, view.Len())
	assert.Equal(t, []string{"a"}, keysOf(view.Keys()))
	_, ok := view.Get("b")
	assert.False(t, ok)

	assert.Equal(t, 2, s.Len(), "peek must not replace the in-memory index")
	require.NoError(t, s.Save())

	view, err = s.Peek()
	require.NoError(t, err)
	assert.Equal(t, []Record{s.Records()[0], s.Records()[1]}, view.Records())
}

func TestPeekErrors(t *testing.T) {
	s := newTestStore(t)

	view, err := s.Peek()
	require.NoError(t, err)
	assert.Equal(t, 0, view.Len())

	require.NoError(t, os.WriteFile(s.Path(), []byte("null"), 0o644))
	_, err = s.Peek()
	var corrupt *CorruptIndexError
	assert.ErrorAs(t, err, &corrupt)
}

func TestPeekDuringWrites(t *testing.T) {
	s := newTestStore(t)
	const total = 200

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < total; i++ {
			_, err := s.Upsert(rec(fmt.Sprintf("k%03d", i), int64(i+1)))
			assert.NoError(t, err)
			assert.NoError(t, s.Save())
		}
	}()

	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
			_, err := s.Peek()
			assert.NoError(t, err)
		}
	}

	reloaded := Open(s.Path(), zap.NewNop())
	require.NoError(t, reloaded.Load())
	assert.Equal(t, total, reloaded.Len())
}

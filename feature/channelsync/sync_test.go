package channelsync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"channel-publisher/core/index"
	"channel-publisher/core/retry"
	"channel-publisher/core/telegram"
	"channel-publisher/core/telegram/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const channel = "@books"

func instant(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func doc(id int64, file, text string) telegram.Message {
	return telegram.Message{
		ID:       id,
		Date:     time.Date(2024, 1, 1, 0, 0, int(id), 0, time.UTC),
		FileName: file,
		Text:     text,
	}
}

func setup(t *testing.T) (*index.Store, *mocks.HistoryReader, *Synchronizer) {
	t.Helper()
	store := index.Open(filepath.Join(t.TempDir(), "channel_index.json"), zap.NewNop())
	reader := new(mocks.HistoryReader)
	s := New(reader, store, Options{
		Channel: channel,
		Retry:   retry.Policy{MaxAttempts: 3},
	}, zap.NewNop()).WithSleeper(instant)
	return store, reader, s
}

func reload(t *testing.T, store *index.Store) *index.Store {
	t.Helper()
	fresh := index.Open(store.Path(), zap.NewNop())
	require.NoError(t, fresh.Load())
	return fresh
}

func TestIncrementalSyncBuildsEmptyIndex(t *testing.T) {
	store, reader, s := setup(t)

	reader.On("History", mock.Anything, channel, int64(0)).Return([]telegram.Message{
		doc(4, "Dune.epub", "标题：Dune\n类型：#sci-fi"),
		doc(3, "", "just chatting"),
	}, nil).Once()
	reader.On("History", mock.Anything, channel, int64(3)).Return([]telegram.Message{
		doc(2, "", "标题：Three Body\n类型：#sci_fi"),
		doc(1, "Solaris.epub", ""),
	}, nil).Once()
	reader.On("History", mock.Anything, channel, int64(1)).Return([]telegram.Message{}, nil).Once()

	res, err := s.Sync(context.Background(), Incremental)
	require.NoError(t, err)
	assert.Equal(t, &Result{Mode: Incremental, Fetched: 4, Added: 3, Skipped: 1}, res)

	saved := reload(t, store)
	recs := saved.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"solaris", "three body", "dune"}, []string{recs[0].Key, recs[1].Key, recs[2].Key})
	assert.Equal(t, []int{0, 1, 2}, []int{recs[0].Sequence, recs[1].Sequence, recs[2].Sequence})

	dune, _ := saved.Get("dune")
	assert.Equal(t, "sci_fi", dune.CategoryString())
	assert.Equal(t, "Dune.epub", dune.Filename)
	solaris, _ := saved.Get("solaris")
	assert.Nil(t, solaris.Category)
	assert.Equal(t, "Solaris", solaris.Title)

	reader.AssertExpectations(t)
}

func TestIncrementalSyncStopsAtNewestKnown(t *testing.T) {
	store, reader, s := setup(t)
	_, err := store.Upsert(index.Record{Key: "old", MessageID: 5, Title: "Old"})
	require.NoError(t, err)
	require.NoError(t, store.Save())

	reader.On("History", mock.Anything, channel, int64(0)).Return([]telegram.Message{
		doc(7, "New Two.epub", ""),
		doc(6, "New One.epub", ""),
		doc(5, "Old.epub", ""),
		doc(4, "Older.epub", ""),
	}, nil).Once()

	res, err := s.Sync(context.Background(), Incremental)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, 2, res.Fetched)

	recs := reload(t, store).Records()
	require.Len(t, recs, 3)
	assert.Equal(t, "old", recs[0].Key)
	assert.Equal(t, "new one", recs[1].Key)
	assert.Equal(t, 1, recs[1].Sequence)
	assert.Equal(t, "new two", recs[2].Key)
	reader.AssertNumberOfCalls(t, "History", 1)
}

func TestFullSyncFlagsStaleAndRenumbers(t *testing.T) {
	store, reader, s := setup(t)
	for _, r := range []index.Record{
		{Key: "gone", MessageID: 1, Title: "Gone"},
		{Key: "kept", MessageID: 2, Title: "Kept"},
		{Key: "moved", MessageID: 3, Title: "Moved"},
	} {
		_, err := store.Upsert(r)
		require.NoError(t, err)
	}
	require.NoError(t, store.Save())

	reader.On("History", mock.Anything, channel, int64(0)).Return([]telegram.Message{
		doc(9, "Kept.epub", ""),
		doc(8, "Fresh.epub", ""),
		doc(3, "Renamed.epub", ""),
		doc(2, "Kept.epub", ""),
	}, nil).Once()
	reader.On("History", mock.Anything, channel, int64(2)).Return(nil, nil).Once()

	res, err := s.Sync(context.Background(), Full)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Added, "fresh and renamed")
	assert.Equal(t, 3, res.Updated, "kept refreshed, gone and moved flagged")
	assert.Equal(t, 2, res.Stale)
	assert.Equal(t, 1, res.Skipped, "second copy of kept")

	saved := reload(t, store)
	kept, _ := saved.Get("kept")
	assert.Equal(t, int64(2), kept.MessageID, "earliest message wins")
	assert.False(t, kept.Stale)

	gone, _ := saved.Get("gone")
	assert.True(t, gone.Stale)
	moved, _ := saved.Get("moved")
	assert.True(t, moved.Stale, "message 3 now resolves to another key")

	var keys []string
	for i, r := range saved.Records() {
		assert.Equal(t, i, r.Sequence)
		keys = append(keys, r.Key)
	}
	assert.Equal(t, []string{"gone", "kept", "moved", "renamed", "fresh"}, keys)

	// A second full sync with the same history is a no-op for counts.
	reader.On("History", mock.Anything, channel, int64(0)).Return([]telegram.Message{
		doc(9, "Kept.epub", ""),
		doc(8, "Fresh.epub", ""),
		doc(3, "Renamed.epub", ""),
		doc(2, "Kept.epub", ""),
	}, nil).Once()
	reader.On("History", mock.Anything, channel, int64(2)).Return(nil, nil).Once()
	res, err = s.Sync(context.Background(), Full)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 2, res.Stale)
}

func TestSyncFailureKeepsIndex(t *testing.T) {
	store, reader, s := setup(t)
	_, err := store.Upsert(index.Record{Key: "a", MessageID: 1, Title: "A"})
	require.NoError(t, err)
	require.NoError(t, store.Save())
	before, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	boom := &telegram.APIError{Method: "preview", StatusCode: 502}
	reader.On("History", mock.Anything, channel, int64(0)).Return(nil, boom).Times(3)

	_, err = s.Sync(context.Background(), Full)
	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.ErrorIs(t, err, boom)

	after, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
	reader.AssertExpectations(t)
}

func TestSyncPermanentFailureDoesNotRetry(t *testing.T) {
	_, reader, s := setup(t)
	reader.On("History", mock.Anything, channel, int64(0)).Return(nil, errors.New("needs a public channel")).Once()

	_, err := s.Sync(context.Background(), Incremental)
	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
	reader.AssertNumberOfCalls(t, "History", 1)
}

func TestSyncRefusesCorruptIndex(t *testing.T) {
	store, reader, s := setup(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{broken"), 0o644))

	_, err := s.Sync(context.Background(), Full)
	var corrupt *index.CorruptIndexError
	require.ErrorAs(t, err, &corrupt)
	reader.AssertNotCalled(t, "History", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncWhileLocked(t *testing.T) {
	store, reader, _ := setup(t)
	s := New(reader, store, Options{Channel: channel, LockTimeout: 50 * time.Millisecond}, zap.NewNop())

	other := index.Open(store.Path(), zap.NewNop())
	unlock, err := other.TryLock()
	require.NoError(t, err)
	defer unlock()

	_, err = s.Sync(context.Background(), Incremental)
	assert.ErrorIs(t, err, index.ErrLocked)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, Incremental, m)

	m, err = ParseMode("full")
	require.NoError(t, err)
	assert.Equal(t, Full, m)

	_, err = ParseMode("partial")
	assert.Error(t, err)
}

func TestTruncatedFullSyncFlagsNothingStale(t *testing.T) {
	store, reader, _ := setup(t)
	for _, r := range []index.Record{
		{Key: "a", MessageID: 1, Title: "A"},
		{Key: "b", MessageID: 2, Title: "B", Stale: true},
	} {
		_, err := store.Upsert(r)
		require.NoError(t, err)
	}
	require.NoError(t, store.Save())

	s := New(reader, store, Options{
		Channel:  channel,
		Retry:    retry.Policy{MaxAttempts: 1},
		MaxPages: 1,
	}, zap.NewNop()).WithSleeper(instant)

	reader.On("History", mock.Anything, channel, int64(0)).Return([]telegram.Message{
		doc(3, "C.epub", ""),
	}, nil).Once()

	res, err := s.Sync(context.Background(), Full)
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Stale, "only the record already flagged")

	saved := reload(t, store)
	a, ok := saved.Get("a")
	require.True(t, ok)
	assert.False(t, a.Stale, "message 1 was never read")
	b, _ := saved.Get("b")
	assert.True(t, b.Stale)
	_, ok = saved.Get("c")
	assert.True(t, ok)
	reader.AssertNumberOfCalls(t, "History", 1)
}

package reconcile

import (
	"iter"
	"slices"
	"testing"

	"channel-publisher/core/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func books(keys ...string) iter.Seq[catalog.BookItem] {
	items := make([]catalog.BookItem, len(keys))
	for i, k := range keys {
		items[i] = catalog.BookItem{Key: k, FileName: k + ".epub", Title: k, Position: i}
	}
	return slices.Values(items)
}

func set(keys ...string) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

func TestDetectGaps(t *testing.T) {
	tests := []struct {
		name      string
		local     []string
		published KeySet
		offset    Offset
		want      []string
		wantErr   error
	}{
		{
			name:      "index holds a, only b and c pending",
			local:     []string{"a", "b", "c"},
			published: set("a"),
			want:      []string{"b", "c"},
		},
		{
			name:      "everything published",
			local:     []string{"a", "b"},
			published: set("a", "b", "z"),
			want:      nil,
		},
		{
			name:      "empty index uploads all in scan order",
			local:     []string{"c", "a", "b"},
			published: set(),
			want:      []string{"c", "a", "b"},
		},
		{
			name:      "index offset is inclusive",
			local:     []string{"a", "b", "c", "d"},
			published: set("c"),
			offset:    Offset{Index: 1},
			want:      []string{"b", "d"},
		},
		{
			name:      "key offset on a published item starts after it",
			local:     []string{"a", "b", "c"},
			published: set("b"),
			offset:    Offset{Key: "b"},
			want:      []string{"c"},
		},
		{
			name:      "unknown key",
			local:     []string{"a"},
			published: set(),
			offset:    Offset{Key: "nope"},
			wantErr:   ErrOffsetNotFound,
		},
		{
			name:      "index past the end",
			local:     []string{"a", "b"},
			published: set(),
			offset:    Offset{Index: 2},
			wantErr:   ErrOffsetNotFound,
		},
		{
			name:      "duplicate local key queued once",
			local:     []string{"a", "a", "b"},
			published: set(),
			want:      []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, err := DetectGaps(books(tt.local...), tt.published, tt.offset)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, tasks)
				return
			}
			assert.Equal(t, tt.want, Keys(tasks))
		})
	}
}

func TestDetectGapsMatchesSetDifference(t *testing.T) {
	local := []string{"e", "d", "c", "b", "a"}
	published := set("d", "a", "q")

	tasks, err := DetectGaps(books(local...), published, NoOffset)
	require.NoError(t, err)

	var want []string
	for _, k := range local {
		if _, ok := published[k]; !ok {
			want = append(want, k)
		}
	}
	assert.Equal(t, want, Keys(tasks))
	for _, task := range tasks {
		assert.Equal(t, task.Key, task.Item.Key)
	}
}

func TestParseOffset(t *testing.T) {
	tests := []struct {
		in   string
		want Offset
	}{
		{"", NoOffset},
		{"  ", NoOffset},
		{"0", Offset{Index: 0}},
		{"42", Offset{Index: 42}},
		{"Three Body", Offset{Key: "three body"}},
		{"Three_Body.epub", Offset{Key: "three body"}},
		{"-3", Offset{Key: "3"}},
		{"!!!", Offset{Key: "!!!"}},
		{"1984", Offset{Index: 1984}},
		{"key:1984", Offset{Key: "1984"}},
		{"key: 1984.epub", Offset{Key: "1984"}},
		{"key:Three Body", Offset{Key: "three body"}},
		{"key:", Offset{Key: "key:"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOffset(tt.in))
		})
	}
}

func TestDetectGapsNumericKey(t *testing.T) {
	local := books("brave new world", "1984", "we")

	tasks, err := DetectGaps(local, set(), ParseOffset("key:1984"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1984", "we"}, Keys(tasks))

	_, err = DetectGaps(local, set(), ParseOffset("1984"))
	assert.ErrorIs(t, err, ErrOffsetNotFound)
}

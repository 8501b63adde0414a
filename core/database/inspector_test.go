package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTableColumns(t *testing.T) {
	db, err := Connect(Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.Exec("CREATE TABLE published_titles (ID INTEGER PRIMARY KEY, Title_Key TEXT, message_id BIGINT)").Error)

	columns, err := GetTableColumns(db, "published_titles")
	require.NoError(t, err)

	types := make(map[string]string, len(columns))
	for _, col := range columns {
		types[col.Field] = col.Type
	}
	assert.Equal(t, map[string]string{
		"id":         "integer",
		"title_key":  "text",
		"message_id": "bigint",
	}, types, "names and types are lowercased")

	// SQLite reports no columns for an unknown table.
	columns, err = GetTableColumns(db, "channel_index")
	require.NoError(t, err)
	assert.Empty(t, columns)
}

func TestMissingColumns(t *testing.T) {
	db, err := Connect(Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.Exec("CREATE TABLE published_titles (id INTEGER PRIMARY KEY, title TEXT)").Error)

	missing, err := MissingColumns(db, "published_titles", []string{"id", "Title", "message_id"})
	require.NoError(t, err)
	assert.Equal(t, []string{"message_id"}, missing)

	missing, err = MissingColumns(db, "nope", []string{"id"})
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, missing)
}

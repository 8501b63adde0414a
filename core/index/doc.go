// Package index persists the channel index: the ordered mapping from
// identity key to the channel message that published it.
//
// The index is the single source of truth for "already published". It is
// stored as one JSON object keyed by identity key, members written in
// sequence order:
//
//	{
//	  "a": {"message_id": 101, "title": "A", "category": null, "timestamp": "...", "sequence": 0},
//	  "b": {"message_id": 102, "title": "B", "category": "novel", "timestamp": "...", "sequence": 1}
//	}
//
// # Durability
//
// Save writes to a temporary file in the same directory, fsyncs it and
// renames it over the index, so the file on disk is always a complete,
// valid document. Load refuses to replace the in-memory index with an empty
// one when the document is malformed (CorruptIndexError).
//
// # Locking
//
// Writers hold an advisory lock on "<index>.lock" for the whole operation
// (Lock / TryLock). The lock is a flock(2) on unix systems, so it excludes
// both other processes and other Store handles in the same process.
package index

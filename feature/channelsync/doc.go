// Package channelsync rebuilds the channel index from the channel itself.
//
// The channel is the ground truth for "already published". A Synchronizer
// pages through the channel history, newest first, derives an identity key
// for every message that carries a book, and writes the result into the
// index:
//
//   - Incremental mode stops at the newest message the index already knows
//     and appends what is new.
//   - Full mode walks the entire history, refreshes every observed record,
//     flags records the channel no longer confirms as stale, and renumbers
//     the index in channel order.
//
// A message's key is derived from its document file name when it has one,
// otherwise from the title line of its caption, using the same
// normalization as the local catalog. When the same key was published more
// than once, the earliest message wins.
//
// The index is saved once, atomically, at the end. A failed fetch leaves the
// previous index file untouched.
package channelsync

// Package storage keeps off-site copies of the channel index in S3-compatible
// object storage.
//
// It wraps the MinIO Go client behind the Client interface so the
// Snapshotter can be tested against mocks (core/storage/mocks). Both AWS S3
// and self-hosted MinIO work.
//
// # Snapshots
//
//   - Backup uploads the index file as "<prefix><name>-<UTC timestamp>.json"
//     and removes all but the newest Retention snapshots.
//   - List returns snapshot names oldest first.
//   - Open streams a snapshot back, the newest by default.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	snap := storage.NewSnapshotter(client, cfg.Storage, logger)
//	name, err := snap.Backup(ctx, "data/channel_index.json")
package storage

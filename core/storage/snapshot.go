package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

const snapshotTimeFormat = "20060102T150405.000Z"

// Snapshotter copies the channel index file to object storage and keeps the
// newest Retention copies.
type Snapshotter struct {
	client    Client
	bucket    string
	region    string
	prefix    string
	retention int
	logger    *zap.Logger
	now       func() time.Time
}

// NewSnapshotter creates a snapshotter for the configured bucket.
func NewSnapshotter(client Client, cfg Config, logger *zap.Logger) *Snapshotter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Snapshotter{
		client:    client,
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		prefix:    cfg.Prefix,
		retention: cfg.Retention,
		logger:    logger,
		now:       time.Now,
	}
}

// Backup uploads the file at filePath and returns the object name.
// Snapshot names sort chronologically.
func (s *Snapshotter) Backup(ctx context.Context, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for snapshot: %w", filePath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", filePath, err)
	}

	if err := EnsureBucket(ctx, s.client, s.bucket, s.region); err != nil {
		return "", err
	}

	base := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	name := s.prefix + base + "-" + s.now().UTC().Format(snapshotTimeFormat) + ".json"

	if _, err := s.client.PutObject(ctx, s.bucket, name, f, info.Size(), minio.PutObjectOptions{
		ContentType: "application/json",
	}); err != nil {
		return "", fmt.Errorf("failed to upload snapshot %s: %w", name, err)
	}
	s.logger.Info("Index snapshot stored", zap.String("bucket", s.bucket), zap.String("object", name), zap.Int64("bytes", info.Size()))

	if err := s.prune(ctx); err != nil {
		s.logger.Warn("Failed to prune old snapshots", zap.Error(err))
	}
	return name, nil
}

// List returns the stored snapshot names, oldest first.
func (s *Snapshotter) List(ctx context.Context) ([]string, error) {
	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: s.prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list snapshots: %w", obj.Err)
		}
		if path.Ext(obj.Key) != ".json" {
			continue
		}
		names = append(names, obj.Key)
	}
	sort.Strings(names)
	return names, nil
}

// Open returns a reader for the named snapshot, or the newest one when name
// is empty, along with the resolved name.
func (s *Snapshotter) Open(ctx context.Context, name string) (io.ReadCloser, string, error) {
	if name == "" {
		names, err := s.List(ctx)
		if err != nil {
			return nil, "", err
		}
		if len(names) == 0 {
			return nil, "", fmt.Errorf("no snapshots under %s/%s", s.bucket, s.prefix)
		}
		name = names[len(names)-1]
	}
	rc, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("failed to download snapshot %s: %w", name, err)
	}
	return rc, name, nil
}

func (s *Snapshotter) prune(ctx context.Context) error {
	if s.retention <= 0 {
		return nil
	}
	names, err := s.List(ctx)
	if err != nil {
		return err
	}
	if len(names) <= s.retention {
		return nil
	}
	old := names[:len(names)-s.retention]

	objectsCh := make(chan minio.ObjectInfo, len(old))
	for _, name := range old {
		objectsCh <- minio.ObjectInfo{Key: name}
	}
	close(objectsCh)

	var failed int
	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		failed++
		s.logger.Warn("Failed to remove snapshot", zap.String("object", rerr.ObjectName), zap.Error(rerr.Err))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d old snapshots could not be removed", failed, len(old))
	}
	s.logger.Debug("Old snapshots removed", zap.Int("count", len(old)))
	return nil
}

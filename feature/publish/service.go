package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"channel-publisher/core/caption"
	"channel-publisher/core/catalog"
	"channel-publisher/core/index"
	"channel-publisher/core/reconcile"
	"channel-publisher/feature/channelsync"
	"channel-publisher/feature/upload"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Syncer refreshes the channel index from the channel.
type Syncer interface {
	Sync(ctx context.Context, mode channelsync.Mode) (*channelsync.Result, error)
}

// Uploader publishes a batch of tasks.
type Uploader interface {
	RunBatch(ctx context.Context, tasks []reconcile.UploadTask, opts upload.RunOptions) (*upload.BatchResult, error)
}

// Snapshots stores copies of the index file.
type Snapshots interface {
	Backup(ctx context.Context, filePath string) (string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, string, error)
}

// Deps are the collaborators of a Service. Notifier and Snapshots are optional.
type Deps struct {
	Library   catalog.Config
	Store     *index.Store
	Syncer    Syncer
	Uploader  Uploader
	Notifier  *Notifier
	Snapshots Snapshots
	// LockTimeout bounds the wait for the index lock in maintenance commands.
	LockTimeout time.Duration
}

// UploadOptions narrow an upload command.
type UploadOptions struct {
	// Category overrides the configured library category; "" keeps it.
	Category string
	// Limit caps the number of books attempted; 0 means all.
	Limit int
	// Progress receives every event after it has been reported.
	Progress upload.ProgressFunc
}

// TriggerResult is the outcome of a triggered sync-and-upload.
type TriggerResult struct {
	// Synced counts channel messages read by the sync.
	Synced   int      `json:"synced"`
	Uploaded int      `json:"uploaded"`
	Failed   []string `json:"failed"`
}

// Service runs publishing commands.
type Service struct {
	library   catalog.Config
	store     *index.Store
	syncer    Syncer
	uploader  Uploader
	notifier  *Notifier
	snapshots Snapshots
	lockWait  time.Duration
	logger    *zap.Logger

	trigger singleflight.Group

	mu     sync.Mutex
	runs   map[uint64]context.CancelFunc
	nextID uint64
}

// NewService creates a Service.
func NewService(deps Deps, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = NewNotifier(nil, "", logger)
	}
	lockWait := deps.LockTimeout
	if lockWait <= 0 {
		lockWait = 30 * time.Second
	}
	return &Service{
		library:   deps.Library,
		store:     deps.Store,
		syncer:    deps.Syncer,
		uploader:  deps.Uploader,
		notifier:  notifier,
		snapshots: deps.Snapshots,
		lockWait:  lockWait,
		logger:    logger,
		runs:      make(map[uint64]context.CancelFunc),
	}
}

// UploadAll uploads every book the channel does not have yet.
func (s *Service) UploadAll(ctx context.Context, opts UploadOptions) (*upload.BatchResult, error) {
	return s.UploadFrom(ctx, reconcile.NoOffset, opts)
}

// UploadFrom uploads the missing books at or after offset in scan order.
func (s *Service) UploadFrom(ctx context.Context, offset reconcile.Offset, opts UploadOptions) (*upload.BatchResult, error) {
	tasks, err := s.Gaps(ctx, offset, opts.Category)
	if err != nil {
		return nil, err
	}
	missing := len(tasks)
	if opts.Limit > 0 && len(tasks) > opts.Limit {
		tasks = tasks[:opts.Limit]
	}
	s.logger.Info("Starting upload",
		zap.Stringer("offset", offset),
		zap.Int("missing", missing),
		zap.Int("batch", len(tasks)),
	)

	ctx, done := s.track(ctx)
	defer done()

	res, err := s.uploader.RunBatch(ctx, tasks, upload.RunOptions{
		Progress: s.notifier.Progress(ctx, opts.Progress),
	})
	if res != nil {
		s.notifier.Summary(ctx, res)
		if len(res.Succeeded) > 0 {
			s.backup(ctx)
		}
	}
	if err != nil {
		s.notifier.Text(ctx, fmt.Sprintf("Upload stopped: %v", err))
		return res, err
	}
	return res, nil
}

// ResendMissing catches up with the channel, then uploads what it lacks.
func (s *Service) ResendMissing(ctx context.Context, opts UploadOptions) (*upload.BatchResult, error) {
	if _, err := s.Sync(ctx, channelsync.Incremental); err != nil {
		return nil, err
	}
	return s.UploadAll(ctx, opts)
}

// Sync refreshes the channel index.
func (s *Service) Sync(ctx context.Context, mode channelsync.Mode) (*channelsync.Result, error) {
	res, err := s.syncer.Sync(ctx, mode)
	if err != nil {
		s.logger.Error("Channel sync failed", zap.String("mode", string(mode)), zap.Error(err))
		return nil, err
	}
	s.logger.Info("Channel sync completed",
		zap.String("mode", string(res.Mode)),
		zap.Int("fetched", res.Fetched),
		zap.Int("added", res.Added),
		zap.Int("updated", res.Updated),
		zap.Int("stale", res.Stale),
	)
	return res, nil
}

// Trigger runs a full sync followed by an upload from since ("" for the
// beginning). Concurrent calls with the same since share one run.
func (s *Service) Trigger(ctx context.Context, since string) (*TriggerResult, error) {
	v, err, shared := s.trigger.Do("trigger:"+since, func() (any, error) {
		return s.runTrigger(context.WithoutCancel(ctx), since)
	})
	if shared {
		s.logger.Debug("Joined a running trigger", zap.String("since", since))
	}
	if err != nil {
		return nil, err
	}
	return v.(*TriggerResult), nil
}

func (s *Service) runTrigger(ctx context.Context, since string) (*TriggerResult, error) {
	synced, err := s.Sync(ctx, channelsync.Full)
	if err != nil {
		return nil, err
	}
	offset := reconcile.NoOffset
	if since != "" {
		offset = reconcile.ParseOffset(since)
	}
	res, err := s.UploadFrom(ctx, offset, UploadOptions{})
	if err != nil {
		return nil, err
	}
	return &TriggerResult{
		Synced:   synced.Fetched,
		Uploaded: len(res.Succeeded),
		Failed:   res.FailedKeys(),
	}, nil
}

// Stop cancels the running upload batches. Each stops after the book in
// flight. It reports whether a batch was running.
func (s *Service) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	stopped := len(s.runs) > 0
	for id, cancel := range s.runs {
		cancel()
		delete(s.runs, id)
	}
	return stopped
}

// Running reports whether an upload batch is in progress.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs) > 0
}

func (s *Service) track(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.runs[id] = cancel
	s.mu.Unlock()
	return ctx, func() {
		s.mu.Lock()
		delete(s.runs, id)
		s.mu.Unlock()
		cancel()
	}
}

// Report compares the library with the channel index.
func (s *Service) Report(ctx context.Context) (*reconcile.ReconcilePlan, error) {
	listing, err := s.scan(s.library.Category)
	if err != nil {
		return nil, err
	}
	view, err := s.store.Peek()
	if err != nil {
		return nil, err
	}
	return reconcile.Reconcile(listing.Items(), view.Records()), nil
}

// Gaps lists the books at or after offset that are not in the channel index.
func (s *Service) Gaps(ctx context.Context, offset reconcile.Offset, category string) ([]reconcile.UploadTask, error) {
	if category == "" {
		category = s.library.Category
	}
	listing, err := s.scan(category)
	if err != nil {
		return nil, err
	}
	view, err := s.store.Peek()
	if err != nil {
		return nil, err
	}
	return reconcile.DetectGaps(listing.Items(), view.Keys(), offset)
}

// FixCategories normalizes the category of every record and returns the
// keys that changed.
func (s *Service) FixCategories(ctx context.Context) ([]string, error) {
	var changed []string
	err := s.maintain(ctx, func() bool {
		for _, rec := range s.store.Records() {
			if rec.Category == nil {
				continue
			}
			fixed := caption.NormalizeCategory(*rec.Category)
			if fixed == *rec.Category {
				continue
			}
			s.store.Update(rec.Key, func(r *index.Record) {
				r.Category = index.StringPtr(fixed)
			})
			changed = append(changed, rec.Key)
		}
		return len(changed) > 0
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Categories normalized", zap.Int("changed", len(changed)))
	return changed, nil
}

// Prune deletes the records flagged stale and returns their keys.
func (s *Service) Prune(ctx context.Context) ([]string, error) {
	var removed []string
	err := s.maintain(ctx, func() bool {
		for _, rec := range s.store.Records() {
			if rec.Stale && s.store.Delete(rec.Key) {
				removed = append(removed, rec.Key)
			}
		}
		return len(removed) > 0
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Stale records pruned", zap.Int("removed", len(removed)))
	return removed, nil
}

// Restore replaces the index with a stored snapshot; "" picks the latest.
// It returns the snapshot name.
func (s *Service) Restore(ctx context.Context, name string) (string, error) {
	if s.snapshots == nil {
		return "", ErrBackupDisabled
	}
	rc, resolved, err := s.snapshots.Open(ctx, name)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	unlock, err := s.lock(ctx)
	if err != nil {
		return "", err
	}
	defer unlock()

	if err := s.store.Import(rc); err != nil {
		return "", err
	}
	s.logger.Info("Index restored from snapshot", zap.String("snapshot", resolved), zap.Int("records", s.store.Len()))
	return resolved, nil
}

// maintain runs fn on the loaded index under the lock and saves when fn
// reports a change.
func (s *Service) maintain(ctx context.Context, fn func() bool) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.store.Load(); err != nil {
		return err
	}
	if !fn() {
		return nil
	}
	return s.store.Save()
}

func (s *Service) lock(ctx context.Context) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()
	return s.store.Lock(lockCtx)
}

func (s *Service) scan(category string) (*catalog.Listing, error) {
	return catalog.Scan(s.library.Root, catalog.ScanOptions{Category: category}, s.logger)
}

func (s *Service) backup(ctx context.Context) {
	if s.snapshots == nil {
		return
	}
	name, err := s.snapshots.Backup(context.WithoutCancel(ctx), s.store.Path())
	if err != nil {
		s.logger.Warn("Index backup failed", zap.Error(err))
		return
	}
	s.logger.Info("Index backed up", zap.String("object", name))
}

// RunPeriodicSync runs an incremental sync every interval until ctx ends.
// A tick is skipped when another operation holds the index.
func (s *Service) RunPeriodicSync(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Periodic sync started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Periodic sync stopped")
			return
		case <-ticker.C:
			if _, err := s.syncer.Sync(ctx, channelsync.Incremental); err != nil {
				if errors.Is(err, index.ErrLocked) {
					s.logger.Info("Periodic sync skipped, index busy")
					continue
				}
				if ctx.Err() != nil {
					return
				}
				s.logger.Error("Periodic sync failed", zap.Error(err))
			}
		}
	}
}

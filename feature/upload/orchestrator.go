package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"channel-publisher/core/caption"
	"channel-publisher/core/index"
	"channel-publisher/core/ledger"
	"channel-publisher/core/logger"
	"channel-publisher/core/reconcile"
	"channel-publisher/core/retry"
	"channel-publisher/core/telegram"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Recorder stores an audit entry for every published title.
type Recorder interface {
	Record(ctx context.Context, e ledger.Entry) error
}

// Orchestrator uploads tasks one at a time and writes every success back to
// the channel index before moving on.
type Orchestrator struct {
	publisher telegram.Publisher
	store     *index.Store
	opts      Options
	logger    *zap.Logger
	ledger    Recorder
	sleep     retry.Sleeper
	now       func() time.Time
}

// New creates an Orchestrator.
func New(publisher telegram.Publisher, store *index.Store, opts Options, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 60 * time.Second
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 30 * time.Second
	}
	return &Orchestrator{
		publisher: publisher,
		store:     store,
		opts:      opts,
		logger:    logger,
		sleep:     retry.Wait,
		now:       time.Now,
	}
}

// WithLedger records every published title in r. Ledger failures are logged
// and never fail a task.
func (o *Orchestrator) WithLedger(r Recorder) *Orchestrator {
	o.ledger = r
	return o
}

// WithSleeper replaces the function used for pacing and backoff waits.
func (o *Orchestrator) WithSleeper(sleep retry.Sleeper) *Orchestrator {
	o.sleep = sleep
	return o
}

// batch is the state of one RunBatch call.
type batch struct {
	o        *Orchestrator
	log      *zap.Logger
	tasks    []reconcile.UploadTask
	result   *BatchResult
	progress ProgressFunc
	done     int

	lastSend time.Time
	// extraWait is owed before the next send: a flood cool-down or the
	// delay after a retried task.
	extraWait time.Duration
}

// RunBatch uploads tasks in order. Per-task failures are reported in the
// result; the returned error is set only for failures that stop the batch:
// lock, load or save errors, and ErrNoConnectivity. The result is non-nil
// whenever the batch got past the preflight.
func (o *Orchestrator) RunBatch(ctx context.Context, tasks []reconcile.UploadTask, ro RunOptions) (*BatchResult, error) {
	result := &BatchResult{
		RunID:     uuid.NewString(),
		Succeeded: []string{},
		Failed:    []Failure{},
		Skipped:   []string{},
		Remaining: []string{},
	}
	log := logger.WithRun(o.logger, result.RunID)
	if len(tasks) == 0 {
		log.Info("Nothing to upload")
		return result, nil
	}

	lockCtx, cancel := context.WithTimeout(ctx, o.opts.LockTimeout)
	unlock, err := o.store.Lock(lockCtx)
	cancel()
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := o.store.Load(); err != nil {
		return nil, err
	}

	b := &batch{o: o, log: log, tasks: tasks, result: result, progress: ro.Progress}

	if err := o.preflight(ctx, log); err != nil {
		result.Remaining = reconcile.Keys(tasks)
		if ctx.Err() != nil {
			result.Cancelled = true
			return result, nil
		}
		return result, fmt.Errorf("%w: %v", ErrNoConnectivity, err)
	}

	log.Info("Upload batch started", zap.Int("tasks", len(tasks)), zap.String("channel", o.opts.Channel))

	for i, task := range tasks {
		if ctx.Err() != nil {
			b.stop(i)
			break
		}
		stop, err := b.run(ctx, task)
		if err != nil {
			result.Remaining = reconcile.Keys(tasks[i+1:])
			log.Error("Upload batch aborted", zap.String("key", task.Key), zap.Error(err))
			return result, err
		}
		if stop {
			b.stop(i)
			break
		}
	}

	log.Info("Upload batch finished",
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("remaining", len(result.Remaining)),
		zap.Bool("cancelled", result.Cancelled),
	)
	return result, nil
}

func (o *Orchestrator) preflight(ctx context.Context, log *zap.Logger) error {
	r := retry.Retrier{
		Policy: o.opts.Retry,
		Sleep:  o.sleep,
		OnRetry: func(ev retry.Event) {
			log.Warn("Channel API unreachable, retrying",
				zap.Int("attempt", ev.Attempt),
				zap.Duration("delay", ev.Delay),
				zap.Error(ev.Err),
			)
		},
	}
	return r.Do(ctx, func(ctx context.Context, _ int) error {
		pingCtx, cancel := context.WithTimeout(ctx, o.opts.SendTimeout)
		defer cancel()
		return o.publisher.Ping(pingCtx)
	})
}

// stop marks the batch cancelled with tasks[from:] left unattempted.
func (b *batch) stop(from int) {
	b.result.Cancelled = true
	b.result.Remaining = reconcile.Keys(b.tasks[from:])
	b.log.Warn("Upload batch cancelled", zap.Int("remaining", len(b.result.Remaining)))
}

func (b *batch) emit(ev Event) {
	if ev.Kind == EventSucceeded || ev.Kind == EventFailed || ev.Kind == EventSkipped {
		b.done++
	}
	ev.Done = b.done
	ev.Total = len(b.tasks)
	if b.progress != nil {
		b.progress(ev)
	}
}

// run processes one task. stop reports that the batch was cancelled before
// the task completed; err is a failure that must end the batch.
func (b *batch) run(ctx context.Context, task reconcile.UploadTask) (stop bool, err error) {
	o := b.o
	item := task.Item
	log := b.log.With(zap.String("key", task.Key))

	if _, ok := o.store.Get(task.Key); ok {
		log.Info("Already published, skipping")
		b.result.Skipped = append(b.result.Skipped, task.Key)
		b.emit(Event{Kind: EventSkipped, Key: task.Key, Title: item.Title})
		return false, nil
	}

	if err := checkFile(item.Path); err != nil {
		b.fail(log, task, &PermanentSendError{Key: task.Key, Err: err})
		return false, nil
	}

	if err := b.pace(ctx); err != nil {
		return true, nil
	}

	doc := telegram.Document{
		Path:     item.Path,
		FileName: item.FileName,
		Caption: caption.Format(caption.Fields{
			Title:    item.Title,
			Category: item.Category,
			Intro:    item.Intro,
		}),
	}

	var (
		sent    *telegram.SentMessage
		retried bool
		flooded bool
	)
	r := retry.Retrier{
		Policy: o.opts.Retry,
		Sleep:  o.sleep,
		OnRetry: func(ev retry.Event) {
			retried = true
			kind := EventRetrying
			if ev.ServerWait {
				flooded = true
				kind = EventFloodWait
			}
			log.Warn("Send failed, retrying",
				zap.Int("attempt", ev.Attempt),
				zap.Duration("delay", ev.Delay),
				zap.Bool("server_wait", ev.ServerWait),
				zap.Error(ev.Err),
			)
			b.emit(Event{Kind: kind, Key: task.Key, Title: item.Title, Attempt: ev.Attempt, Delay: ev.Delay, Err: ev.Err})
		},
	}
	sendErr := r.Do(ctx, func(ctx context.Context, _ int) error {
		msg, err := b.send(ctx, task.Key, doc)
		b.lastSend = o.now()
		if err != nil {
			return err
		}
		sent = msg
		return nil
	})

	b.extraWait = 0
	if retried {
		b.extraWait = o.opts.AfterRetryDelay
	}
	if flooded && o.opts.FloodCooldown > b.extraWait {
		b.extraWait = o.opts.FloodCooldown
	}

	if sendErr != nil {
		// Cancelled while retrying: the task was never completed.
		if ctx.Err() != nil && (errors.Is(sendErr, ctx.Err()) || retry.IsTransient(sendErr)) {
			return true, nil
		}
		b.fail(log, task, sendErr)
		return false, nil
	}

	return false, b.commit(ctx, log, task, sent)
}

// send performs one attempt. The request runs detached from ctx so that a
// cancellation never abandons a message the channel may already have
// accepted; it is still bounded by the send timeout.
func (b *batch) send(ctx context.Context, key string, doc telegram.Document) (*telegram.SentMessage, error) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.o.opts.SendTimeout)
	defer cancel()

	msg, err := b.o.publisher.SendDocument(sendCtx, b.o.opts.Channel, doc)
	if err != nil {
		if retry.IsTransient(err) {
			return nil, &TransientSendError{Key: key, Err: err}
		}
		return nil, &PermanentSendError{Key: key, Err: err}
	}
	if msg == nil || msg.ID == 0 {
		return nil, &PermanentSendError{Key: key, Err: errors.New("channel returned no message id")}
	}
	return msg, nil
}

// pace waits until the minimum interval since the last send has passed,
// plus any cool-down owed by the previous task.
func (b *batch) pace(ctx context.Context) error {
	if b.lastSend.IsZero() {
		return nil
	}
	wait := b.o.opts.MinInterval - b.o.now().Sub(b.lastSend)
	if b.extraWait > wait {
		wait = b.extraWait
	}
	if wait <= 0 {
		return nil
	}
	b.log.Debug("Pacing", zap.Duration("wait", wait))
	return b.o.sleep(ctx, wait)
}

func (b *batch) fail(log *zap.Logger, task reconcile.UploadTask, err error) {
	log.Error("Upload failed", zap.Error(err))
	b.result.Failed = append(b.result.Failed, Failure{Key: task.Key, Reason: err.Error()})
	b.emit(Event{Kind: EventFailed, Key: task.Key, Title: task.Item.Title, Err: err})
}

// commit records a published message in the index and saves it.
func (b *batch) commit(ctx context.Context, log *zap.Logger, task reconcile.UploadTask, sent *telegram.SentMessage) error {
	o := b.o
	item := task.Item

	published := sent.Date
	if published.IsZero() {
		published = o.now()
	}
	filename := sent.FileName
	if filename == "" {
		filename = item.FileName
	}
	category := caption.NormalizeCategory(item.Category)

	if _, err := o.store.Upsert(index.Record{
		Key:       task.Key,
		MessageID: sent.ID,
		Title:     item.Title,
		Category:  index.StringPtr(category),
		Timestamp: published.UTC(),
		Filename:  filename,
	}); err != nil {
		return err
	}
	b.result.Succeeded = append(b.result.Succeeded, task.Key)
	if err := o.store.Save(); err != nil {
		return err
	}

	log.Info("Uploaded", zap.Int64("message_id", sent.ID), zap.String("title", item.Title))

	if o.ledger != nil {
		entry := ledger.Entry{
			TitleKey:    task.Key,
			Title:       item.Title,
			Category:    category,
			Channel:     o.opts.Channel,
			MessageID:   sent.ID,
			FileName:    filename,
			PublishedAt: published.UTC(),
		}
		if err := o.ledger.Record(context.WithoutCancel(ctx), entry); err != nil {
			log.Warn("Cannot record title in ledger", zap.Error(err))
		}
	}

	b.emit(Event{Kind: EventSucceeded, Key: task.Key, Title: item.Title, MessageID: sent.ID})
	return nil
}

func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s is empty", path)
	}
	return nil
}

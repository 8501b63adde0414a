package channelsync

import (
	"context"
	"fmt"
	"sort"
	"time"

	"channel-publisher/core/index"
	"channel-publisher/core/retry"
	"channel-publisher/core/telegram"

	"go.uber.org/zap"
)

// Mode selects how much history a sync reads.
type Mode string

const (
	// Incremental reads only messages newer than the index.
	Incremental Mode = "incremental"
	// Full reads the whole history and reconciles every record.
	Full Mode = "full"
)

// ParseMode accepts "full" and "incremental"; "" means incremental.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", Incremental:
		return Incremental, nil
	case Full:
		return Full, nil
	}
	return "", fmt.Errorf("unknown sync mode %q (want full or incremental)", s)
}

// Options configure a Synchronizer.
type Options struct {
	// Channel is the channel to read.
	Channel string
	// Retry governs each page fetch.
	Retry retry.Policy
	// PagePause is the pause between pages.
	PagePause time.Duration
	// MaxPages bounds the pages per sync; 0 means no bound.
	MaxPages int
	// LockTimeout bounds the wait for the index lock.
	LockTimeout time.Duration
}

// Result summarizes one sync.
type Result struct {
	Mode Mode `json:"mode"`
	// Fetched counts history messages read.
	Fetched int `json:"fetched"`
	// Added counts records new to the index.
	Added int `json:"added"`
	// Updated counts existing records that changed.
	Updated int `json:"updated"`
	// Stale counts records flagged stale after the sync.
	Stale int `json:"stale"`
	// Skipped counts messages that carry no book or repeat a known key.
	Skipped int `json:"skipped"`
	// Truncated is set when the page limit stopped the sync before the end
	// of the history. A truncated full sync flags nothing stale.
	Truncated bool `json:"truncated"`
}

// Synchronizer reconciles the channel index with the channel history.
type Synchronizer struct {
	reader telegram.HistoryReader
	store  *index.Store
	opts   Options
	logger *zap.Logger
	sleep  retry.Sleeper
}

// New creates a Synchronizer.
func New(reader telegram.HistoryReader, store *index.Store, opts Options, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 30 * time.Second
	}
	return &Synchronizer{
		reader: reader,
		store:  store,
		opts:   opts,
		logger: logger,
		sleep:  retry.Wait,
	}
}

// WithSleeper replaces the function used for pauses and backoff.
func (s *Synchronizer) WithSleeper(sleep retry.Sleeper) *Synchronizer {
	s.sleep = sleep
	return s
}

// Sync runs one synchronization. It holds the index lock for its duration.
func (s *Synchronizer) Sync(ctx context.Context, mode Mode) (*Result, error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.opts.LockTimeout)
	unlock, err := s.store.Lock(lockCtx)
	cancel()
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.store.Load(); err != nil {
		return nil, err
	}

	known := int64(0)
	if mode == Incremental {
		known = s.store.MaxMessageID()
	}

	messages, complete, err := s.fetch(ctx, known)
	if err != nil {
		return nil, err
	}

	result := &Result{Mode: mode, Fetched: len(messages), Truncated: !complete}
	observed := s.collect(messages, result)

	var changed bool
	if mode == Full {
		changed, err = s.applyFull(observed, !result.Truncated, result)
	} else {
		changed, err = s.applyIncremental(observed, result)
	}
	if err != nil {
		return nil, err
	}

	for _, rec := range s.store.Records() {
		if rec.Stale {
			result.Stale++
		}
	}

	if changed {
		if err := s.store.Save(); err != nil {
			return nil, err
		}
	}

	s.logger.Info("Channel sync finished",
		zap.String("mode", string(mode)),
		zap.Int("fetched", result.Fetched),
		zap.Int("added", result.Added),
		zap.Int("updated", result.Updated),
		zap.Int("stale", result.Stale),
		zap.Int("skipped", result.Skipped),
		zap.Bool("truncated", result.Truncated),
	)
	return result, nil
}

// fetch pages through the history, newest first, stopping at the first
// message with an id at or below stopAt. complete is false when the page
// limit cut the walk short.
func (s *Synchronizer) fetch(ctx context.Context, stopAt int64) ([]telegram.Message, bool, error) {
	r := retry.Retrier{
		Policy: s.opts.Retry,
		Sleep:  s.sleep,
		OnRetry: func(e retry.Event) {
			s.logger.Warn("History fetch failed, retrying",
				zap.Int("attempt", e.Attempt),
				zap.Duration("delay", e.Delay),
				zap.Error(e.Err),
			)
		},
	}

	var all []telegram.Message
	var before int64
	for pages := 0; ; pages++ {
		if s.opts.MaxPages > 0 && pages >= s.opts.MaxPages {
			s.logger.Warn("History page limit reached", zap.Int("pages", pages))
			return all, false, nil
		}
		if pages > 0 {
			if err := s.sleep(ctx, s.opts.PagePause); err != nil {
				return nil, false, &SyncError{BeforeID: before, Err: err}
			}
		}

		var page []telegram.Message
		err := r.Do(ctx, func(ctx context.Context, _ int) error {
			var err error
			page, err = s.reader.History(ctx, s.opts.Channel, before)
			return err
		})
		if err != nil {
			return nil, false, &SyncError{BeforeID: before, Err: err}
		}
		if len(page) == 0 {
			return all, true, nil
		}

		for _, msg := range page {
			if msg.ID <= stopAt {
				return all, true, nil
			}
			all = append(all, msg)
		}

		next := page[len(page)-1].ID
		if before != 0 && next >= before {
			// The reader must make progress; a page that does not move the
			// cursor would loop forever.
			return nil, false, &SyncError{BeforeID: before, Err: fmt.Errorf("history did not advance past message %d", next)}
		}
		before = next
	}
}

// collect turns messages into observations keyed by identity key. The
// earliest message wins for a repeated key.
func (s *Synchronizer) collect(messages []telegram.Message, result *Result) map[string]observation {
	observed := make(map[string]observation, len(messages))
	for _, msg := range messages {
		obs, ok := observe(msg)
		if !ok {
			result.Skipped++
			s.logger.Debug("Skipping message without a book", zap.Int64("message_id", msg.ID))
			continue
		}
		if prev, dup := observed[obs.key]; dup {
			result.Skipped++
			if obs.messageID > prev.messageID {
				continue
			}
			s.logger.Warn("Book published more than once, keeping the earliest message",
				zap.String("key", obs.key),
				zap.Int64("kept", obs.messageID),
				zap.Int64("ignored", prev.messageID),
			)
		}
		observed[obs.key] = obs
	}
	return observed
}

func (s *Synchronizer) applyIncremental(observed map[string]observation, result *Result) (bool, error) {
	ordered := make([]observation, 0, len(observed))
	for _, obs := range observed {
		ordered = append(ordered, obs)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].messageID < ordered[j].messageID })

	for _, obs := range ordered {
		if _, exists := s.store.Get(obs.key); exists {
			result.Skipped++
			s.logger.Warn("Book already indexed under an earlier message",
				zap.String("key", obs.key),
				zap.Int64("message_id", obs.messageID),
			)
			continue
		}
		if _, err := s.store.Upsert(obs.record()); err != nil {
			return false, err
		}
		result.Added++
	}
	return result.Added > 0, nil
}

// applyFull rebuilds the index from observed. Records missing from a
// complete history are flagged stale; after a truncated walk they are kept
// as they are, since the unread pages may still hold them.
func (s *Synchronizer) applyFull(observed map[string]observation, complete bool, result *Result) (bool, error) {
	existing := s.store.Records()
	next := make([]index.Record, 0, len(existing)+len(observed))

	for _, obs := range observed {
		rec := obs.record()
		old, ok := s.store.Get(obs.key)
		if ok && rec.Filename == "" {
			rec.Filename = old.Filename
		}
		switch {
		case !ok:
			result.Added++
		case !sameRecord(old, rec):
			result.Updated++
		}
		next = append(next, rec)
	}

	for _, old := range existing {
		if _, ok := observed[old.Key]; ok {
			continue
		}
		if !complete {
			next = append(next, old)
			continue
		}
		if !old.Stale {
			result.Updated++
			s.logger.Warn("Indexed book not found on channel, flagging stale",
				zap.String("key", old.Key),
				zap.Int64("message_id", old.MessageID),
			)
		}
		old.Stale = true
		next = append(next, old)
	}

	sort.SliceStable(next, func(i, j int) bool {
		if next[i].MessageID != next[j].MessageID {
			return next[i].MessageID < next[j].MessageID
		}
		return next[i].Key < next[j].Key
	})
	for i := range next {
		next[i].Sequence = i
	}

	if err := s.store.Replace(next); err != nil {
		return false, err
	}
	return true, nil
}

func (o observation) record() index.Record {
	return index.Record{
		Key:       o.key,
		MessageID: o.messageID,
		Title:     o.title,
		Category:  index.StringPtr(o.category),
		Timestamp: o.date,
		Filename:  o.fileName,
	}
}

func sameRecord(a, b index.Record) bool {
	return a.MessageID == b.MessageID &&
		a.Title == b.Title &&
		a.CategoryString() == b.CategoryString() &&
		a.Filename == b.Filename &&
		a.Timestamp.Equal(b.Timestamp) &&
		!a.Stale
}

package upload

import (
	"time"

	"channel-publisher/core/retry"
)

// Options configure an Orchestrator.
type Options struct {
	// Channel is the publishing channel.
	Channel string
	// Retry governs each send and the connectivity check.
	Retry retry.Policy
	// MinInterval is the minimum spacing between two sends.
	MinInterval time.Duration
	// FloodCooldown is the extra wait before the next task after a flood-wait.
	FloodCooldown time.Duration
	// AfterRetryDelay is the wait before the next task after a retried task.
	AfterRetryDelay time.Duration
	// SendTimeout bounds a single send.
	SendTimeout time.Duration
	// LockTimeout bounds the wait for the index lock.
	LockTimeout time.Duration
}

// OptionsFromConfig builds Options for channel from cfg.
func OptionsFromConfig(channel string, cfg Config, lockTimeout time.Duration) Options {
	return Options{
		Channel:         channel,
		Retry:           cfg.Retry,
		MinInterval:     cfg.MinInterval,
		FloodCooldown:   cfg.FloodCooldown,
		AfterRetryDelay: cfg.AfterRetryDelay,
		SendTimeout:     cfg.SendTimeout,
		LockTimeout:     lockTimeout,
	}
}

// EventKind classifies progress events.
type EventKind string

const (
	EventSucceeded EventKind = "succeeded"
	EventFailed    EventKind = "failed"
	EventSkipped   EventKind = "skipped"
	EventRetrying  EventKind = "retrying"
	EventFloodWait EventKind = "flood_wait"
)

// Event reports progress within a batch.
type Event struct {
	Kind  EventKind
	Key   string
	Title string
	// Attempt is the failed attempt number for retry events.
	Attempt int
	// MessageID is the published message for success events.
	MessageID int64
	// Delay is the wait before the next attempt for retry events.
	Delay time.Duration
	Err   error
	// Done counts finished tasks (succeeded, failed or skipped) so far.
	Done  int
	Total int
}

// ProgressFunc receives events synchronously, in order.
type ProgressFunc func(Event)

// RunOptions tune one batch.
type RunOptions struct {
	Progress ProgressFunc
}

// Failure is one failed task.
type Failure struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// BatchResult is the outcome of a batch. Keys appear in task order.
type BatchResult struct {
	RunID     string    `json:"run_id"`
	Succeeded []string  `json:"succeeded"`
	Failed    []Failure `json:"failed"`
	Skipped   []string  `json:"skipped"`
	// Remaining holds tasks that were never completed because the batch
	// stopped early.
	Remaining []string `json:"remaining"`
	Cancelled bool     `json:"cancelled"`
}

// FailedKeys returns the keys of failed tasks.
func (r *BatchResult) FailedKeys() []string {
	keys := make([]string, len(r.Failed))
	for i, f := range r.Failed {
		keys[i] = f.Key
	}
	return keys
}

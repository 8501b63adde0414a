package publish

import (
	"context"
	"fmt"
	"strings"
	"time"

	"channel-publisher/core/caption"
	"channel-publisher/core/telegram"
	"channel-publisher/core/utils"
	"channel-publisher/feature/upload"

	"go.uber.org/zap"
)

const notifyTimeout = 15 * time.Second

// Notifier reports batch progress to the log and, when a chat is set, to
// that chat. Delivery is best effort.
type Notifier struct {
	publisher telegram.Publisher
	chat      string
	logger    *zap.Logger
}

// NewNotifier creates a Notifier. An empty chat disables chat messages.
func NewNotifier(publisher telegram.Publisher, chat string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{publisher: publisher, chat: chat, logger: logger}
}

// Progress returns a progress callback for one batch. next, when set, is
// called after the event has been reported.
func (n *Notifier) Progress(ctx context.Context, next upload.ProgressFunc) upload.ProgressFunc {
	return func(ev upload.Event) {
		fields := []zap.Field{
			zap.String("event", string(ev.Kind)),
			zap.String("key", ev.Key),
			zap.Int("done", ev.Done),
			zap.Int("total", ev.Total),
		}
		if ev.Err != nil {
			fields = append(fields, zap.Error(ev.Err))
		}
		n.logger.Debug("Upload progress", fields...)

		if text := progressText(ev); text != "" {
			n.send(ctx, text)
		}
		if next != nil {
			next(ev)
		}
	}
}

// Summary reports the tally of a finished batch.
func (n *Notifier) Summary(ctx context.Context, res *upload.BatchResult) {
	if res == nil {
		return
	}
	text := summaryText(res)
	n.logger.Info(text, zap.String("run_id", res.RunID))
	n.send(ctx, text)
}

// Text sends an arbitrary message.
func (n *Notifier) Text(ctx context.Context, text string) {
	n.send(ctx, text)
}

func (n *Notifier) send(ctx context.Context, text string) {
	if n.chat == "" || n.publisher == nil {
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if _, err := n.publisher.SendMessage(sendCtx, n.chat, caption.Truncate(text, 4096)); err != nil {
		n.logger.Warn("Failed to notify admin chat", zap.Error(err))
	}
}

func progressText(ev upload.Event) string {
	counter := fmt.Sprintf("(%d/%d)", ev.Done, ev.Total)
	switch ev.Kind {
	case upload.EventSucceeded:
		return fmt.Sprintf("Uploaded %q %s", ev.Title, counter)
	case upload.EventFailed:
		return fmt.Sprintf("Failed %q %s: %v", ev.Title, counter, ev.Err)
	case upload.EventFloodWait:
		return fmt.Sprintf("Rate limited, waiting %s before retrying %q", ev.Delay.Round(time.Second), ev.Title)
	}
	return ""
}

func summaryText(res *upload.BatchResult) string {
	var b strings.Builder
	if res.Cancelled {
		b.WriteString("Upload batch cancelled: ")
	} else {
		b.WriteString("Upload batch finished: ")
	}
	parts := []string{
		utils.Plural(len(res.Succeeded), "book") + " uploaded",
		fmt.Sprintf("%d failed", len(res.Failed)),
		fmt.Sprintf("%d already published", len(res.Skipped)),
	}
	if len(res.Remaining) > 0 {
		parts = append(parts, fmt.Sprintf("%d not attempted", len(res.Remaining)))
	}
	b.WriteString(strings.Join(parts, ", "))
	if len(res.Failed) > 0 {
		b.WriteString("\nFailed: ")
		b.WriteString(strings.Join(res.FailedKeys(), ", "))
	}
	return b.String()
}

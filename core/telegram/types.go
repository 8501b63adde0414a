package telegram

import (
	"context"
	"strings"
	"time"
)

// Document is a file to publish.
type Document struct {
	// Path is the local file path.
	Path string
	// FileName is the name shown in the channel; defaults to the base of Path.
	FileName string
	Caption  string
}

// SentMessage is what the channel returned for a published message.
type SentMessage struct {
	ID       int64
	Date     time.Time
	FileName string
}

// Message is one channel message as seen in the history.
type Message struct {
	ID   int64
	Date time.Time
	// Text is the message text or document caption.
	Text string
	// FileName is the attached document name, empty without a document.
	FileName string
}

// Publisher sends to a chat.
type Publisher interface {
	SendDocument(ctx context.Context, chat string, doc Document) (*SentMessage, error)
	SendMessage(ctx context.Context, chat, text string) (*SentMessage, error)
	// Ping verifies that the API is reachable and the token is valid.
	Ping(ctx context.Context) error
}

// HistoryReader pages through a channel's history.
type HistoryReader interface {
	// History returns messages with an id lower than beforeID, newest
	// first. beforeID 0 starts at the newest message. An empty page means
	// the beginning of the channel was reached.
	History(ctx context.Context, channel string, beforeID int64) ([]Message, error)
}

// NormalizeChannel turns the accepted channel notations into "@name".
func NormalizeChannel(channel string) string {
	c := strings.TrimSpace(channel)
	if c == "" {
		return ""
	}
	if isNumericID(c) {
		return c
	}
	for _, prefix := range []string{"https://", "http://"} {
		c = strings.TrimPrefix(c, prefix)
	}
	for _, host := range []string{"t.me/s/", "t.me/", "telegram.me/"} {
		if strings.HasPrefix(c, host) {
			c = strings.TrimPrefix(c, host)
			break
		}
	}
	c = strings.TrimSuffix(c, "/")
	if i := strings.IndexAny(c, "/?"); i >= 0 {
		c = c[:i]
	}
	return "@" + strings.TrimPrefix(c, "@")
}

// channelName returns the bare public name of a channel, without "@".
func channelName(channel string) string {
	return strings.TrimPrefix(NormalizeChannel(channel), "@")
}

func isNumericID(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

package mocks

import (
	"context"

	"channel-publisher/core/telegram"

	"github.com/stretchr/testify/mock"
)

// Publisher is a mock implementation of telegram.Publisher
type Publisher struct {
	mock.Mock
}

func (m *Publisher) SendDocument(ctx context.Context, chat string, doc telegram.Document) (*telegram.SentMessage, error) {
	args := m.Called(ctx, chat, doc)
	if sent, ok := args.Get(0).(*telegram.SentMessage); ok {
		return sent, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Publisher) SendMessage(ctx context.Context, chat, text string) (*telegram.SentMessage, error) {
	args := m.Called(ctx, chat, text)
	if sent, ok := args.Get(0).(*telegram.SentMessage); ok {
		return sent, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Publisher) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// HistoryReader is a mock implementation of telegram.HistoryReader
type HistoryReader struct {
	mock.Mock
}

func (m *HistoryReader) History(ctx context.Context, channel string, beforeID int64) ([]telegram.Message, error) {
	args := m.Called(ctx, channel, beforeID)
	if msgs, ok := args.Get(0).([]telegram.Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}

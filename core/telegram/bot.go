package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// BotClient publishes through the Telegram Bot API.
type BotClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewBotClient creates a Bot API client. Nothing is sent until the first
// call. The token is kept out of every error and log line the client
// produces.
func NewBotClient(cfg Config, logger *zap.Logger) *BotClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := strings.TrimRight(cfg.APIURL, "/")
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &BotClient{
		baseURL:    baseURL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// api returns a tgbotapi client whose requests are bound to ctx. The
// library itself takes no context.
func (c *BotClient) api(ctx context.Context) *tgbotapi.BotAPI {
	bot := &tgbotapi.BotAPI{
		Token:  c.token,
		Buffer: 100,
		Client: &boundClient{ctx: ctx, client: c.httpClient, redact: c.redact},
	}
	bot.SetAPIEndpoint(c.baseURL + "/bot%s/%s")
	return bot
}

// Ping calls getMe.
func (c *BotClient) Ping(ctx context.Context) error {
	me, err := c.api(ctx).GetMe()
	if err != nil {
		return c.wrap("getMe", err)
	}
	c.logger.Debug("Telegram bot reachable", zap.String("bot", me.UserName))
	return nil
}

// SendMessage posts a text message.
func (c *BotClient) SendMessage(ctx context.Context, chat, text string) (*SentMessage, error) {
	msg := tgbotapi.MessageConfig{BaseChat: target(chat), Text: text}
	sent, err := c.api(ctx).Send(msg)
	if err != nil {
		return nil, c.wrap("sendMessage", err)
	}
	return toSent(sent), nil
}

// SendDocument uploads doc. The library streams the file into the
// multipart body.
func (c *BotClient) SendDocument(ctx context.Context, chat string, doc Document) (*SentMessage, error) {
	f, err := os.Open(doc.Path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	name := doc.FileName
	if name == "" {
		name = filepath.Base(doc.Path)
	}

	upload := tgbotapi.NewDocument(0, tgbotapi.FileReader{Name: name, Reader: f})
	upload.BaseChat = target(chat)
	upload.Caption = doc.Caption

	msg, err := c.api(ctx).Send(upload)
	if err != nil {
		return nil, c.wrap("sendDocument", err)
	}
	sent := toSent(msg)
	if sent.FileName == "" {
		sent.FileName = name
	}
	return sent, nil
}

// target addresses a chat by numeric id or by public name.
func target(chat string) tgbotapi.BaseChat {
	chat = NormalizeChannel(chat)
	if isNumericID(chat) {
		if id, err := strconv.ParseInt(chat, 10, 64); err == nil {
			return tgbotapi.BaseChat{ChatID: id}
		}
	}
	return tgbotapi.BaseChat{ChannelUsername: chat}
}

func toSent(m tgbotapi.Message) *SentMessage {
	sent := &SentMessage{ID: int64(m.MessageID), Date: time.Unix(int64(m.Date), 0).UTC()}
	if m.Document != nil {
		sent.FileName = m.Document.FileName
	}
	return sent
}

// wrap turns library errors into *APIError so that retry classification
// and flood-wait handling see the Bot API error code.
func (c *BotClient) wrap(method string, err error) error {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		return &APIError{
			Method:            method,
			StatusCode:        tgErr.Code,
			Description:       tgErr.Message,
			RetryAfterSeconds: tgErr.RetryAfter,
		}
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		apiErr.Method = method
		return apiErr
	}
	return fmt.Errorf("telegram %s: %w", method, c.redact(err))
}

// redact strips the request URL, which embeds the token, from transport
// errors. *url.Error keeps its Timeout behavior.
func (c *BotClient) redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return &url.Error{Op: uerr.Op, URL: c.baseURL + "/bot<redacted>", Err: uerr.Err}
	}
	if c.token != "" && strings.Contains(err.Error(), c.token) {
		return errors.New(strings.ReplaceAll(err.Error(), c.token, "<redacted>"))
	}
	return err
}

// boundClient is the tgbotapi.HTTPClient used for one call. It attaches the
// caller's context and turns gateway failures, whose bodies are not Bot API
// JSON, into *APIError.
type boundClient struct {
	ctx    context.Context
	client *http.Client
	redact func(error) error
}

func (b *boundClient) Do(req *http.Request) (*http.Response, error) {
	resp, err := b.client.Do(req.WithContext(b.ctx))
	if err != nil {
		return nil, b.redact(err)
	}
	if resp.StatusCode < http.StatusInternalServerError {
		return resp, nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	_ = resp.Body.Close()
	apiErr := &APIError{StatusCode: resp.StatusCode, Description: http.StatusText(resp.StatusCode)}
	if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && s > 0 {
		apiErr.RetryAfterSeconds = s
	}
	return nil, apiErr
}

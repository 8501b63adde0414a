package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"channel-publisher/core/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testToken = "123456:SECRET"

func newTestBot(t *testing.T, h http.HandlerFunc) *BotClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewBotClient(Config{Token: testToken, APIURL: srv.URL, Timeout: 5 * time.Second}, zap.NewNop())
}

func TestSendDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Three Body.epub")
	require.NoError(t, os.WriteFile(path, []byte("epub-bytes"), 0o644))

	bot := newTestBot(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot"+testToken+"/sendDocument", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "@books", r.FormValue("chat_id"))
		assert.Equal(t, "标题：Three Body", r.FormValue("caption"))

		file, header, err := r.FormFile("document")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "epub-bytes", string(data))
		assert.Equal(t, "Three Body.epub", header.Filename)

		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":42,"date":1700000000,"document":{"file_name":"Three Body.epub"}}}`)
	})

	sent, err := bot.SendDocument(context.Background(), "https://t.me/books", Document{Path: path, Caption: "标题：Three Body"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), sent.ID)
	assert.Equal(t, "Three Body.epub", sent.FileName)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), sent.Date)
}

func TestFloodWaitIsTransient(t *testing.T) {
	bot := newTestBot(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 35","parameters":{"retry_after":35}}`)
	})

	_, err := bot.SendMessage(context.Background(), "@books", "hello")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsFloodWait())
	assert.True(t, retry.IsTransient(err))
	wait, ok := retry.RetryAfter(err)
	require.True(t, ok)
	assert.Equal(t, 35*time.Second, wait)
}

func TestBadRequestIsPermanent(t *testing.T) {
	bot := newTestBot(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
	})

	err := bot.Ping(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.False(t, retry.IsTransient(err))
}

func TestServerErrorWithoutJSON(t *testing.T) {
	bot := newTestBot(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	})

	_, err := bot.SendMessage(context.Background(), "@books", "hello")
	require.Error(t, err)
	assert.True(t, retry.IsTransient(err))
}

func TestTransportErrorHidesToken(t *testing.T) {
	bot := NewBotClient(Config{Token: testToken, APIURL: "http://127.0.0.1:1", Timeout: time.Second}, zap.NewNop())
	err := bot.Ping(context.Background())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET")
	assert.True(t, retry.IsTransient(err))
}

func TestSendMessageToNumericChat(t *testing.T) {
	bot := newTestBot(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot"+testToken+"/sendMessage", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "-1001234567890", r.PostFormValue("chat_id"))
		assert.Equal(t, "Uploaded \"Dune\"", r.PostFormValue("text"))
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":1700000000}}`)
	})

	sent, err := bot.SendMessage(context.Background(), "-1001234567890", "Uploaded \"Dune\"")
	require.NoError(t, err)
	assert.Equal(t, int64(7), sent.ID)
	assert.Empty(t, sent.FileName)
}

func TestPingHonorsContext(t *testing.T) {
	release := make(chan struct{})
	bot := newTestBot(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := bot.Ping(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotContains(t, err.Error(), "SECRET")
}

func TestNormalizeChannel(t *testing.T) {
	tests := map[string]string{
		"@books":                  "@books",
		"books":                   "@books",
		"https://t.me/books":      "@books",
		"http://t.me/s/books/":    "@books",
		"t.me/books?start=1":      "@books",
		"-1001234567890":          "-1001234567890",
		"  https://t.me/books/12": "@books",
		"":                        "",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, NormalizeChannel(in))
		})
	}
	assert.True(t, strings.HasPrefix(NormalizeChannel("x"), "@"))
}

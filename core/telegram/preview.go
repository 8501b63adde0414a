package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// PreviewReader reads channel history from the public web preview.
type PreviewReader struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewPreviewReader creates a history reader for public channels.
func NewPreviewReader(cfg Config, logger *zap.Logger) *PreviewReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := strings.TrimRight(cfg.PreviewURL, "/")
	if baseURL == "" {
		baseURL = "https://t.me"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &PreviewReader{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// History fetches one preview page.
func (r *PreviewReader) History(ctx context.Context, channel string, beforeID int64) ([]Message, error) {
	name := channelName(channel)
	if name == "" || isNumericID(name) {
		return nil, fmt.Errorf("history needs a public channel name, got %q", channel)
	}

	u := r.baseURL + "/s/" + url.PathEscape(name)
	if beforeID > 0 {
		u += "?before=" + strconv.FormatInt(beforeID, 10)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build preview request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch preview page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		apiErr := &APIError{Method: "preview", StatusCode: resp.StatusCode, Description: http.StatusText(resp.StatusCode)}
		if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && s > 0 {
			apiErr.RetryAfterSeconds = s
		}
		return nil, apiErr
	}

	messages, err := ParsePreview(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse preview page: %w", err)
	}

	out := messages[:0]
	for _, m := range messages {
		if beforeID > 0 && m.ID >= beforeID {
			continue
		}
		out = append(out, m)
	}
	r.logger.Debug("Fetched channel history page",
		zap.String("channel", name),
		zap.Int64("before", beforeID),
		zap.Int("messages", len(out)),
	)
	return out, nil
}

// ParsePreview extracts the messages of a preview page, newest first.
func ParsePreview(body io.Reader) ([]Message, error) {
	doc, err := html.Parse(body)
	if err != nil {
		return nil, err
	}

	var messages []Message
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, "tgme_widget_message") {
			if post := attr(n, "data-post"); post != "" {
				if msg, ok := parseMessage(n, post); ok {
					messages = append(messages, msg)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].ID > messages[j].ID
	})
	return messages, nil
}

func parseMessage(n *html.Node, post string) (Message, bool) {
	idx := strings.LastIndex(post, "/")
	id, err := strconv.ParseInt(post[idx+1:], 10, 64)
	if err != nil || id <= 0 {
		return Message{}, false
	}
	msg := Message{ID: id}

	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case hasClass(n, "tgme_widget_message_reply"), hasClass(n, "tgme_widget_message_forwarded_from"):
				return
			case hasClass(n, "tgme_widget_message_text") && msg.Text == "":
				msg.Text = strings.TrimSpace(textContent(n))
				return
			case hasClass(n, "tgme_widget_message_document_title") && msg.FileName == "":
				msg.FileName = strings.TrimSpace(textContent(n))
				return
			case n.DataAtom == atom.Time && msg.Date.IsZero():
				if ts, err := time.Parse(time.RFC3339, attr(n, "datetime")); err == nil {
					msg.Date = ts.UTC()
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return msg, true
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			b.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return b.String()
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

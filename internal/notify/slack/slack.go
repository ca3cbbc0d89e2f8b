// Package slack sends critical-message alerts to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/linnemanlabs/sift/internal/prioritize"
)

const (
	maxTextLen  = 500
	maxMessages = 10
	httpTimeout = 10 * time.Second
)

// Notifier posts critical messages to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Send posts the given critical messages to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, critical []*prioritize.ScoredMessage) error {
	if n.webhookURL == "" || len(critical) == 0 {
		return nil
	}

	msg := buildMessage(critical)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(critical []*prioritize.ScoredMessage) map[string]any {
	blocks := []map[string]any{
		headerBlock(len(critical)),
		{"type": "divider"},
	}

	shown := critical
	if len(shown) > maxMessages {
		shown = shown[:maxMessages]
	}
	for _, sm := range shown {
		blocks = append(blocks, messageBlock(sm))
	}
	if omitted := len(critical) - len(shown); omitted > 0 {
		blocks = append(blocks, map[string]any{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("_...and %d more._", omitted),
			},
		})
	}

	blocks = append(blocks, map[string]any{"type": "divider"}, contextBlock(critical))

	return map[string]any{"blocks": blocks}
}

func headerBlock(count int) map[string]any {
	noun := "messages"
	if count == 1 {
		noun = "message"
	}
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": fmt.Sprintf("\U0001f534 %d critical %s need attention", count, noun),
		},
	}
}

func messageBlock(sm *prioritize.ScoredMessage) map[string]any {
	channel := sm.ChannelName
	if channel == "" {
		channel = sm.ChannelID
	}
	sender := sm.UserName
	if sender == "" {
		sender = sm.UserID
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*[%d]* *#%s* %s\n%s\n_%s_",
				sm.Score, channel, sender, truncate(sm.Text, maxTextLen), sm.Reason),
		},
	}
}

func contextBlock(critical []*prioritize.ScoredMessage) map[string]any {
	ts := time.Now()
	if len(critical) > 0 && !critical[0].ScoredAt.IsZero() {
		ts = critical[0].ScoredAt
	}

	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("sift • %s", ts.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

// truncate cuts s to at most limit characters, ellipsized. Cuts land on rune
// boundaries so multibyte text never degrades into invalid UTF-8.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit-3 {
			return s[:i] + "..."
		}
		n++
	}
	return s
}

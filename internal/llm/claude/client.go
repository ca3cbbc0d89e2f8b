// Package claude adapts the Anthropic Messages API to the
// prioritize.Provider interface.
package claude

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/sift/internal/prioritize"
)

// Client implements prioritize.Provider against the Anthropic API.
type Client struct {
	client anthropic.Client
	model  string
}

// New creates a new Claude client scoring with the given model.
func New(apiKey, model string) *Client {
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Complete sends one scoring request and returns the raw completion text.
// Claude has no JSON response mode, so the response is trimmed of any code
// fences before it reaches the parser.
func (c *Client) Complete(ctx context.Context, req *prioritize.CompletionRequest) (*prioritize.CompletionResponse, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(float64(req.Temperature)),
		System: []anthropic.TextBlockParam{
			{Text: req.System},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("messages create: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			return &prioritize.CompletionResponse{
				Content: stripFences(block.Text),
				Model:   string(msg.Model),
				Usage: prioritize.Usage{
					InputTokens:  int(msg.Usage.InputTokens),
					OutputTokens: int(msg.Usage.OutputTokens),
				},
			}, nil
		}
	}

	return nil, fmt.Errorf("messages create: no text content in response")
}

// stripFences removes a surrounding markdown code fence from a response, if
// present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

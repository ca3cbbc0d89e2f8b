// Package openai adapts the OpenAI chat completions API to the
// prioritize.Provider interface.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/linnemanlabs/sift/internal/prioritize"
)

// requestTimeout bounds a single scoring call. Large batches with long
// messages can take a while to score, so this is generous.
const requestTimeout = 60 * time.Second

// Client implements prioritize.Provider against the OpenAI API.
type Client struct {
	client *openai.Client
	model  string
}

// Option customizes the client.
type Option func(*openai.ClientConfig)

// WithBaseURL points the client at an alternate API endpoint. Used for
// OpenAI-compatible providers and for tests.
func WithBaseURL(baseURL string) Option {
	return func(cfg *openai.ClientConfig) {
		cfg.BaseURL = baseURL
	}
}

// New creates a new OpenAI client scoring with the given model.
func New(apiKey, model string, opts ...Option) *Client {
	config := openai.DefaultConfig(apiKey)
	config.HTTPClient = &http.Client{Timeout: requestTimeout}
	for _, opt := range opts {
		opt(&config)
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// Complete sends one scoring request and returns the raw completion text.
// JSON mode is forced so the model cannot wrap its answer in prose.
func (c *Client) Complete(ctx context.Context, req *prioritize.CompletionRequest) (*prioritize.CompletionResponse, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: no choices in response")
	}

	return &prioritize.CompletionResponse{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: prioritize.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

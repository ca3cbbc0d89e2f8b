package prioritize

import "context"

// Provider is the interface for any LLM backend capable of the one scoring
// call the engine makes.
type Provider interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest is a single system+user completion with deterministic
// settings. Providers that support a structured JSON response mode should
// enable it; the engine validates the body either way.
type CompletionRequest struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float32
}

// CompletionResponse carries the raw model output and token usage.
type CompletionResponse struct {
	Content string
	Model   string
	Usage   Usage
}

// Usage is the token accounting for one completion.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// priorityEntry is one element of the model's "priorities" array.
type priorityEntry struct {
	MessageNumber int    `json:"message_number"`
	Score         int    `json:"score"`
	Reason        string `json:"reason"`
	Category      string `json:"category"`
}

// scoringResponse is the strict output contract the prompt demands.
type scoringResponse struct {
	Priorities []priorityEntry `json:"priorities"`
}

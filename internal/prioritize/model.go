package prioritize

import (
	"time"

	"github.com/linnemanlabs/sift/internal/message"
)

// Status tracks where a message is in its scoring lifecycle.
type Status string

const (
	// StatusPending means ingested, not yet scored
	StatusPending Status = "pending"

	// StatusScored means a final score and category have been assigned
	StatusScored Status = "scored"
)

// Source records which path produced a message's base score.
type Source string

const (
	// SourceModel means the LLM scored the message
	SourceModel Source = "model"

	// SourceModelDefault means the LLM response was valid but had no entry
	// for this message, so the neutral default was substituted
	SourceModelDefault Source = "model_default"

	// SourceFallback means the keyword fallback scored the whole batch
	SourceFallback Source = "fallback"
)

// ScoredMessage is the outcome of prioritizing one message. Score is always
// an integer in [0,100] and Category is derived from it, never set
// independently.
type ScoredMessage struct {
	ID string `json:"id"`
	message.Record

	Status      Status   `json:"status"`
	Score       int      `json:"priority_score"`
	Reason      string   `json:"priority_reason,omitempty"`
	Category    Category `json:"category,omitempty"`
	Source      Source   `json:"source,omitempty"`
	Adjustments []string `json:"adjustments,omitempty"`

	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ScoredAt  time.Time `json:"scored_at,omitempty"`
}

// RunResult summarizes one prioritization run over a set of records.
type RunResult struct {
	Messages []*ScoredMessage

	Batches          int
	FallbackBatches  int
	InputTokensUsed  int
	OutputTokensUsed int
	Duration         float64
	LLMTime          float64
	Model            string
}

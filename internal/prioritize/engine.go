package prioritize

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/sift/internal/message"
)

var tracer = otel.Tracer("github.com/linnemanlabs/sift/internal/prioritize")

const (
	// DefaultBatchSize is how many messages go to the model in one request.
	DefaultBatchSize = 50

	// DefaultMaxRetries is the total number of attempts per batch before
	// falling back to keyword scoring.
	DefaultMaxRetries = 3

	// ResponseTokens bounds the model's output per scoring call.
	ResponseTokens = 2000

	// ScoringTemperature keeps the scoring call near-deterministic.
	ScoringTemperature = 0.1
)

// Options tunes the engine. Zero values fall back to the defaults.
type Options struct {
	BatchSize  int
	MaxRetries int
}

// EngineHooks are optional callbacks for instrumentation. Nil funcs are
// skipped.
type EngineHooks struct {
	OnLLMCall  func(inputTokens, outputTokens int, duration float64)
	OnBatch    func(size, attempts int, fellBack bool)
	OnComplete func(e *CompleteEvent)
}

// CompleteEvent summarizes one finished run for the OnComplete hook.
type CompleteEvent struct {
	Messages        int
	Batches         int
	FallbackBatches int
	TokensIn        int
	TokensOut       int
	Duration        float64
	LLMTime         float64
	Model           string
}

// Engine combines content-only model scores with deterministic multipliers
// to produce final, bounded priority scores. It never fails a run: every
// input record gets exactly one scored output, model or not.
type Engine struct {
	provider   Provider
	prefs      *Preferences
	batchSize  int
	maxRetries int
	logger     log.Logger
	hooks      EngineHooks
}

// NewEngine creates an engine scoring against the given provider and
// preferences.
func NewEngine(provider Provider, prefs *Preferences, opts Options, logger log.Logger, hooks EngineHooks) *Engine {
	if prefs == nil {
		prefs = NewPreferences("", nil, nil, nil)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{
		provider:   provider,
		prefs:      prefs,
		batchSize:  opts.BatchSize,
		maxRetries: opts.MaxRetries,
		logger:     logger,
		hooks:      hooks,
	}
}

// Run prioritizes all records: fixed-size batches, strictly sequential (to
// bound API rate and cost), output concatenated in input order. One output
// per input, always.
func (e *Engine) Run(ctx context.Context, records []message.Record) *RunResult {
	start := time.Now()

	rr := &RunResult{
		Messages: make([]*ScoredMessage, 0, len(records)),
	}

	totalBatches := (len(records) + e.batchSize - 1) / e.batchSize

	for i := 0; i < len(records); i += e.batchSize {
		end := min(i+e.batchSize, len(records))
		batch := records[i:end]

		rr.Batches++
		e.logger.Info(ctx, "scoring batch",
			"batch", rr.Batches,
			"batches_total", totalBatches,
			"size", len(batch),
		)

		scored, stats := e.scoreBatch(ctx, batch)

		rr.InputTokensUsed += stats.tokensIn
		rr.OutputTokensUsed += stats.tokensOut
		rr.LLMTime += stats.llmTime
		if stats.fellBack {
			rr.FallbackBatches++
		}
		if stats.model != "" {
			rr.Model = stats.model
		}

		now := time.Now()
		for _, sm := range scored {
			applyMultipliers(sm, e.prefs)
			sm.Status = StatusScored
			sm.ScoredAt = now
		}

		rr.Messages = append(rr.Messages, scored...)
	}

	rr.Duration = time.Since(start).Seconds()

	if e.hooks.OnComplete != nil {
		e.hooks.OnComplete(&CompleteEvent{
			Messages:        len(rr.Messages),
			Batches:         rr.Batches,
			FallbackBatches: rr.FallbackBatches,
			TokensIn:        rr.InputTokensUsed,
			TokensOut:       rr.OutputTokensUsed,
			Duration:        rr.Duration,
			LLMTime:         rr.LLMTime,
			Model:           rr.Model,
		})
	}

	e.logger.Info(ctx, "prioritization complete",
		"messages", len(rr.Messages),
		"batches", rr.Batches,
		"fallback_batches", rr.FallbackBatches,
		"duration", rr.Duration,
		"tokens_in", rr.InputTokensUsed,
		"tokens_out", rr.OutputTokensUsed,
	)

	return rr
}

// batchStats accumulates per-batch accounting for the run totals.
type batchStats struct {
	tokensIn  int
	tokensOut int
	llmTime   float64
	attempts  int
	fellBack  bool
	model     string
}

// scoreBatch produces base scores for one batch: the model call with up to
// maxRetries identical attempts, then whole-batch keyword fallback. There is
// no partial-credit merge between model and fallback results; a batch is one
// or the other.
//
// Retries are immediate. The prompt is deterministic, so backoff buys
// nothing against malformed output, and transport errors surface fast.
func (e *Engine) scoreBatch(ctx context.Context, batch []message.Record) ([]*ScoredMessage, batchStats) {
	prompt := buildScoringPrompt(batch)
	var stats batchStats

	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		stats.attempts = attempt

		entries, resp, callDur, err := e.attemptScore(ctx, batch, prompt)

		stats.llmTime += callDur
		if resp != nil {
			stats.tokensIn += resp.Usage.InputTokens
			stats.tokensOut += resp.Usage.OutputTokens
			stats.model = resp.Model
		}

		if err != nil {
			e.logger.Warn(ctx, "scoring attempt failed",
				"attempt", attempt,
				"max_retries", e.maxRetries,
				"error", err.Error(),
			)
			continue
		}

		if e.hooks.OnBatch != nil {
			e.hooks.OnBatch(len(batch), stats.attempts, false)
		}
		return mergeEntries(batch, entries, stats.model), stats
	}

	e.logger.Warn(ctx, "all scoring attempts failed, using keyword fallback",
		"attempts", stats.attempts,
		"size", len(batch),
	)

	stats.fellBack = true
	if e.hooks.OnBatch != nil {
		e.hooks.OnBatch(len(batch), stats.attempts, true)
	}
	return fallbackBatch(batch), stats
}

// attemptScore performs one model call and validates the response body.
// The returned response is non-nil whenever the provider answered, even if
// validation failed, so the caller can account tokens and wall time for bad
// attempts.
func (e *Engine) attemptScore(ctx context.Context, batch []message.Record, prompt string) ([]priorityEntry, *CompletionResponse, float64, error) {
	ctx, span := tracer.Start(ctx, "llm.score", trace.WithAttributes(
		attribute.String("gen_ai.operation.name", "llm.score"),
		attribute.Int("sift.batch.size", len(batch)),
	))
	defer span.End()

	callStart := time.Now()
	resp, err := e.provider.Complete(ctx, &CompletionRequest{
		System:      systemPrompt,
		User:        prompt,
		MaxTokens:   ResponseTokens,
		Temperature: ScoringTemperature,
	})
	callDur := time.Since(callStart).Seconds()

	if resp != nil {
		span.SetAttributes(
			attribute.String("gen_ai.response.model", resp.Model),
			attribute.Int("gen_ai.usage.input_tokens", resp.Usage.InputTokens),
			attribute.Int("gen_ai.usage.output_tokens", resp.Usage.OutputTokens),
		)
		if e.hooks.OnLLMCall != nil {
			e.hooks.OnLLMCall(resp.Usage.InputTokens, resp.Usage.OutputTokens, callDur)
		}
	}
	if err != nil {
		span.RecordError(err)
		return nil, resp, callDur, err
	}

	var sr scoringResponse
	if err := json.Unmarshal([]byte(resp.Content), &sr); err != nil {
		span.RecordError(err)
		return nil, resp, callDur, err
	}

	if len(sr.Priorities) != len(batch) {
		err := &countMismatchError{got: len(sr.Priorities), want: len(batch)}
		span.RecordError(err)
		return nil, resp, callDur, err
	}

	return sr.Priorities, resp, callDur, nil
}

// mergeEntries joins model priorities back onto records by 1-based message
// number. A record missing from an otherwise valid response gets the neutral
// default rather than failing the batch: partial model responses never abort
// scoring.
func mergeEntries(batch []message.Record, entries []priorityEntry, model string) []*ScoredMessage {
	lookup := make(map[int]priorityEntry, len(entries))
	for _, p := range entries {
		lookup[p.MessageNumber] = p
	}

	out := make([]*ScoredMessage, 0, len(batch))
	for i, rec := range batch {
		sm := &ScoredMessage{
			Record: rec,
			Model:  model,
		}
		if p, ok := lookup[i+1]; ok {
			sm.Score = boundScore(p.Score)
			sm.Reason = p.Reason
			sm.Category = Category(p.Category)
			sm.Source = SourceModel
		} else {
			sm.Score = 50
			sm.Reason = "No priority assigned by AI"
			sm.Category = CategoryFYI
			sm.Source = SourceModelDefault
		}
		out = append(out, sm)
	}
	return out
}

// fallbackBatch scores every record with the keyword heuristic.
func fallbackBatch(batch []message.Record) []*ScoredMessage {
	out := make([]*ScoredMessage, 0, len(batch))
	for _, rec := range batch {
		score, reason, category := fallbackScore(rec.Text)
		out = append(out, &ScoredMessage{
			Record:   rec,
			Score:    score,
			Reason:   reason,
			Category: category,
			Source:   SourceFallback,
		})
	}
	return out
}

// boundScore pins an untrusted model score into [0,100]. This guards the
// input contract of the multiplier math; the diminishing-returns formula
// itself never needs clamping.
func boundScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// countMismatchError means the model returned the wrong number of priorities.
type countMismatchError struct {
	got, want int
}

func (e *countMismatchError) Error() string {
	return fmt.Sprintf("priority count mismatch: got %d, want %d", e.got, e.want)
}

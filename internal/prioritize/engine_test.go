package prioritize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/sift/internal/message"
)

const openaiTestModel = "gpt-4o-mini"

// mockProvider returns preconfigured responses in sequence.
type mockProvider struct {
	mu        sync.Mutex
	responses []*CompletionResponse
	errs      []error
	callIdx   int
	requests  []*CompletionRequest
}

func (m *mockProvider) Complete(_ context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	idx := m.callIdx
	m.callIdx++

	if idx < len(m.errs) && m.errs[idx] != nil {
		return nil, m.errs[idx]
	}
	if idx < len(m.responses) {
		return m.responses[idx], nil
	}
	return nil, errors.New("mock provider exhausted")
}

func (m *mockProvider) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callIdx
}

// validResponse builds a well-formed scoring response for n messages with
// uniform scores.
func validResponse(n, score int) *CompletionResponse {
	entries := make([]priorityEntry, 0, n)
	for i := range n {
		entries = append(entries, priorityEntry{
			MessageNumber: i + 1,
			Score:         score,
			Reason:        fmt.Sprintf("Reason %d", i+1),
			Category:      string(Classify(score)),
		})
	}
	content, _ := json.Marshal(scoringResponse{Priorities: entries})
	return &CompletionResponse{
		Content: string(content),
		Model:   openaiTestModel,
		Usage:   Usage{InputTokens: 100, OutputTokens: 50},
	}
}

func testRecords(n int) []message.Record {
	records := make([]message.Record, 0, n)
	for i := range n {
		records = append(records, message.Record{
			MessageID:   fmt.Sprintf("m-%d", i+1),
			ChannelName: "general",
			UserName:    "bob",
			Text:        fmt.Sprintf("message %d", i+1),
		})
	}
	return records
}

func TestRun_SingleBatch(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{responses: []*CompletionResponse{validResponse(3, 60)}}
	engine := NewEngine(provider, nil, Options{}, log.Nop(), EngineHooks{})

	rr := engine.Run(context.Background(), testRecords(3))

	if len(rr.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(rr.Messages))
	}
	if rr.Batches != 1 {
		t.Errorf("batches = %d, want 1", rr.Batches)
	}
	if rr.FallbackBatches != 0 {
		t.Errorf("fallback batches = %d, want 0", rr.FallbackBatches)
	}
	if rr.InputTokensUsed != 100 {
		t.Errorf("InputTokensUsed = %d, want 100", rr.InputTokensUsed)
	}
	if rr.OutputTokensUsed != 50 {
		t.Errorf("OutputTokensUsed = %d, want 50", rr.OutputTokensUsed)
	}
	if rr.Model != openaiTestModel {
		t.Errorf("model = %q, want %q", rr.Model, openaiTestModel)
	}
	if rr.Duration <= 0 {
		t.Error("expected positive duration")
	}

	for i, sm := range rr.Messages {
		if sm.MessageID != fmt.Sprintf("m-%d", i+1) {
			t.Errorf("message %d out of order: %q", i, sm.MessageID)
		}
		if sm.Score != 60 {
			t.Errorf("message %d score = %d, want 60", i, sm.Score)
		}
		if sm.Source != SourceModel {
			t.Errorf("message %d source = %q, want %q", i, sm.Source, SourceModel)
		}
		if sm.Status != StatusScored {
			t.Errorf("message %d status = %q, want %q", i, sm.Status, StatusScored)
		}
		if sm.ScoredAt.IsZero() {
			t.Errorf("message %d has zero ScoredAt", i)
		}
		if sm.Model != openaiTestModel {
			t.Errorf("message %d model = %q, want %q", i, sm.Model, openaiTestModel)
		}
	}
}

func TestRun_RequestParameters(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{responses: []*CompletionResponse{validResponse(1, 50)}}
	engine := NewEngine(provider, nil, Options{}, log.Nop(), EngineHooks{})

	engine.Run(context.Background(), testRecords(1))

	if len(provider.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(provider.requests))
	}
	req := provider.requests[0]
	if req.System != systemPrompt {
		t.Errorf("system = %q, want fixed system prompt", req.System)
	}
	if req.MaxTokens != ResponseTokens {
		t.Errorf("max tokens = %d, want %d", req.MaxTokens, ResponseTokens)
	}
	if req.Temperature != ScoringTemperature {
		t.Errorf("temperature = %v, want %v", req.Temperature, ScoringTemperature)
	}
	if !strings.Contains(req.User, "message 1") {
		t.Errorf("user prompt missing message text: %q", req.User)
	}
}

func TestRun_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{
		responses: []*CompletionResponse{
			{Content: "not json at all", Model: openaiTestModel, Usage: Usage{InputTokens: 10, OutputTokens: 5}},
			nil,
			validResponse(2, 70),
		},
		errs: []error{nil, errors.New("transport timeout"), nil},
	}
	engine := NewEngine(provider, nil, Options{}, log.Nop(), EngineHooks{})

	rr := engine.Run(context.Background(), testRecords(2))

	if provider.calls() != 3 {
		t.Errorf("calls = %d, want 3", provider.calls())
	}
	if rr.FallbackBatches != 0 {
		t.Errorf("fallback batches = %d, want 0", rr.FallbackBatches)
	}
	for i, sm := range rr.Messages {
		if sm.Source != SourceModel {
			t.Errorf("message %d source = %q, want %q", i, sm.Source, SourceModel)
		}
		if sm.Score != 70 {
			t.Errorf("message %d score = %d, want 70", i, sm.Score)
		}
	}

	// Tokens from the failed first attempt still count.
	if rr.InputTokensUsed != 110 {
		t.Errorf("InputTokensUsed = %d, want 110", rr.InputTokensUsed)
	}
}

func TestRun_AllAttemptsFail_FallsBack(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{
		errs: []error{
			errors.New("boom"),
			errors.New("boom"),
			errors.New("boom"),
		},
	}
	engine := NewEngine(provider, nil, Options{}, log.Nop(), EngineHooks{})

	records := []message.Record{
		{MessageID: "m-1", Text: "urgent: production is down"},
		{MessageID: "m-2", Text: "lunch anyone?"},
	}
	rr := engine.Run(context.Background(), records)

	if provider.calls() != DefaultMaxRetries {
		t.Errorf("calls = %d, want %d", provider.calls(), DefaultMaxRetries)
	}
	if rr.FallbackBatches != 1 {
		t.Errorf("fallback batches = %d, want 1", rr.FallbackBatches)
	}
	if len(rr.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(rr.Messages))
	}

	if rr.Messages[0].Source != SourceFallback {
		t.Errorf("source = %q, want %q", rr.Messages[0].Source, SourceFallback)
	}
	if rr.Messages[0].Score != 90 {
		t.Errorf("urgent fallback score = %d, want 90", rr.Messages[0].Score)
	}
	if rr.Messages[1].Score != 20 {
		t.Errorf("casual fallback score = %d, want 20", rr.Messages[1].Score)
	}
}

func TestRun_CountMismatch_RetriedThenFallback(t *testing.T) {
	t.Parallel()

	// 2 entries for 3 messages on every attempt: the whole batch falls back,
	// no partial merge of a short response.
	short := validResponse(2, 60)
	provider := &mockProvider{responses: []*CompletionResponse{short, short, short}}
	engine := NewEngine(provider, nil, Options{}, log.Nop(), EngineHooks{})

	rr := engine.Run(context.Background(), testRecords(3))

	if provider.calls() != DefaultMaxRetries {
		t.Errorf("calls = %d, want %d", provider.calls(), DefaultMaxRetries)
	}
	if rr.FallbackBatches != 1 {
		t.Errorf("fallback batches = %d, want 1", rr.FallbackBatches)
	}
	for i, sm := range rr.Messages {
		if sm.Source != SourceFallback {
			t.Errorf("message %d source = %q, want %q", i, sm.Source, SourceFallback)
		}
	}
}

func TestRun_MissingNumber_GetsNeutralDefault(t *testing.T) {
	t.Parallel()

	// Right count, but message 2 is absent (message 1 listed twice).
	entries := []priorityEntry{
		{MessageNumber: 1, Score: 90, Reason: "Outage", Category: string(CategoryNeedsResponse)},
		{MessageNumber: 1, Score: 91, Reason: "Outage again", Category: string(CategoryNeedsResponse)},
	}
	content, _ := json.Marshal(scoringResponse{Priorities: entries})
	provider := &mockProvider{responses: []*CompletionResponse{{
		Content: string(content),
		Model:   openaiTestModel,
		Usage:   Usage{InputTokens: 10, OutputTokens: 5},
	}}}
	engine := NewEngine(provider, nil, Options{}, log.Nop(), EngineHooks{})

	rr := engine.Run(context.Background(), testRecords(2))

	if len(rr.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(rr.Messages))
	}

	first := rr.Messages[0]
	if first.Score != 91 || first.Source != SourceModel {
		t.Errorf("message 1 = (%d, %q), want duplicate-resolved model score", first.Score, first.Source)
	}

	second := rr.Messages[1]
	if second.Score != 50 {
		t.Errorf("message 2 score = %d, want neutral 50", second.Score)
	}
	if second.Reason != "No priority assigned by AI" {
		t.Errorf("message 2 reason = %q", second.Reason)
	}
	if second.Category != CategoryFYI {
		t.Errorf("message 2 category = %q, want %q", second.Category, CategoryFYI)
	}
	if second.Source != SourceModelDefault {
		t.Errorf("message 2 source = %q, want %q", second.Source, SourceModelDefault)
	}
}

func TestRun_BoundsModelScores(t *testing.T) {
	t.Parallel()

	entries := []priorityEntry{
		{MessageNumber: 1, Score: 150, Reason: "Over", Category: string(CategoryNeedsResponse)},
		{MessageNumber: 2, Score: -10, Reason: "Under", Category: string(CategoryLowPriority)},
	}
	content, _ := json.Marshal(scoringResponse{Priorities: entries})
	provider := &mockProvider{responses: []*CompletionResponse{{
		Content: string(content),
		Model:   openaiTestModel,
	}}}
	engine := NewEngine(provider, nil, Options{}, log.Nop(), EngineHooks{})

	rr := engine.Run(context.Background(), testRecords(2))

	if rr.Messages[0].Score != 100 {
		t.Errorf("score = %d, want pinned to 100", rr.Messages[0].Score)
	}
	if rr.Messages[1].Score != 0 {
		t.Errorf("score = %d, want pinned to 0", rr.Messages[1].Score)
	}
}

func TestRun_SplitsIntoBatches(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{responses: []*CompletionResponse{
		validResponse(2, 60),
		validResponse(2, 70),
		validResponse(1, 80),
	}}
	engine := NewEngine(provider, nil, Options{BatchSize: 2}, log.Nop(), EngineHooks{})

	rr := engine.Run(context.Background(), testRecords(5))

	if rr.Batches != 3 {
		t.Errorf("batches = %d, want 3", rr.Batches)
	}
	if len(rr.Messages) != 5 {
		t.Fatalf("messages = %d, want 5", len(rr.Messages))
	}
	// Output preserves input order across batch boundaries.
	for i, sm := range rr.Messages {
		if sm.MessageID != fmt.Sprintf("m-%d", i+1) {
			t.Errorf("message %d out of order: %q", i, sm.MessageID)
		}
	}
	wantScores := []int{60, 60, 70, 70, 80}
	for i, sm := range rr.Messages {
		if sm.Score != wantScores[i] {
			t.Errorf("message %d score = %d, want %d", i, sm.Score, wantScores[i])
		}
	}
}

func TestRun_MixedBatchOutcomes(t *testing.T) {
	t.Parallel()

	// Batch 1 scores on the first try, batch 2 exhausts retries and falls
	// back; one bad batch never contaminates a good one.
	provider := &mockProvider{
		responses: []*CompletionResponse{validResponse(2, 60), nil, nil, nil},
		errs:      []error{nil, errors.New("a"), errors.New("b"), errors.New("c")},
	}
	engine := NewEngine(provider, nil, Options{BatchSize: 2}, log.Nop(), EngineHooks{})

	rr := engine.Run(context.Background(), testRecords(4))

	if rr.Batches != 2 {
		t.Errorf("batches = %d, want 2", rr.Batches)
	}
	if rr.FallbackBatches != 1 {
		t.Errorf("fallback batches = %d, want 1", rr.FallbackBatches)
	}
	if rr.Messages[0].Source != SourceModel || rr.Messages[1].Source != SourceModel {
		t.Error("batch 1 should be model-scored")
	}
	if rr.Messages[2].Source != SourceFallback || rr.Messages[3].Source != SourceFallback {
		t.Error("batch 2 should be fallback-scored")
	}
}

func TestRun_EmptyInput(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{}
	engine := NewEngine(provider, nil, Options{}, log.Nop(), EngineHooks{})

	rr := engine.Run(context.Background(), nil)

	if len(rr.Messages) != 0 {
		t.Errorf("messages = %d, want 0", len(rr.Messages))
	}
	if rr.Batches != 0 {
		t.Errorf("batches = %d, want 0", rr.Batches)
	}
	if provider.calls() != 0 {
		t.Errorf("calls = %d, want 0", provider.calls())
	}
}

func TestRun_AppliesMultipliers(t *testing.T) {
	t.Parallel()

	prefs := NewPreferences("", []string{"alice"}, nil, nil)
	provider := &mockProvider{responses: []*CompletionResponse{validResponse(1, 50)}}
	engine := NewEngine(provider, prefs, Options{}, log.Nop(), EngineHooks{})

	records := []message.Record{{MessageID: "m-1", ChannelName: "general", UserName: "alice", Text: "question"}}
	rr := engine.Run(context.Background(), records)

	sm := rr.Messages[0]
	if sm.Score != 75 {
		t.Errorf("score = %d, want 75 (VIP boost applied)", sm.Score)
	}
	if !strings.Contains(sm.Reason, "VIP ×2.0") {
		t.Errorf("reason = %q, want adjustment trail", sm.Reason)
	}
}

func TestRun_Hooks(t *testing.T) {
	t.Parallel()

	var (
		mu        sync.Mutex
		llmCalls  int
		batchSize int
		attempts  int
		fellBack  bool
		complete  *CompleteEvent
	)

	hooks := EngineHooks{
		OnLLMCall: func(_, _ int, _ float64) {
			mu.Lock()
			llmCalls++
			mu.Unlock()
		},
		OnBatch: func(size, a int, fb bool) {
			mu.Lock()
			batchSize, attempts, fellBack = size, a, fb
			mu.Unlock()
		},
		OnComplete: func(e *CompleteEvent) {
			mu.Lock()
			complete = e
			mu.Unlock()
		},
	}

	provider := &mockProvider{
		responses: []*CompletionResponse{
			{Content: "garbage", Model: openaiTestModel, Usage: Usage{InputTokens: 10, OutputTokens: 5}},
			validResponse(2, 60),
		},
	}
	engine := NewEngine(provider, nil, Options{}, log.Nop(), hooks)

	engine.Run(context.Background(), testRecords(2))

	mu.Lock()
	defer mu.Unlock()

	if llmCalls != 2 {
		t.Errorf("OnLLMCall calls = %d, want 2", llmCalls)
	}
	if batchSize != 2 || attempts != 2 || fellBack {
		t.Errorf("OnBatch = (%d, %d, %v), want (2, 2, false)", batchSize, attempts, fellBack)
	}
	if complete == nil {
		t.Fatal("OnComplete not called")
	}
	if complete.Messages != 2 || complete.Batches != 1 || complete.FallbackBatches != 0 {
		t.Errorf("CompleteEvent = %+v", complete)
	}
	if complete.TokensIn != 110 || complete.TokensOut != 55 {
		t.Errorf("CompleteEvent tokens = (%d, %d), want (110, 55)", complete.TokensIn, complete.TokensOut)
	}
	if complete.Model != openaiTestModel {
		t.Errorf("CompleteEvent model = %q, want %q", complete.Model, openaiTestModel)
	}
}

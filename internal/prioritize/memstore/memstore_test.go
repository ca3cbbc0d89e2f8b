package memstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/linnemanlabs/sift/internal/message"
	"github.com/linnemanlabs/sift/internal/prioritize"
)

func scored(id, messageID string, score int, category prioritize.Category, ts time.Time) *prioritize.ScoredMessage {
	return &prioritize.ScoredMessage{
		ID: id,
		Record: message.Record{
			MessageID: messageID,
			Text:      "text for " + messageID,
			Timestamp: ts,
		},
		Status:   prioritize.StatusScored,
		Score:    score,
		Category: category,
		Source:   prioritize.SourceModel,
	}
}

func TestPutGet(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	sm := scored("id-1", "m-1", 80, prioritize.CategoryNeedsResponse, time.Now())
	if err := s.Put(ctx, sm); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.Get(ctx, "id-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected message to be found")
	}
	if got.Score != 80 {
		t.Errorf("score = %d, want 80", got.Score)
	}

	// Returned value is a copy; mutating it must not affect the store.
	got.Score = 1
	again, _, _ := s.Get(ctx, "id-1")
	if again.Score != 80 {
		t.Errorf("stored score = %d after mutating a copy, want 80", again.Score)
	}
}

func TestGet_Missing(t *testing.T) {
	t.Parallel()

	s := New()
	_, ok, err := s.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("expected ok=false for missing ID")
	}
}

func TestGetByMessageID(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	sm := scored("id-1", "m-1", 70, prioritize.CategoryHighPriority, time.Now())
	if err := s.Put(ctx, sm); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.GetByMessageID(ctx, "m-1")
	if err != nil {
		t.Fatalf("GetByMessageID: %v", err)
	}
	if !ok {
		t.Fatal("expected message to be found by upstream ID")
	}
	if got.ID != "id-1" {
		t.Errorf("ID = %q, want id-1", got.ID)
	}

	if _, ok, _ := s.GetByMessageID(ctx, "unseen"); ok {
		t.Error("expected ok=false for unseen message ID")
	}
}

func TestPut_UpdatesExisting(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	pending := scored("id-1", "m-1", 0, "", time.Now())
	pending.Status = prioritize.StatusPending
	if err := s.Put(ctx, pending); err != nil {
		t.Fatalf("Put pending: %v", err)
	}

	final := scored("id-1", "m-1", 85, prioritize.CategoryNeedsResponse, time.Now())
	if err := s.Put(ctx, final); err != nil {
		t.Fatalf("Put scored: %v", err)
	}

	got, _, _ := s.Get(ctx, "id-1")
	if got.Status != prioritize.StatusScored {
		t.Errorf("status = %q, want scored after update", got.Status)
	}
	if got.Score != 85 {
		t.Errorf("score = %d, want 85", got.Score)
	}
}

func TestList_SortsByScoreDescending(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	now := time.Now()

	for i, score := range []int{40, 95, 72} {
		sm := scored(fmt.Sprintf("id-%d", i), fmt.Sprintf("m-%d", i), score, prioritize.Classify(score), now)
		if err := s.Put(ctx, sm); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	got, err := s.List(ctx, prioritize.ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	wantScores := []int{95, 72, 40}
	for i, sm := range got {
		if sm.Score != wantScores[i] {
			t.Errorf("position %d score = %d, want %d", i, sm.Score, wantScores[i])
		}
	}
}

func TestList_TiesBreakOnRecency(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := old.Add(time.Hour)

	_ = s.Put(ctx, scored("id-old", "m-old", 80, prioritize.CategoryNeedsResponse, old))
	_ = s.Put(ctx, scored("id-new", "m-new", 80, prioritize.CategoryNeedsResponse, recent))

	got, err := s.List(ctx, prioritize.ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got[0].ID != "id-new" {
		t.Errorf("first = %q, want newer message on score tie", got[0].ID)
	}
}

func TestList_Filters(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	now := time.Now()

	_ = s.Put(ctx, scored("id-1", "m-1", 95, prioritize.CategoryNeedsResponse, now))
	_ = s.Put(ctx, scored("id-2", "m-2", 75, prioritize.CategoryHighPriority, now))
	_ = s.Put(ctx, scored("id-3", "m-3", 55, prioritize.CategoryFYI, now))

	pending := scored("id-4", "m-4", 0, "", now)
	pending.Status = prioritize.StatusPending
	_ = s.Put(ctx, pending)

	byCategory, err := s.List(ctx, prioritize.ListFilter{Category: prioritize.CategoryHighPriority})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(byCategory) != 1 || byCategory[0].ID != "id-2" {
		t.Errorf("category filter = %v, want only id-2", byCategory)
	}

	byScore, err := s.List(ctx, prioritize.ListFilter{MinScore: 70})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(byScore) != 2 {
		t.Errorf("min score filter len = %d, want 2", len(byScore))
	}

	limited, err := s.List(ctx, prioritize.ListFilter{Limit: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(limited) != 1 || limited[0].Score != 95 {
		t.Errorf("limit filter = %v, want top scorer only", limited)
	}

	// Pending messages never appear in the inbox.
	all, _ := s.List(ctx, prioritize.ListFilter{})
	for _, sm := range all {
		if sm.Status != prioritize.StatusScored {
			t.Errorf("list included non-scored message %q", sm.ID)
		}
	}
}

func TestListPending(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	now := time.Now()

	_ = s.Put(ctx, scored("id-1", "m-1", 90, prioritize.CategoryNeedsResponse, now))

	older := scored("id-2", "m-2", 0, "", now)
	older.Status = prioritize.StatusPending
	older.CreatedAt = now.Add(-2 * time.Hour)
	_ = s.Put(ctx, older)

	newer := scored("id-3", "m-3", 0, "", now)
	newer.Status = prioritize.StatusPending
	newer.CreatedAt = now.Add(-time.Hour)
	_ = s.Put(ctx, newer)

	got, err := s.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "id-2" || got[1].ID != "id-3" {
		t.Errorf("order = [%s %s], want oldest first", got[0].ID, got[1].ID)
	}

	// Returned values are copies.
	got[0].Status = prioritize.StatusScored
	again, _ := s.ListPending(ctx)
	if len(again) != 2 {
		t.Errorf("len = %d after mutating a copy, want 2", len(again))
	}
}

func TestListPending_Empty(t *testing.T) {
	t.Parallel()

	got, err := New().ListPending(context.Background())
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestStats(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	now := time.Now()

	_ = s.Put(ctx, scored("id-1", "m-1", 90, prioritize.CategoryNeedsResponse, now))
	_ = s.Put(ctx, scored("id-2", "m-2", 70, prioritize.CategoryHighPriority, now))
	_ = s.Put(ctx, scored("id-3", "m-3", 50, prioritize.CategoryFYI, now))

	pending := scored("id-4", "m-4", 0, "", now)
	pending.Status = prioritize.StatusPending
	_ = s.Put(ctx, pending)

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 4 {
		t.Errorf("Total = %d, want 4", stats.Total)
	}
	if stats.Pending != 1 {
		t.Errorf("Pending = %d, want 1", stats.Pending)
	}
	if stats.ByCategory[prioritize.CategoryNeedsResponse] != 1 {
		t.Errorf("needs_response count = %d, want 1", stats.ByCategory[prioritize.CategoryNeedsResponse])
	}
	if stats.AverageScore != 70 {
		t.Errorf("AverageScore = %v, want 70", stats.AverageScore)
	}
}

func TestStats_Empty(t *testing.T) {
	t.Parallel()

	stats, err := New().Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 0 || stats.Pending != 0 || stats.AverageScore != 0 {
		t.Errorf("stats = %+v, want zeros", stats)
	}
}

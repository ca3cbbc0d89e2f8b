// Package memstore provides an in-memory implementation of prioritize.Store.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/linnemanlabs/sift/internal/prioritize"
)

// defaultListLimit bounds List results when the filter doesn't set one.
const defaultListLimit = 100

// Store holds scored messages in memory. Suitable for dev/testing.
type Store struct {
	mu       sync.RWMutex
	messages map[string]*prioritize.ScoredMessage // sift ID -> message
	seen     map[string]string                    // upstream message ID -> sift ID (dedup)
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		messages: make(map[string]*prioritize.ScoredMessage),
		seen:     make(map[string]string),
	}
}

// Get retrieves a scored message by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*prioritize.ScoredMessage, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, false, nil
	}
	cp := *m
	return &cp, true, nil
}

// GetByMessageID retrieves a scored message by its upstream message ID, for
// deduplication. Returns a copy.
func (s *Store) GetByMessageID(_ context.Context, messageID string) (*prioritize.ScoredMessage, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.seen[messageID]
	if !ok {
		return nil, false, nil
	}
	m := s.messages[id]
	cp := *m
	return &cp, true, nil
}

// Put stores a copy of the scored message.
func (s *Store) Put(_ context.Context, m *prioritize.ScoredMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.messages[m.ID] = &cp
	s.seen[m.MessageID] = m.ID
	return nil
}

// List returns scored messages matching the filter, highest score first.
// Pending messages are excluded.
func (s *Store) List(_ context.Context, f prioritize.ListFilter) ([]*prioritize.ScoredMessage, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	s.mu.RLock()
	matched := make([]*prioritize.ScoredMessage, 0, len(s.messages))
	for _, m := range s.messages {
		if m.Status != prioritize.StatusScored {
			continue
		}
		if f.Category != "" && m.Category != f.Category {
			continue
		}
		if m.Score < f.MinScore {
			continue
		}
		cp := *m
		matched = append(matched, &cp)
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Score != matched[j].Score {
			return matched[i].Score > matched[j].Score
		}
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// ListPending returns messages awaiting a score, oldest first.
func (s *Store) ListPending(_ context.Context) ([]*prioritize.ScoredMessage, error) {
	s.mu.RLock()
	var out []*prioritize.ScoredMessage
	for _, m := range s.messages {
		if m.Status != prioritize.StatusPending {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Stats returns inbox summary counts.
func (s *Store) Stats(_ context.Context) (*prioritize.InboxStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &prioritize.InboxStats{
		ByCategory: make(map[prioritize.Category]int),
	}

	var scoreSum int
	var scored int

	for _, m := range s.messages {
		stats.Total++
		if m.Status != prioritize.StatusScored {
			stats.Pending++
			continue
		}
		scored++
		scoreSum += m.Score
		stats.ByCategory[m.Category]++
	}

	if scored > 0 {
		stats.AverageScore = float64(scoreSum) / float64(scored)
	}
	return stats, nil
}

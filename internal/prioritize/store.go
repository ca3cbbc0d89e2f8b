package prioritize

import "context"

// ListFilter narrows inbox listings. Zero values mean "no filter"; Limit 0
// falls back to the store's default.
type ListFilter struct {
	Category Category
	MinScore int
	Limit    int
}

// InboxStats summarizes the scored inbox.
type InboxStats struct {
	Total        int              `json:"total"`
	Pending      int              `json:"pending"`
	ByCategory   map[Category]int `json:"by_category"`
	AverageScore float64          `json:"average_score"`
}

// Store is the persistence interface for scored messages.
type Store interface {
	Get(ctx context.Context, id string) (*ScoredMessage, bool, error)
	GetByMessageID(ctx context.Context, messageID string) (*ScoredMessage, bool, error)
	Put(ctx context.Context, m *ScoredMessage) error
	List(ctx context.Context, f ListFilter) ([]*ScoredMessage, error)
	// ListPending returns messages still awaiting a score, oldest first.
	// Used to recover rows stranded by an interrupted run.
	ListPending(ctx context.Context) ([]*ScoredMessage, error)
	Stats(ctx context.Context) (*InboxStats, error)
}

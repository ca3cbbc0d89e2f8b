package prioritize

// Category is one of four ordinal triage buckets, derived solely from the
// final numeric score.
type Category string

const (
	CategoryNeedsResponse Category = "needs_response"
	CategoryHighPriority  Category = "high_priority"
	CategoryFYI           Category = "fyi"
	CategoryLowPriority   Category = "low_priority"
)

// Category thresholds. A score at or above the threshold lands in the bucket.
const (
	NeedsResponseThreshold = 80
	HighPriorityThreshold  = 70
	FYIThreshold           = 50
)

// Classify maps a final score to its category.
func Classify(score int) Category {
	switch {
	case score >= NeedsResponseThreshold:
		return CategoryNeedsResponse
	case score >= HighPriorityThreshold:
		return CategoryHighPriority
	case score >= FYIThreshold:
		return CategoryFYI
	default:
		return CategoryLowPriority
	}
}

// Valid reports whether c is one of the four known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryNeedsResponse, CategoryHighPriority, CategoryFYI, CategoryLowPriority:
		return true
	}
	return false
}

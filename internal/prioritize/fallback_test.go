package prioritize

import "testing"

func TestFallbackScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		text         string
		wantScore    int
		wantCategory Category
	}{
		{"urgent keyword", "this is URGENT please respond", 90, CategoryNeedsResponse},
		{"asap keyword", "need this done asap", 90, CategoryNeedsResponse},
		{"blocking keyword", "this is blocking the release", 90, CategoryNeedsResponse},
		{"mention marker", "hey @alice can you look", 85, CategoryNeedsResponse},
		{"production keyword", "production deploy finished", 80, CategoryHighPriority},
		{"down keyword", "service is down", 80, CategoryHighPriority},
		{"decision keyword", "we need a decision on this", 75, CategoryHighPriority},
		{"review keyword", "please review my PR", 75, CategoryHighPriority},
		{"fyi keyword", "fyi the meeting moved", 40, CategoryFYI},
		{"casual keyword", "anyone up for lunch?", 20, CategoryLowPriority},
		{"no match", "quarterly numbers look fine", 50, CategoryFYI},
		{"empty text", "", 50, CategoryFYI},
		{"case insensitive", "EMERGENCY in the datacenter", 90, CategoryNeedsResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			score, reason, category := fallbackScore(tt.text)
			if score != tt.wantScore {
				t.Errorf("score = %d, want %d", score, tt.wantScore)
			}
			if category != tt.wantCategory {
				t.Errorf("category = %q, want %q", category, tt.wantCategory)
			}
			if reason == "" {
				t.Error("expected non-empty reason")
			}
		})
	}
}

func TestFallbackScore_RuleOrder(t *testing.T) {
	t.Parallel()

	// Urgent language outranks a mention marker, which outranks
	// production noise.
	score, _, _ := fallbackScore("urgent: @bob production is down")
	if score != 90 {
		t.Errorf("score = %d, want 90 (urgent rule wins)", score)
	}

	score, _, _ = fallbackScore("@bob production is down")
	if score != 85 {
		t.Errorf("score = %d, want 85 (mention rule wins over production)", score)
	}
}

func TestFallbackScore_Deterministic(t *testing.T) {
	t.Parallel()

	text := "please review the urgent production issue"
	s1, r1, c1 := fallbackScore(text)
	for range 10 {
		s2, r2, c2 := fallbackScore(text)
		if s1 != s2 || r1 != r2 || c1 != c2 {
			t.Fatalf("fallbackScore not deterministic: (%d,%q,%q) vs (%d,%q,%q)", s1, r1, c1, s2, r2, c2)
		}
	}
}

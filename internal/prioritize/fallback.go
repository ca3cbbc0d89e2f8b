package prioritize

import "strings"

// fallbackRule is one keyword heuristic. Rules are evaluated in order and
// the first match wins.
type fallbackRule struct {
	keywords []string
	score    int
	reason   string
	category Category
}

// fallbackRules covers the common urgency signals. The ordering encodes
// precedence: urgent language beats mention markers beats production noise.
var fallbackRules = []fallbackRule{
	{[]string{"urgent", "asap", "emergency", "critical", "blocking"}, 90, "Contains urgent keywords", CategoryNeedsResponse},
	{[]string{"@", "mention"}, 85, "Contains @mention", CategoryNeedsResponse},
	{[]string{"production", "down", "error", "issue"}, 80, "Production-related keywords", CategoryHighPriority},
	{[]string{"decision", "approval", "review"}, 75, "Decision required", CategoryHighPriority},
	{[]string{"fyi", "update", "reminder"}, 40, "Informational", CategoryFYI},
	{[]string{"lol", "coffee", "lunch", "casual"}, 20, "Casual conversation", CategoryLowPriority},
}

// fallbackScore is the deterministic keyword scorer used when the model is
// unavailable. Identical text always yields identical output; no network.
func fallbackScore(text string) (score int, reason string, category Category) {
	lower := strings.ToLower(text)

	for _, rule := range fallbackRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.score, rule.reason, rule.category
			}
		}
	}

	return 50, "Fallback prioritization", CategoryFYI
}

// Package model defines the core domain models used throughout the application.
package model

// CategoryMatch holds the tags one category contributed to a result.
type CategoryMatch struct {
	Category   Category `json:"category"`
	Tags       []string `json:"tags"`
	RuleIDs    []string `json:"rule_ids"`
	Confidence float64  `json:"confidence"`
}

// ClassificationResult is the outcome of classifying one recipe.
// Categories without a match are absent.
type ClassificationResult struct {
	Matches    []CategoryMatch `json:"matches"`
	FiredRules []string        `json:"fired_rules"`
	Confidence float64         `json:"confidence"`
	Escalated  bool            `json:"escalated,omitempty"`
}

// Match returns the match for a category, if any.
func (r ClassificationResult) Match(c Category) (CategoryMatch, bool) {
	for _, m := range r.Matches {
		if m.Category == c {
			return m, true
		}
	}
	return CategoryMatch{}, false
}

// Tags returns the tags matched for a category.
func (r ClassificationResult) Tags(c Category) []string {
	m, ok := r.Match(c)
	if !ok {
		return nil
	}
	return m.Tags
}

// Empty reports whether nothing matched.
func (r ClassificationResult) Empty() bool {
	return len(r.Matches) == 0
}

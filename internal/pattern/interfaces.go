// Package pattern compiles declarative tagging rules and classifies recipes against them.
package pattern

import (
	"regexp"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
)

// Classifier assigns tags to a recipe.
type Classifier interface {
	// Classify evaluates the recipe and returns the matched tags per category.
	Classify(recipe *model.Recipe) model.ClassificationResult
}

// Rule is a compiled rule. The embedded model.Rule is never mutated.
type Rule struct {
	include *regexp.Regexp
	exclude *regexp.Regexp
	model.Rule
}

// Section holds the rules of one category in evaluation order.
type Section struct {
	Category model.Category
	Rules    []Rule
}

// RuleSet is an immutable, compiled rule document.
type RuleSet struct {
	Source   string
	Sections []Section
}

// Len returns the number of compiled rules.
func (rs *RuleSet) Len() int {
	n := 0
	for _, s := range rs.Sections {
		n += len(s.Rules)
	}
	return n
}

// Section returns the rules of a category.
func (rs *RuleSet) Section(c model.Category) (Section, bool) {
	for _, s := range rs.Sections {
		if s.Category == c {
			return s, true
		}
	}
	return Section{}, false
}

// Vocabulary returns the distinct tags each category can produce,
// in evaluation order.
func (rs *RuleSet) Vocabulary() map[model.Category][]string {
	vocab := make(map[model.Category][]string, len(rs.Sections))
	for _, s := range rs.Sections {
		seen := make(map[string]bool, len(s.Rules))
		for _, r := range s.Rules {
			if seen[r.Tag] {
				continue
			}
			seen[r.Tag] = true
			vocab[s.Category] = append(vocab[s.Category], r.Tag)
		}
	}
	return vocab
}

// Classify implements Classifier.
func (rs *RuleSet) Classify(recipe *model.Recipe) model.ClassificationResult {
	return Classify(recipe, rs)
}

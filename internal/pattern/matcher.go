package pattern

import (
	"math"
	"strings"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
)

// segments is the normalized recipe text, split per scope.
type segments map[model.Scope][]string

func buildSegments(r *model.Recipe) segments {
	seg := make(segments, 4)

	for _, ing := range r.Ingredients {
		if s := Normalize(ing.Food + " " + ing.Text()); s != "" {
			seg[model.ScopeIngredients] = append(seg[model.ScopeIngredients], s)
		}
	}
	for _, step := range r.Instructions {
		if s := Normalize(step); s != "" {
			seg[model.ScopeInstructions] = append(seg[model.ScopeInstructions], s)
		}
	}
	if s := Normalize(r.Name + " " + strings.ReplaceAll(r.Slug, "-", " ")); s != "" {
		seg[model.ScopeTitle] = []string{s}
	}

	all := make([]string, 0, len(seg[model.ScopeIngredients])+len(seg[model.ScopeInstructions])+2)
	all = append(all, seg[model.ScopeTitle]...)
	if s := Normalize(r.Description); s != "" {
		all = append(all, s)
	}
	all = append(all, seg[model.ScopeIngredients]...)
	all = append(all, seg[model.ScopeInstructions]...)
	seg[model.ScopeAll] = all

	return seg
}

// hit is a fired rule with its score.
type hit struct {
	rule  *Rule
	score float64
}

// evaluate returns whether the rule fires and the length of its longest match.
// An exclusion discards only the segment it matches, so "chicken broth" on
// one line does not hide "chicken thighs" on the next.
func (r *Rule) evaluate(seg segments) (bool, int) {
	count, longest := 0, 0
	for _, s := range seg[r.Scope] {
		if r.exclude != nil && r.exclude.MatchString(s) {
			continue
		}
		for _, loc := range r.include.FindAllStringIndex(s, -1) {
			count++
			if n := loc[1] - loc[0]; n > longest {
				longest = n
			}
		}
	}
	return count >= r.MinMatches, longest
}

// score favors longer, more specific matches.
func score(weight float64, length int) float64 {
	l := float64(length)
	return math.Min(1, weight*l/(l+4))
}

// better reports whether a should replace b as the single value of a category.
func better(a, b *Rule) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.Weight != b.Weight {
		return a.Weight > b.Weight
	}
	return a.Order < b.Order
}

// Classify applies the rule set to a recipe. It has no side effects and
// returns identical results for identical input.
func Classify(r *model.Recipe, rs *RuleSet) model.ClassificationResult {
	var result model.ClassificationResult
	if r == nil || rs == nil {
		return result
	}

	seg := buildSegments(r)

	for i := range rs.Sections {
		section := &rs.Sections[i]

		// Course only fills in recipes that have no categories yet.
		if section.Category == model.CategoryCourse && len(r.Categories) > 0 {
			continue
		}

		var hits []hit
		for j := range section.Rules {
			rule := &section.Rules[j]
			fired, longest := rule.evaluate(seg)
			if !fired {
				continue
			}
			hits = append(hits, hit{rule: rule, score: score(rule.Weight, longest)})
		}
		if len(hits) == 0 {
			continue
		}

		if section.Category.SingleValued() {
			best := hits[0]
			for _, h := range hits[1:] {
				if better(h.rule, best.rule) {
					best = h
				}
			}
			hits = []hit{best}
		}

		match := model.CategoryMatch{Category: section.Category}
		miss := 1.0
		for _, h := range hits {
			if !containsTag(match.Tags, h.rule.Tag) {
				match.Tags = append(match.Tags, h.rule.Tag)
			}
			match.RuleIDs = append(match.RuleIDs, h.rule.ID)
			miss *= 1 - h.score
		}
		match.Confidence = 1 - miss

		result.Matches = append(result.Matches, match)
		result.FiredRules = append(result.FiredRules, match.RuleIDs...)
		if match.Confidence > result.Confidence {
			result.Confidence = match.Confidence
		}
	}

	return result
}

// Plan turns a result into the additions the recipe does not already have.
func Plan(r *model.Recipe, result model.ClassificationResult) model.TagUpdate {
	var update model.TagUpdate
	for _, m := range result.Matches {
		for _, tag := range m.Tags {
			update.Add(m.Category.Target(), tag)
		}
	}
	return update.Without(r)
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

package pattern

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/common"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
)

const (
	defaultWeight     = 1.0
	defaultMinMatches = 1
)

// Compile validates a Document and compiles every pattern once.
// Section order in the document fixes the tie-break order of the result.
func Compile(doc *Document, source string) (*RuleSet, error) {
	if doc == nil || len(doc.Categories) == 0 {
		return nil, common.NewConfigError(source, "empty rule document")
	}

	rs := &RuleSet{Source: source}
	seenCategory := make(map[model.Category]bool)
	seenID := make(map[string]bool)
	order := 0

	for _, sec := range doc.Categories {
		category, err := model.ParseCategory(sec.Category)
		if err != nil {
			return nil, common.NewConfigError(source, "%v", err)
		}
		if seenCategory[category] {
			return nil, common.NewConfigError(source, "duplicate section for category %q", category)
		}
		seenCategory[category] = true

		section := Section{Category: category, Rules: make([]Rule, 0, len(sec.Rules))}
		for i, rd := range sec.Rules {
			rule, err := compileRule(category, i, order, rd)
			if err != nil {
				return nil, common.NewConfigError(source, "%s: %v", ruleLocation(string(category), i), err)
			}
			if seenID[rule.ID] {
				return nil, common.NewConfigError(source, "%s: duplicate rule id %q", ruleLocation(string(category), i), rule.ID)
			}
			seenID[rule.ID] = true
			section.Rules = append(section.Rules, rule)
			order++
		}

		// Declaration order breaks priority ties.
		sort.SliceStable(section.Rules, func(a, b int) bool {
			return section.Rules[a].Priority > section.Rules[b].Priority
		})
		rs.Sections = append(rs.Sections, section)
	}

	return rs, nil
}

func compileRule(category model.Category, index, order int, rd RuleDoc) (Rule, error) {
	if strings.TrimSpace(rd.Pattern) == "" {
		return Rule{}, fmt.Errorf("empty pattern")
	}
	tag := strings.TrimSpace(rd.Tag)
	if tag == "" {
		return Rule{}, fmt.Errorf("empty tag")
	}

	weight := defaultWeight
	if rd.Weight != nil {
		weight = *rd.Weight
	}
	if weight < 0 {
		return Rule{}, fmt.Errorf("negative weight %v", weight)
	}

	minMatches := rd.MinMatches
	if minMatches < 0 {
		return Rule{}, fmt.Errorf("negative min_matches %d", minMatches)
	}
	if minMatches == 0 {
		minMatches = defaultMinMatches
	}

	scope, err := model.ParseScope(rd.Scope)
	if err != nil {
		return Rule{}, err
	}
	if scope == "" {
		scope = category.DefaultScope()
	}

	include, err := compilePattern(rd.Pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("invalid pattern %q: %w", rd.Pattern, err)
	}

	var exclude *regexp.Regexp
	if strings.TrimSpace(rd.Exclude) != "" {
		exclude, err = compilePattern(rd.Exclude)
		if err != nil {
			return Rule{}, fmt.Errorf("invalid exclude %q: %w", rd.Exclude, err)
		}
	}

	id := strings.TrimSpace(rd.ID)
	if id == "" {
		id = fmt.Sprintf("%s.%d", category, index+1)
	}

	return Rule{
		Rule: model.Rule{
			ID:         id,
			Category:   category,
			Pattern:    rd.Pattern,
			Exclude:    rd.Exclude,
			Tag:        tag,
			Scope:      scope,
			Weight:     weight,
			Priority:   rd.Priority,
			MinMatches: minMatches,
			Order:      order,
		},
		include: include,
		exclude: exclude,
	}, nil
}

// compilePattern wraps p in word boundaries and makes it case-insensitive.
// Postgres-style \y boundaries are accepted as \b.
func compilePattern(p string) (*regexp.Regexp, error) {
	p = strings.ReplaceAll(p, `\y`, `\b`)
	p = FoldAccents(strings.TrimSpace(p))
	return regexp.Compile(`(?i)\b(?:` + p + `)\b`)
}

// Package classification detects recipes that are not really recipes:
// imported junk pages and recipes with broken instructions.
package classification

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
)

// FindingType names the kind of problem found in a recipe.
type FindingType string

const (
	// FindingJunk marks non-recipe content such as product pages or beauty tips.
	FindingJunk FindingType = "junk"
	// FindingListicle marks "10 best ..." style articles.
	FindingListicle FindingType = "listicle"
	// FindingNonRecipeURL marks imports from site pages that never hold recipes.
	FindingNonRecipeURL FindingType = "non-recipe-url"
	// FindingBrokenInstructions marks recipes with empty or undetected instructions.
	FindingBrokenInstructions FindingType = "broken-instructions"
)

// Review tags applied instead of deleting a recipe.
const (
	ReviewTagJunk         = "Review: Junk Content"
	ReviewTagInstructions = "Review: Broken Instructions"
)

// ReviewTag returns the tag that flags a finding of this type.
func (t FindingType) ReviewTag() string {
	if t == FindingBrokenInstructions {
		return ReviewTagInstructions
	}
	return ReviewTagJunk
}

// Field selects which part of the recipe a pattern inspects.
type Field string

const (
	// FieldTitle matches the recipe name and the last path segment of its source URL.
	FieldTitle Field = "title"
	// FieldURL matches the full source URL.
	FieldURL Field = "url"
)

// Pattern represents a junk-detection pattern.
type Pattern struct {
	Name       string
	Type       FindingType
	Field      Field
	Regex      string
	Priority   int     // Higher priority patterns are checked first
	Confidence float64 // Confidence when the pattern matches (0.0-1.0)
}

// CompiledPattern holds a compiled regex pattern with metadata.
type CompiledPattern struct {
	compiledRegex *regexp.Regexp
	Pattern
}

// Finding is one problem detected in a recipe.
type Finding struct {
	Type       FindingType
	Reason     string
	Confidence float64
}

// PatternDetector inspects recipes for junk content and broken instructions.
type PatternDetector struct {
	patterns []CompiledPattern
}

// NewPatternDetector creates a new pattern detector with the given patterns.
func NewPatternDetector(patterns []Pattern) (*PatternDetector, error) {
	compiled := make([]CompiledPattern, 0, len(patterns))

	for _, p := range patterns {
		regexStr := p.Regex
		if !strings.HasPrefix(regexStr, "(?i)") {
			regexStr = "(?i)" + regexStr
		}

		regex, err := regexp.Compile(regexStr)
		if err != nil {
			return nil, fmt.Errorf("failed to compile pattern %s: %w", p.Name, err)
		}

		compiled = append(compiled, CompiledPattern{
			Pattern:       p,
			compiledRegex: regex,
		})
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].Priority > compiled[j].Priority
	})

	return &PatternDetector{patterns: compiled}, nil
}

// Inspect returns every problem found in the recipe, highest priority first.
// Junk checks apply only to imported recipes, those with a source URL.
func (pd *PatternDetector) Inspect(r *model.Recipe) []Finding {
	var findings []Finding

	if r.OrgURL != "" {
		title := strings.ToLower(r.Name) + "\n" + urlSlug(r.OrgURL)
		fullURL := strings.ToLower(r.OrgURL)

		for _, p := range pd.patterns {
			text := title
			if p.Field == FieldURL {
				text = fullURL
			}
			if p.compiledRegex.MatchString(text) {
				findings = append(findings, Finding{
					Type:       p.Type,
					Reason:     p.Name,
					Confidence: p.Confidence,
				})
				break
			}
		}
	}

	if !ValidInstructions(r.Instructions) {
		findings = append(findings, Finding{
			Type:       FindingBrokenInstructions,
			Reason:     "empty or broken instructions",
			Confidence: 1.0,
		})
	}

	return findings
}

// PlanReview returns the review tags for findings the recipe is not yet flagged with.
func PlanReview(r *model.Recipe, findings []Finding) model.TagUpdate {
	var update model.TagUpdate
	for _, f := range findings {
		update.Add(model.TargetTags, f.Type.ReviewTag())
	}
	return update.Without(r)
}

// ValidInstructions reports whether at least one step carries real text.
func ValidInstructions(steps []string) bool {
	var nonEmpty []string
	for _, s := range steps {
		if strings.TrimSpace(s) != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	if len(nonEmpty) == 0 {
		return false
	}
	if len(nonEmpty) == 1 && strings.Contains(strings.ToLower(nonEmpty[0]), "could not detect") {
		return false
	}
	return true
}

// GetPatternCount returns the number of loaded patterns.
func (pd *PatternDetector) GetPatternCount() int {
	return len(pd.patterns)
}

// urlSlug returns the last path segment of a URL with dashes as spaces.
func urlSlug(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	slug := path.Base(strings.Trim(u.Path, "/"))
	if slug == "." || slug == "/" {
		return ""
	}
	return strings.ToLower(strings.ReplaceAll(slug, "-", " "))
}

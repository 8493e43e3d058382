package classification

import (
	"regexp"
	"strings"
)

// highRiskKeywords appear in the titles of pages that are not recipes.
var highRiskKeywords = []string{
	"cleaning", "storing", "freezing", "pantry", "kitchen tools",
	"review", "giveaway", "shop", "store", "product", "gift", "unboxing",
	"news", "travel", "podcast", "interview", "night cream", "face mask",
	"skin care", "beauty", "diy", "weekly plan", "menu", "holiday guide",
	"foods to try", "things to eat", "detox water", "lose weight",
}

// nonRecipePaths appear in URLs of site pages that never hold recipes.
var nonRecipePaths = []string{"privacy-policy", "contact", "about-us", "login", "cart"}

// DefaultPatterns returns the default set of junk-detection patterns.
func DefaultPatterns() []Pattern {
	patterns := []Pattern{
		{
			Name:       "listicle title",
			Type:       FindingListicle,
			Field:      FieldTitle,
			Regex:      `(?m)^\d+\s+(best|top|must|favorite|easy|healthy|quick|ways|things)\b`,
			Priority:   90,
			Confidence: 0.9,
		},
	}

	for _, p := range nonRecipePaths {
		patterns = append(patterns, Pattern{
			Name:       "non-recipe page: " + p,
			Type:       FindingNonRecipeURL,
			Field:      FieldURL,
			Regex:      regexp.QuoteMeta(p),
			Priority:   80,
			Confidence: 0.85,
		})
	}

	for _, kw := range highRiskKeywords {
		words := strings.Fields(kw)
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		patterns = append(patterns, Pattern{
			Name:       "keyword: " + kw,
			Type:       FindingJunk,
			Field:      FieldTitle,
			Regex:      `\b` + strings.Join(words, `[\s-]+`) + `\b`,
			Priority:   50,
			Confidence: 0.7,
		})
	}

	return patterns
}

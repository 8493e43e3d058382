package model

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/common"
)

// Recipe is a single record owned by the external recipe manager.
// The pipeline reads and annotates recipes; it never creates or deletes them.
type Recipe struct {
	ID           string
	Slug         string
	Name         string
	Description  string
	OrgURL       string
	Ingredients  []Ingredient
	Instructions []string
	Tags         []string
	Categories   []string
	Tools        []string
}

// Ingredient is one ingredient line as stored by the recipe manager.
type Ingredient struct {
	ReferenceID  string
	Note         string
	OriginalText string
	Unit         string
	Food         string
	Quantity     float64
}

// Text returns the raw text of the line, preferring the original input.
func (i Ingredient) Text() string {
	if strings.TrimSpace(i.OriginalText) != "" {
		return i.OriginalText
	}
	return i.Note
}

// IsUnparsed reports whether the line is free text with no structure attached.
func (i Ingredient) IsUnparsed() bool {
	return strings.TrimSpace(i.Text()) != "" && i.Food == "" && i.Unit == ""
}

// ParsedIngredient is the structured replacement for one unparsed line.
type ParsedIngredient struct {
	Input      string
	Unit       string
	Food       string
	Note       string
	Index      int
	Quantity   float64
	Confidence float64
}

// ValidateParsed checks parsed lines against a recipe with the given number
// of ingredient lines before anything is written.
func ValidateParsed(parsed []ParsedIngredient, lines int) error {
	seen := make(map[int]bool, len(parsed))
	for _, p := range parsed {
		if p.Index < 0 || p.Index >= lines {
			return fmt.Errorf("%w: ingredient index %d out of range", common.ErrValidation, p.Index)
		}
		if seen[p.Index] {
			return fmt.Errorf("%w: ingredient index %d given twice", common.ErrValidation, p.Index)
		}
		seen[p.Index] = true
		if strings.TrimSpace(p.Food) == "" && strings.TrimSpace(p.Unit) == "" {
			return fmt.Errorf("%w: ingredient %d has neither food nor unit", common.ErrValidation, p.Index)
		}
	}
	return nil
}

// Parsed reports whether every ingredient line carries structure.
func (r *Recipe) Parsed() bool {
	return len(r.UnparsedLines()) == 0
}

// UnparsedLines returns the indexes of ingredient lines that need parsing.
func (r *Recipe) UnparsedLines() []int {
	var idx []int
	for i, ing := range r.Ingredients {
		if ing.IsUnparsed() {
			idx = append(idx, i)
		}
	}
	return idx
}

// HasTag reports whether the recipe already carries a tag, case-insensitively.
func (r *Recipe) HasTag(name string) bool {
	return containsFold(r.Tags, name)
}

// ContentHash identifies the classifiable content of the recipe.
// It is stable across runs and changes whenever any classified text changes.
func (r *Recipe) ContentHash() string {
	var b strings.Builder
	b.WriteString(r.Slug)
	b.WriteString("\x00")
	b.WriteString(r.Name)
	b.WriteString("\x00")
	b.WriteString(r.Description)
	for _, ing := range r.Ingredients {
		fmt.Fprintf(&b, "\x00%s|%s|%s", ing.Food, ing.Unit, ing.Text())
	}
	for _, step := range r.Instructions {
		b.WriteString("\x00")
		b.WriteString(step)
	}
	tags := append([]string(nil), r.Tags...)
	sort.Strings(tags)
	b.WriteString("\x00")
	b.WriteString(strings.Join(tags, ","))

	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", hash)
}

func containsFold(values []string, name string) bool {
	for _, v := range values {
		if strings.EqualFold(v, name) {
			return true
		}
	}
	return false
}

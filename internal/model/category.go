package model

import (
	"fmt"
	"strings"
)

// Category is a classification dimension of a recipe.
type Category string

// Category constants.
const (
	CategoryCuisine   Category = "cuisine"
	CategoryProtein   Category = "protein"
	CategoryCheese    Category = "cheese"
	CategoryEquipment Category = "equipment"
	CategoryDiet      Category = "diet"
	CategoryTag       Category = "tag"
	CategoryCourse    Category = "course"
)

// AllCategories lists every known category in canonical order.
var AllCategories = []Category{
	CategoryCuisine,
	CategoryProtein,
	CategoryCheese,
	CategoryEquipment,
	CategoryDiet,
	CategoryTag,
	CategoryCourse,
}

// ParseCategory converts a document name into a Category.
func ParseCategory(s string) (Category, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "free-text-tag", "free_text_tag", "text", "tags":
		return CategoryTag, nil
	case "tools", "tool":
		return CategoryEquipment, nil
	case "categories":
		return CategoryCourse, nil
	}
	for _, c := range AllCategories {
		if string(c) == name {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// SingleValued reports whether the category keeps only its best match.
func (c Category) SingleValued() bool {
	return c == CategoryCuisine || c == CategoryCourse
}

// Target is the recipe collection a category's tags are written to.
type Target string

// Target constants.
const (
	TargetTags       Target = "tags"
	TargetTools      Target = "tools"
	TargetCategories Target = "categories"
)

// Target returns where matched tags of this category are applied.
func (c Category) Target() Target {
	switch c {
	case CategoryEquipment:
		return TargetTools
	case CategoryCourse:
		return TargetCategories
	default:
		return TargetTags
	}
}

// Scope selects the recipe text a rule is matched against.
type Scope string

// Scope constants.
const (
	ScopeIngredients  Scope = "ingredients"
	ScopeInstructions Scope = "instructions"
	ScopeTitle        Scope = "title"
	ScopeAll          Scope = "all"
)

// ParseScope converts a document name into a Scope. Empty input yields "".
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", nil
	case ScopeIngredients:
		return ScopeIngredients, nil
	case ScopeInstructions:
		return ScopeInstructions, nil
	case ScopeTitle:
		return ScopeTitle, nil
	case ScopeAll:
		return ScopeAll, nil
	}
	return "", fmt.Errorf("unknown scope %q", s)
}

// DefaultScope returns the text a category is matched against when a rule
// does not say otherwise.
func (c Category) DefaultScope() Scope {
	switch c {
	case CategoryCuisine, CategoryProtein, CategoryCheese:
		return ScopeIngredients
	case CategoryEquipment:
		return ScopeInstructions
	default:
		return ScopeTitle
	}
}

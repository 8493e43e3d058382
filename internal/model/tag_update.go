package model

import "strings"

// TagUpdate holds names to add to each target collection of a recipe.
// Updates only ever add; nothing is removed from a recipe.
type TagUpdate struct {
	Tags       []string `json:"tags,omitempty"`
	Tools      []string `json:"tools,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// Empty reports whether the update adds nothing.
func (u TagUpdate) Empty() bool {
	return len(u.Tags) == 0 && len(u.Tools) == 0 && len(u.Categories) == 0
}

// Count returns the total number of additions.
func (u TagUpdate) Count() int {
	return len(u.Tags) + len(u.Tools) + len(u.Categories)
}

// Add appends name to the collection for target unless already present.
func (u *TagUpdate) Add(target Target, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	switch target {
	case TargetTools:
		u.Tools = appendUnique(u.Tools, name)
	case TargetCategories:
		u.Categories = appendUnique(u.Categories, name)
	default:
		u.Tags = appendUnique(u.Tags, name)
	}
}

// Merge adds every name of other into u.
func (u *TagUpdate) Merge(other TagUpdate) {
	for _, t := range other.Tags {
		u.Add(TargetTags, t)
	}
	for _, t := range other.Tools {
		u.Add(TargetTools, t)
	}
	for _, t := range other.Categories {
		u.Add(TargetCategories, t)
	}
}

// Without returns the additions the recipe does not already carry.
func (u TagUpdate) Without(r *Recipe) TagUpdate {
	var out TagUpdate
	for _, t := range u.Tags {
		if !containsFold(r.Tags, t) {
			out.Add(TargetTags, t)
		}
	}
	for _, t := range u.Tools {
		if !containsFold(r.Tools, t) {
			out.Add(TargetTools, t)
		}
	}
	for _, t := range u.Categories {
		if !containsFold(r.Categories, t) {
			out.Add(TargetCategories, t)
		}
	}
	return out
}

// Names returns the additions for target.
func (u TagUpdate) Names(target Target) []string {
	switch target {
	case TargetTools:
		return u.Tools
	case TargetCategories:
		return u.Categories
	default:
		return u.Tags
	}
}

// Outcome describes what a write call did.
type Outcome struct {
	Added   int
	Created int
	Changed bool
}

func appendUnique(values []string, name string) []string {
	if containsFold(values, name) {
		return values
	}
	return append(values, name)
}

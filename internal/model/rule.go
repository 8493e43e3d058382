package model

// Rule maps a text pattern to a tag within one category.
type Rule struct {
	ID         string   `json:"id" yaml:"id"`
	Category   Category `json:"category" yaml:"category"`
	Pattern    string   `json:"pattern" yaml:"pattern"`
	Exclude    string   `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	Tag        string   `json:"tag" yaml:"tag"`
	Scope      Scope    `json:"scope" yaml:"scope"`
	Weight     float64  `json:"weight" yaml:"weight"`
	Priority   int      `json:"priority" yaml:"priority"`
	MinMatches int      `json:"min_matches" yaml:"min_matches"`
	Order      int      `json:"order" yaml:"order"`
}

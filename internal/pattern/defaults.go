package pattern

import (
	"bytes"
	_ "embed"
)

//go:embed defaults.yaml
var defaultRules []byte

// DefaultSource names the built-in rule set in errors and reports.
const DefaultSource = "built-in rules"

// Default compiles the built-in rule set.
func Default() (*RuleSet, error) {
	return Load(bytes.NewReader(defaultRules), FormatYAML, DefaultSource)
}

// DefaultDocument returns the raw built-in rule document.
func DefaultDocument() []byte {
	return append([]byte(nil), defaultRules...)
}

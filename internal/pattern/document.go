package pattern

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/common"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a rule document.
type Format string

// Supported document formats.
const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the document format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", common.NewConfigError(path, "unsupported rule document extension %q", filepath.Ext(path))
	}
}

// Document is the declarative form of a rule set.
type Document struct {
	Categories []SectionDoc `yaml:"categories" toml:"categories"`
}

// SectionDoc is one category section of a Document.
type SectionDoc struct {
	Category string    `yaml:"category" toml:"category"`
	Rules    []RuleDoc `yaml:"rules" toml:"rules"`
}

// RuleDoc is one rule as written in a Document.
type RuleDoc struct {
	Weight     *float64 `yaml:"weight" toml:"weight"`
	ID         string   `yaml:"id" toml:"id"`
	Pattern    string   `yaml:"pattern" toml:"pattern"`
	Exclude    string   `yaml:"exclude" toml:"exclude"`
	Tag        string   `yaml:"tag" toml:"tag"`
	Scope      string   `yaml:"scope" toml:"scope"`
	Priority   int      `yaml:"priority" toml:"priority"`
	MinMatches int      `yaml:"min_matches" toml:"min_matches"`
}

// LoadFile reads and compiles the rule document at path.
func LoadFile(path string) (*RuleSet, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, common.NewConfigError(path, "rule document not found")
		}
		return nil, common.NewConfigError(path, "reading rule document: %v", err)
	}

	return Load(bytes.NewReader(data), format, path)
}

// Load decodes a rule document from r and compiles it.
// Source names the document in errors.
func Load(r io.Reader, format Format, source string) (*RuleSet, error) {
	doc, err := Decode(r, format, source)
	if err != nil {
		return nil, err
	}
	return Compile(doc, source)
}

// Decode parses a rule document without compiling it. Unknown keys are rejected.
func Decode(r io.Reader, format Format, source string) (*Document, error) {
	var doc Document

	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, common.NewConfigError(source, "empty rule document")
			}
			return nil, common.NewConfigError(source, "invalid YAML: %v", err)
		}
	case FormatTOML:
		dec := toml.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, common.NewConfigError(source, "invalid TOML: %v", err)
		}
	default:
		return nil, common.NewConfigError(source, "unknown rule document format %q", format)
	}

	if len(doc.Categories) == 0 {
		return nil, common.NewConfigError(source, "empty rule document")
	}
	return &doc, nil
}

func ruleLocation(category string, index int) string {
	return fmt.Sprintf("%s rule %d", category, index+1)
}

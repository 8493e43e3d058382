package pattern

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/common"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_YAML(t *testing.T) {
	doc := `
categories:
  - category: cuisine
    rules:
      - pattern: basil
        tag: Italian
      - pattern: miso|mirin
        tag: Japanese
        priority: 5
  - category: equipment
    rules:
      - id: wok
        pattern: wok
        tag: Wok
        weight: 2
`
	rs, err := Load(strings.NewReader(doc), FormatYAML, "test.yaml")
	require.NoError(t, err)

	require.Len(t, rs.Sections, 2)
	assert.Equal(t, 3, rs.Len())

	cuisine := rs.Sections[0]
	assert.Equal(t, model.CategoryCuisine, cuisine.Category)
	// Priority reorders within the section, declaration order is kept in Order.
	assert.Equal(t, "Japanese", cuisine.Rules[0].Tag)
	assert.Equal(t, 1, cuisine.Rules[0].Order)
	assert.Equal(t, "Italian", cuisine.Rules[1].Tag)
	assert.Equal(t, "cuisine.1", cuisine.Rules[1].ID)
	assert.Equal(t, model.ScopeIngredients, cuisine.Rules[1].Scope)
	assert.Equal(t, 1, cuisine.Rules[1].MinMatches)
	assert.InDelta(t, 1.0, cuisine.Rules[1].Weight, 1e-9)

	tools := rs.Sections[1]
	assert.Equal(t, "wok", tools.Rules[0].ID)
	assert.Equal(t, model.ScopeInstructions, tools.Rules[0].Scope)
	assert.InDelta(t, 2.0, tools.Rules[0].Weight, 1e-9)
}

func TestLoad_TOML(t *testing.T) {
	doc := `
[[categories]]
category = "protein"

[[categories.rules]]
pattern = "chicken"
exclude = "broth|stock"
tag = "Chicken"

[[categories]]
category = "free-text-tag"

[[categories.rules]]
pattern = "spicy"
tag = "Spicy"
scope = "all"
`
	rs, err := Load(strings.NewReader(doc), FormatTOML, "rules.toml")
	require.NoError(t, err)

	require.Len(t, rs.Sections, 2)
	assert.Equal(t, model.CategoryProtein, rs.Sections[0].Category)
	assert.Equal(t, "broth|stock", rs.Sections[0].Rules[0].Exclude)
	assert.Equal(t, model.CategoryTag, rs.Sections[1].Category)
	assert.Equal(t, model.ScopeAll, rs.Sections[1].Rules[0].Scope)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		format Format
		errMsg string
	}{
		{name: "empty yaml", doc: "", format: FormatYAML, errMsg: "empty rule document"},
		{name: "no categories", doc: "categories: []", format: FormatYAML, errMsg: "empty rule document"},
		{name: "empty toml", doc: "", format: FormatTOML, errMsg: "empty rule document"},
		{name: "malformed yaml", doc: "categories: [", format: FormatYAML, errMsg: "invalid YAML"},
		{name: "malformed toml", doc: "[[categories]\n", format: FormatTOML, errMsg: "invalid TOML"},
		{name: "unknown field", doc: "categories:\n  - category: cuisine\n    colour: red\n", format: FormatYAML, errMsg: "invalid YAML"},
		{name: "unknown category", doc: "categories:\n  - category: dessert\n    rules:\n      - {pattern: cake, tag: Cake}\n", format: FormatYAML, errMsg: "unknown category"},
		{name: "duplicate category", doc: "categories:\n  - category: cheese\n    rules:\n      - {pattern: brie, tag: Brie}\n  - category: cheese\n    rules:\n      - {pattern: feta, tag: Feta}\n", format: FormatYAML, errMsg: "duplicate section"},
		{name: "empty pattern", doc: "categories:\n  - category: cheese\n    rules:\n      - {pattern: '', tag: Brie}\n", format: FormatYAML, errMsg: "cheese rule 1: empty pattern"},
		{name: "empty tag", doc: "categories:\n  - category: cheese\n    rules:\n      - {pattern: brie}\n", format: FormatYAML, errMsg: "empty tag"},
		{name: "invalid regex", doc: "categories:\n  - category: cheese\n    rules:\n      - {pattern: 'brie(', tag: Brie}\n", format: FormatYAML, errMsg: "invalid pattern"},
		{name: "invalid exclude", doc: "categories:\n  - category: cheese\n    rules:\n      - {pattern: brie, exclude: '[', tag: Brie}\n", format: FormatYAML, errMsg: "invalid exclude"},
		{name: "negative weight", doc: "categories:\n  - category: cheese\n    rules:\n      - {pattern: brie, tag: Brie, weight: -1}\n", format: FormatYAML, errMsg: "negative weight"},
		{name: "unknown scope", doc: "categories:\n  - category: cheese\n    rules:\n      - {pattern: brie, tag: Brie, scope: comments}\n", format: FormatYAML, errMsg: "unknown scope"},
		{name: "duplicate id", doc: "categories:\n  - category: cheese\n    rules:\n      - {id: x, pattern: brie, tag: Brie}\n      - {id: x, pattern: feta, tag: Feta}\n", format: FormatYAML, errMsg: "duplicate rule id"},
		{name: "unknown format", doc: "categories: []", format: "json", errMsg: "unknown rule document format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := Load(strings.NewReader(tt.doc), tt.format, "rules")
			require.Error(t, err)
			assert.Nil(t, rs)
			assert.ErrorIs(t, err, common.ErrConfig)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "absent.yaml"))
		assert.ErrorIs(t, err, common.ErrConfig)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "rules.json"))
		assert.ErrorIs(t, err, common.ErrConfig)
	})

	t.Run("yml file", func(t *testing.T) {
		path := filepath.Join(dir, "rules.yml")
		require.NoError(t, os.WriteFile(path, []byte("categories:\n  - category: diet\n    rules:\n      - {pattern: vegan, tag: Vegan}\n"), 0o600))

		rs, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, path, rs.Source)
		assert.Equal(t, 1, rs.Len())
	})
}

func TestCompilePattern(t *testing.T) {
	tests := []struct {
		pattern string
		text    string
		want    bool
	}{
		{pattern: "basil", text: "fresh BASIL leaves", want: true},
		{pattern: "egg", text: "eggplant", want: false},
		{pattern: "egg|eggs", text: "2 eggs", want: true},
		{pattern: `\ykimchi\y`, text: "kimchi fried rice", want: true},
		{pattern: "crème fraîche", text: "creme fraiche", want: true},
		{pattern: "gf", text: "gfx", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.text, func(t *testing.T) {
			re, err := compilePattern(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, re.MatchString(Normalize(tt.text)))
		})
	}
}

func TestDefault(t *testing.T) {
	rs, err := Default()
	require.NoError(t, err)

	assert.Equal(t, DefaultSource, rs.Source)
	for _, c := range model.AllCategories {
		_, ok := rs.Section(c)
		assert.True(t, ok, "missing default section %s", c)
	}

	cuisine, _ := rs.Section(model.CategoryCuisine)
	for _, r := range cuisine.Rules {
		assert.Equal(t, 3, r.MinMatches, r.ID)
	}

	vocab := rs.Vocabulary()
	assert.Contains(t, vocab[model.CategoryCheese], "Soft & Creamy")
	assert.Contains(t, vocab[model.CategoryEquipment], "Air Fryer")
	assert.Equal(t, "Beverage", vocab[model.CategoryCourse][0])
}

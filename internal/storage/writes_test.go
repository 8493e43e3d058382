package storage

import (
	"context"
	"testing"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/common"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyTags(t *testing.T) {
	c := testutil.NewCatalog(t)
	c.AddRecipes(
		model.Recipe{Slug: "curry", Name: "Curry", Tags: []string{"Spicy"}},
		model.Recipe{Slug: "dal", Name: "Dal", Tags: []string{"Indian"}},
	)
	s := openStore(t, c, Options{})
	ctx := context.Background()

	update := model.TagUpdate{
		Tags:       []string{"Indian", "spicy", "Chicken"},
		Tools:      []string{"Dutch Oven"},
		Categories: []string{"Dinner"},
	}

	out, err := s.ApplyTags(ctx, "curry", update)
	require.NoError(t, err)
	assert.True(t, out.Changed)
	// Indian, Chicken, Dutch Oven, Dinner are new links; "spicy" matches Spicy.
	assert.Equal(t, 4, out.Added)
	// Indian already exists as a tag row.
	assert.Equal(t, 3, out.Created)

	assert.Equal(t, []string{"Chicken", "Indian", "Spicy"}, c.Names("curry", model.TargetTags))
	assert.Equal(t, []string{"Dutch Oven"}, c.Names("curry", model.TargetTools))
	assert.Equal(t, []string{"Dinner"}, c.Names("curry", model.TargetCategories))
	assert.Equal(t, []string{"Indian"}, c.Names("dal", model.TargetTags))

	t.Run("idempotent", func(t *testing.T) {
		before := c.Snapshot()
		out, err := s.ApplyTags(ctx, "curry", update)
		require.NoError(t, err)
		assert.False(t, out.Changed)
		assert.Zero(t, out.Added)
		assert.Zero(t, out.Created)
		assert.Equal(t, before, c.Snapshot())
	})

	t.Run("empty update", func(t *testing.T) {
		out, err := s.ApplyTags(ctx, "curry", model.TagUpdate{})
		require.NoError(t, err)
		assert.False(t, out.Changed)
	})

	t.Run("missing recipe", func(t *testing.T) {
		_, err := s.ApplyTags(ctx, "nope", update)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestApplyTags_NeverRemoves(t *testing.T) {
	c := testutil.NewCatalog(t)
	c.AddRecipes(model.Recipe{Slug: "salad", Name: "Salad", Tags: []string{"Quick", "Vegan"}})
	s := openStore(t, c, Options{})

	_, err := s.ApplyTags(context.Background(), "salad", model.TagUpdate{Tags: []string{"Greek"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Greek", "Quick", "Vegan"}, c.Names("salad", model.TargetTags))
}

func TestApplyParsed(t *testing.T) {
	c := testutil.NewCatalog(t)
	c.AddRecipes(model.Recipe{
		Slug: "bread",
		Name: "Bread",
		Ingredients: []model.Ingredient{
			{Quantity: 500, Unit: "gram", Food: "flour"},
			{Note: "2 tsp salt"},
			{OriginalText: "1 packet yeast"},
		},
	})
	s := openStore(t, c, Options{})
	ctx := context.Background()

	parsed := []model.ParsedIngredient{
		{Index: 1, Input: "2 tsp salt", Quantity: 2, Unit: "teaspoon", Food: "salt", Confidence: 0.95},
		{Index: 2, Input: "1 packet yeast", Quantity: 1, Unit: "packet", Food: "yeast", Confidence: 0.9},
	}
	out, err := s.ApplyParsed(ctx, "bread", parsed)
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, 2, out.Added)
	// salt, teaspoon, yeast and packet are new; flour and gram exist.
	assert.Equal(t, 4, out.Created)

	r, err := s.FetchRecord(ctx, "bread")
	require.NoError(t, err)
	assert.True(t, r.Parsed())
	assert.Equal(t, "salt", r.Ingredients[1].Food)
	assert.Equal(t, "teaspoon", r.Ingredients[1].Unit)
	assert.Equal(t, "2 tsp salt", r.Ingredients[1].OriginalText)
	assert.Equal(t, "1 packet yeast", r.Ingredients[2].OriginalText)

	t.Run("already parsed lines are left alone", func(t *testing.T) {
		before := c.Snapshot()
		out, err := s.ApplyParsed(ctx, "bread", []model.ParsedIngredient{
			{Index: 0, Quantity: 1, Unit: "gram", Food: "flour"},
		})
		require.NoError(t, err)
		assert.False(t, out.Changed)
		assert.Equal(t, before, c.Snapshot())
	})
}

func TestApplyParsed_Validation(t *testing.T) {
	c := testutil.NewCatalog(t)
	c.AddRecipes(model.Recipe{Slug: "toast", Name: "Toast", Ingredients: []model.Ingredient{{Note: "bread"}}})
	s := openStore(t, c, Options{})
	before := c.Snapshot()

	tests := []struct {
		name   string
		parsed []model.ParsedIngredient
	}{
		{name: "index out of range", parsed: []model.ParsedIngredient{{Index: 3, Food: "bread"}}},
		{name: "negative index", parsed: []model.ParsedIngredient{{Index: -1, Food: "bread"}}},
		{name: "duplicate index", parsed: []model.ParsedIngredient{{Index: 0, Food: "bread"}, {Index: 0, Food: "toast"}}},
		{name: "no food or unit", parsed: []model.ParsedIngredient{{Index: 0, Note: "bread"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ApplyParsed(context.Background(), "toast", tt.parsed)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrValidation)
			assert.Equal(t, before, c.Snapshot())
		})
	}
}

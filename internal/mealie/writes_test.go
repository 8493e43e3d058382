package mealie

import (
	"context"
	"testing"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/common"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/service"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyTags(t *testing.T) {
	srv := testutil.NewMealieServer(t,
		model.Recipe{Slug: "curry", Name: "Curry", Tags: []string{"Spicy"}},
		model.Recipe{Slug: "dal", Name: "Dal", Tags: []string{"Indian"}},
	)
	c := newTestClient(t, srv)
	ctx := context.Background()

	update := model.TagUpdate{
		Tags:       []string{"Indian", "spicy", "Chicken"},
		Tools:      []string{"Dutch Oven"},
		Categories: []string{"Dinner"},
	}
	out, err := c.ApplyTags(ctx, "curry", update)
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, 4, out.Added)
	assert.Equal(t, 3, out.Created)

	r, ok := srv.Recipe("curry")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"Spicy", "Indian", "Chicken"}, r.Tags)
	assert.Equal(t, []string{"Dutch Oven"}, r.Tools)
	assert.Equal(t, []string{"Dinner"}, r.Categories)
	assert.Equal(t, []string{"Chicken", "Indian", "Spicy"}, srv.Organizers("tags"))
	assert.Equal(t, 1, srv.Requests("PATCH /api/recipes/curry"))

	t.Run("idempotent", func(t *testing.T) {
		out, err := c.ApplyTags(ctx, "curry", update)
		require.NoError(t, err)
		assert.False(t, out.Changed)
		assert.Equal(t, 1, srv.Requests("PATCH /api/recipes/curry"))
	})

	t.Run("organizer cache is primed once", func(t *testing.T) {
		_, err := c.ApplyTags(ctx, "dal", model.TagUpdate{Tags: []string{"Chicken", "Lentils"}})
		require.NoError(t, err)
		assert.Equal(t, 1, srv.Requests("GET /api/organizers/tags"))
	})

	t.Run("missing recipe", func(t *testing.T) {
		_, err := c.ApplyTags(ctx, "nope", update)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestApplyParsed(t *testing.T) {
	srv := testutil.NewMealieServer(t, model.Recipe{
		Slug: "bread",
		Name: "Bread",
		Ingredients: []model.Ingredient{
			{Quantity: 500, Unit: "gram", Food: "flour"},
			{Note: "2 tsp salt"},
			{OriginalText: "1 packet yeast"},
		},
	})
	srv.AddFood("salt")
	srv.AddUnit("teaspoon")
	c := newTestClient(t, srv)
	ctx := context.Background()

	before, _ := srv.Recipe("bread")

	out, err := c.ApplyParsed(ctx, "bread", []model.ParsedIngredient{
		{Index: 1, Input: "2 tsp salt", Quantity: 2, Unit: "teaspoon", Food: "salt"},
		{Index: 2, Input: "1 packet yeast", Quantity: 1, Food: "yeast"},
	})
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, 2, out.Added)
	// Only yeast is new.
	assert.Equal(t, 1, out.Created)

	r, _ := srv.Recipe("bread")
	assert.True(t, r.Parsed())
	assert.Equal(t, "salt", r.Ingredients[1].Food)
	assert.Equal(t, "teaspoon", r.Ingredients[1].Unit)
	assert.Equal(t, "2 tsp salt", r.Ingredients[1].OriginalText)
	assert.Equal(t, "", r.Ingredients[2].Unit)
	assert.Equal(t, "1 packet yeast", r.Ingredients[2].OriginalText)
	for i := range r.Ingredients {
		assert.Equal(t, before.Ingredients[i].ReferenceID, r.Ingredients[i].ReferenceID)
	}

	t.Run("already parsed lines are left alone", func(t *testing.T) {
		patches := srv.Requests("PATCH /api/recipes/bread")
		out, err := c.ApplyParsed(ctx, "bread", []model.ParsedIngredient{{Index: 0, Food: "flour"}})
		require.NoError(t, err)
		assert.False(t, out.Changed)
		assert.Equal(t, patches, srv.Requests("PATCH /api/recipes/bread"))
	})

	t.Run("invalid index", func(t *testing.T) {
		_, err := c.ApplyParsed(ctx, "bread", []model.ParsedIngredient{{Index: 9, Food: "flour"}})
		assert.ErrorIs(t, err, common.ErrValidation)
	})
}

func TestParseIngredients(t *testing.T) {
	srv := testutil.NewMealieServer(t)
	srv.Parse = func(line, parser string) testutil.ParsedLine {
		if parser == string(service.ParseOpenAI) {
			return testutil.ParsedLine{Food: "ai " + line, Confidence: 0.99}
		}
		return testutil.ParsedLine{Food: line, Unit: "cup", Quantity: 1, Confidence: 0.5}
	}
	c := newTestClient(t, srv)
	ctx := context.Background()

	got, err := c.ParseIngredients(ctx, []string{"1 cup rice", "water"}, service.ParseNLP)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.ParsedIngredient{Index: 1, Input: "water", Food: "water", Unit: "cup", Quantity: 1, Confidence: 0.5}, got[1])

	got, err = c.ParseIngredients(ctx, []string{"water"}, service.ParseOpenAI)
	require.NoError(t, err)
	assert.Equal(t, "ai water", got[0].Food)
	assert.InDelta(t, 0.99, got[0].Confidence, 1e-9)

	got, err = c.ParseIngredients(ctx, nil, service.ParseNLP)
	require.NoError(t, err)
	assert.Empty(t, got)
}

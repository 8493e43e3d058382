package mealie

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/common"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/service"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, srv *testutil.MealieServer) *Client {
	t.Helper()
	c, err := New(context.Background(), Options{
		BaseURL:    srv.URL,
		Token:      testutil.Token,
		HTTPClient: srv.Client(),
		PageSize:   3,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{name: "missing url", opts: Options{Token: "x"}},
		{name: "missing token", opts: Options{BaseURL: "http://localhost:9000"}},
		{name: "relative url", opts: Options{BaseURL: "localhost", Token: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrConfig)
		})
	}
}

func TestFetchRecord(t *testing.T) {
	srv := testutil.NewMealieServer(t, model.Recipe{
		Slug:         "carbonara",
		Name:         "Spaghetti Carbonara",
		OrgURL:       "https://example.com/carbonara",
		Ingredients:  []model.Ingredient{{Quantity: 200, Unit: "gram", Food: "guanciale"}, {Note: "2 eggs"}},
		Instructions: []string{"Boil pasta.", "Toss."},
		Tags:         []string{"Italian"},
		Tools:        []string{"Skillet"},
	})
	c := newTestClient(t, srv)

	r, err := c.FetchRecord(context.Background(), "carbonara")
	require.NoError(t, err)
	assert.Equal(t, "Spaghetti Carbonara", r.Name)
	assert.Equal(t, "https://example.com/carbonara", r.OrgURL)
	assert.Equal(t, []string{"Italian"}, r.Tags)
	assert.Equal(t, []string{"Skillet"}, r.Tools)
	assert.Nil(t, r.Categories)
	assert.Equal(t, []string{"Boil pasta.", "Toss."}, r.Instructions)
	require.Len(t, r.Ingredients, 2)
	assert.Equal(t, "guanciale", r.Ingredients[0].Food)
	assert.Equal(t, []int{1}, r.UnparsedLines())

	_, err = c.FetchRecord(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.False(t, common.IsRetryable(err))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "recipe not found", apiErr.Message)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		want      error
		name      string
		status    int
		retryable bool
		fatal     bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, want: common.ErrRateLimit, retryable: true},
		{name: "server error", status: http.StatusBadGateway, want: common.ErrConnection, retryable: true},
		{name: "validation", status: http.StatusUnprocessableEntity, want: common.ErrValidation},
		{name: "bad request", status: http.StatusBadRequest, want: common.ErrValidation},
		{name: "forbidden", status: http.StatusForbidden, want: common.ErrConfig, fatal: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testutil.NewMealieServer(t, model.Recipe{Slug: "soup", Name: "Soup"})
			srv.Fail = func(*http.Request) int { return tt.status }
			c := newTestClient(t, srv)

			_, err := c.FetchRecord(context.Background(), "soup")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.retryable, common.IsRetryable(err))
			assert.Equal(t, tt.fatal, common.IsFatal(err))
		})
	}
}

func TestBadToken(t *testing.T) {
	srv := testutil.NewMealieServer(t)
	c, err := New(context.Background(), Options{BaseURL: srv.URL, Token: "wrong", HTTPClient: srv.Client()})
	require.NoError(t, err)

	_, err = c.FetchRecord(context.Background(), "anything")
	require.Error(t, err)
	assert.True(t, common.IsFatal(err))
}

func TestTransportError(t *testing.T) {
	srv := testutil.NewMealieServer(t)
	c := newTestClient(t, srv)
	srv.Close()

	_, err := c.FetchRecord(context.Background(), "soup")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrConnection)
	assert.True(t, common.IsRetryable(err))
}

func TestFetchCandidates(t *testing.T) {
	srv := testutil.NewMealieServer(t,
		model.Recipe{Slug: "a", Name: "A", Tags: []string{"Quick"}},
		model.Recipe{Slug: "b", Name: "B", Categories: []string{"Dinner"}},
		model.Recipe{Slug: "c", Name: "C", Ingredients: []model.Ingredient{{Note: "salt to taste"}}},
		model.Recipe{Slug: "d", Name: "D", Ingredients: []model.Ingredient{{Food: "rice"}}},
		model.Recipe{Slug: "e", Name: "E", Tags: []string{"Vegan"}, Categories: []string{"Lunch"}},
		model.Recipe{Slug: "f", Name: "F", Ingredients: []model.Ingredient{{OriginalText: "1 lemon"}}},
		model.Recipe{Slug: "g", Name: "G"},
	)
	c := newTestClient(t, srv)

	tests := []struct {
		filter service.Filter
		name   string
		want   []string
	}{
		{name: "all across pages", filter: service.Filter{}, want: []string{"a", "b", "c", "d", "e", "f", "g"}},
		{name: "after", filter: service.Filter{After: "c"}, want: []string{"d", "e", "f", "g"}},
		{name: "untagged", filter: service.Filter{Need: service.NeedUntagged}, want: []string{"b", "c", "d", "f", "g"}},
		{name: "uncategorized", filter: service.Filter{Need: service.NeedUncategorized}, want: []string{"a", "c", "d", "f", "g"}},
		{name: "unparsed", filter: service.Filter{Need: service.NeedUnparsed}, want: []string{"c", "f"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			cur, err := c.FetchCandidates(ctx, tt.filter)
			require.NoError(t, err)
			defer cur.Close()

			var got []string
			for cur.Next(ctx) {
				got = append(got, cur.Slug())
			}
			require.NoError(t, cur.Err())
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := c.FetchCandidates(context.Background(), service.Filter{Need: "bogus"})
	assert.Error(t, err)
}

func TestFetchCandidates_ListFailure(t *testing.T) {
	srv := testutil.NewMealieServer(t, model.Recipe{Slug: "a", Name: "A"})
	srv.Fail = func(*http.Request) int { return http.StatusInternalServerError }
	c := newTestClient(t, srv)

	ctx := context.Background()
	cur, err := c.FetchCandidates(ctx, service.Filter{})
	require.NoError(t, err)
	assert.False(t, cur.Next(ctx))
	assert.ErrorIs(t, cur.Err(), common.ErrConnection)
}

package classification

import (
	"testing"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPatternDetector(t *testing.T) {
	tests := []struct {
		name     string
		errMsg   string
		patterns []Pattern
		wantErr  bool
	}{
		{
			name: "valid patterns",
			patterns: []Pattern{
				{Name: "shop", Type: FindingJunk, Regex: `\bshop\b`, Priority: 10},
				{Name: "listicle", Type: FindingListicle, Regex: `^\d+ best`, Priority: 90},
			},
		},
		{
			name: "invalid regex",
			patterns: []Pattern{
				{Name: "Bad Pattern", Type: FindingJunk, Regex: `[invalid regex`},
			},
			wantErr: true,
			errMsg:  "failed to compile pattern",
		},
		{
			name:     "empty patterns",
			patterns: []Pattern{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pd, err := NewPatternDetector(tt.patterns)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.patterns), pd.GetPatternCount())
		})
	}
}

func TestPatternDetector_PriorityOrder(t *testing.T) {
	pd, err := NewPatternDetector([]Pattern{
		{Name: "low", Type: FindingJunk, Regex: `best`, Priority: 1},
		{Name: "high", Type: FindingListicle, Regex: `best`, Priority: 100},
	})
	require.NoError(t, err)

	findings := pd.Inspect(&model.Recipe{
		Name:         "10 best cookies",
		OrgURL:       "https://example.com/cookies",
		Instructions: []string{"Bake."},
	})
	require.Len(t, findings, 1)
	assert.Equal(t, FindingListicle, findings[0].Type)
	assert.Equal(t, "high", findings[0].Reason)
}

func TestPatternDetector_Inspect(t *testing.T) {
	pd, err := NewPatternDetector(DefaultPatterns())
	require.NoError(t, err)

	steps := []string{"Mix everything.", "Bake for 20 minutes."}

	tests := []struct {
		name   string
		recipe model.Recipe
		want   []FindingType
	}{
		{
			name:   "real recipe",
			recipe: model.Recipe{Name: "Banana Bread", OrgURL: "https://example.com/banana-bread", Instructions: steps},
		},
		{
			name:   "keyword in name",
			recipe: model.Recipe{Name: "Holiday Gift Guide", OrgURL: "https://example.com/x", Instructions: steps},
			want:   []FindingType{FindingJunk},
		},
		{
			name:   "keyword in url slug",
			recipe: model.Recipe{Name: "Untitled", OrgURL: "https://example.com/blog/night-cream-at-home/", Instructions: steps},
			want:   []FindingType{FindingJunk},
		},
		{
			name:   "listicle",
			recipe: model.Recipe{Name: "25 Easy Weeknight Dinners", OrgURL: "https://example.com/dinners", Instructions: steps},
			want:   []FindingType{FindingListicle},
		},
		{
			name:   "non recipe page",
			recipe: model.Recipe{Name: "Hello", OrgURL: "https://example.com/privacy-policy", Instructions: steps},
			want:   []FindingType{FindingNonRecipeURL},
		},
		{
			name:   "manual recipe is never junk",
			recipe: model.Recipe{Name: "Grandma's gift cookies", Instructions: steps},
		},
		{
			name:   "no instructions",
			recipe: model.Recipe{Name: "Soup", Instructions: []string{"", "  "}},
			want:   []FindingType{FindingBrokenInstructions},
		},
		{
			name:   "junk and broken",
			recipe: model.Recipe{Name: "Pantry tour", OrgURL: "https://example.com/pantry"},
			want:   []FindingType{FindingJunk, FindingBrokenInstructions},
		},
		{
			name:   "word boundary",
			recipe: model.Recipe{Name: "Shopska Salad", OrgURL: "https://example.com/shopska-salad", Instructions: steps},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []FindingType
			for _, f := range pd.Inspect(&tt.recipe) {
				got = append(got, f.Type)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidInstructions(t *testing.T) {
	assert.False(t, ValidInstructions(nil))
	assert.False(t, ValidInstructions([]string{""}))
	assert.False(t, ValidInstructions([]string{"Could not detect instructions"}))
	assert.True(t, ValidInstructions([]string{"", "Stir."}))
	assert.True(t, ValidInstructions([]string{"Could not detect the oven temperature", "Bake."}))
}

func TestPlanReview(t *testing.T) {
	r := &model.Recipe{Tags: []string{ReviewTagJunk}}
	findings := []Finding{{Type: FindingJunk}, {Type: FindingListicle}, {Type: FindingBrokenInstructions}}

	update := PlanReview(r, findings)
	assert.Equal(t, []string{ReviewTagInstructions}, update.Tags)
}

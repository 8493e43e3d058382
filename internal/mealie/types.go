package mealie

import (
	"encoding/json"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
)

// ref is an organizer, food or unit as embedded in recipe payloads.
type ref struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

type ingredientPayload struct {
	Unit         *ref    `json:"unit"`
	Food         *ref    `json:"food"`
	Note         string  `json:"note"`
	OriginalText string  `json:"originalText"`
	ReferenceID  string  `json:"referenceId"`
	Quantity     float64 `json:"quantity"`
}

type instructionPayload struct {
	Text string `json:"text"`
}

type recipePayload struct {
	ID                 string               `json:"id"`
	Slug               string               `json:"slug"`
	Name               string               `json:"name"`
	Description        string               `json:"description"`
	OrgURL             string               `json:"orgURL"`
	RecipeIngredient   []ingredientPayload  `json:"recipeIngredient"`
	RecipeInstructions []instructionPayload `json:"recipeInstructions"`
	Tags               []ref                `json:"tags"`
	Tools              []ref                `json:"tools"`
	RecipeCategory     []ref                `json:"recipeCategory"`
}

func (p *recipePayload) toModel() *model.Recipe {
	r := &model.Recipe{
		ID:          p.ID,
		Slug:        p.Slug,
		Name:        p.Name,
		Description: p.Description,
		OrgURL:      p.OrgURL,
		Tags:        names(p.Tags),
		Tools:       names(p.Tools),
		Categories:  names(p.RecipeCategory),
	}
	for _, ing := range p.RecipeIngredient {
		mi := model.Ingredient{
			ReferenceID:  ing.ReferenceID,
			Note:         ing.Note,
			OriginalText: ing.OriginalText,
			Quantity:     ing.Quantity,
		}
		if ing.Food != nil {
			mi.Food = ing.Food.Name
		}
		if ing.Unit != nil {
			mi.Unit = ing.Unit.Name
		}
		r.Ingredients = append(r.Ingredients, mi)
	}
	for _, step := range p.RecipeInstructions {
		r.Instructions = append(r.Instructions, step.Text)
	}
	return r
}

func names(refs []ref) []string {
	if len(refs) == 0 {
		return nil
	}
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Name)
	}
	return out
}

// summary is one entry of the paginated recipe listing.
type summary struct {
	Slug           string `json:"slug"`
	Tags           []ref  `json:"tags"`
	RecipeCategory []ref  `json:"recipeCategory"`
}

// page is the recipe manager's pagination envelope.
type page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type parseRequest struct {
	Parser      string   `json:"parser"`
	Language    string   `json:"language"`
	Ingredients []string `json:"ingredients"`
}

type parsedPayload struct {
	Input      string `json:"input"`
	Confidence struct {
		Average float64 `json:"average"`
	} `json:"confidence"`
	Ingredient ingredientPayload `json:"ingredient"`
}

// rawRecipe keeps every field of a recipe so a PATCH of the ingredient list
// does not drop anything this package does not model.
type rawRecipe struct {
	RecipeIngredient []map[string]json.RawMessage `json:"recipeIngredient"`
}

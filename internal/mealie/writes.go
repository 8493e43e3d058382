package mealie

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
)

type tagsPatch struct {
	Tags           *[]ref `json:"tags,omitempty"`
	Tools          *[]ref `json:"tools,omitempty"`
	RecipeCategory *[]ref `json:"recipeCategory,omitempty"`
}

// ApplyTags links every name in the update to the recipe. Missing
// organizers are created first; the PATCH carries the full merged lists.
func (c *Client) ApplyTags(ctx context.Context, slug string, update model.TagUpdate) (model.Outcome, error) {
	var outcome model.Outcome
	if update.Empty() {
		return outcome, nil
	}

	var current recipePayload
	if err := c.getJSON(ctx, recipePath(slug), nil, &current); err != nil {
		return outcome, err
	}

	targets := []struct {
		list   *[]ref
		set    func(*tagsPatch, *[]ref)
		kind   organizerKind
		target model.Target
	}{
		{&current.Tags, func(p *tagsPatch, l *[]ref) { p.Tags = l }, organizerTags, model.TargetTags},
		{&current.Tools, func(p *tagsPatch, l *[]ref) { p.Tools = l }, organizerTools, model.TargetTools},
		{&current.RecipeCategory, func(p *tagsPatch, l *[]ref) { p.RecipeCategory = l }, organizerCategories, model.TargetCategories},
	}

	var patch tagsPatch
	for _, t := range targets {
		merged := append([]ref(nil), (*t.list)...)
		added := 0
		for _, name := range update.Names(t.target) {
			if hasRef(merged, name) {
				continue
			}
			r, created, err := c.organizers[t.kind].ensure(ctx, c, name)
			if err != nil {
				return model.Outcome{}, err
			}
			if created {
				outcome.Created++
			}
			merged = append(merged, r)
			added++
		}
		if added > 0 {
			t.set(&patch, &merged)
			outcome.Added += added
		}
	}

	if outcome.Added == 0 {
		return outcome, nil
	}
	if err := c.sendJSON(ctx, http.MethodPatch, recipePath(slug), patch, nil); err != nil {
		return model.Outcome{}, err
	}

	outcome.Changed = true
	slog.Debug("Applied tags", "slug", slug, "added", outcome.Added, "created", outcome.Created)
	return outcome, nil
}

func hasRef(refs []ref, name string) bool {
	for _, r := range refs {
		if strings.EqualFold(r.Name, name) {
			return true
		}
	}
	return false
}

// ApplyParsed replaces free-text ingredient lines with structured ones.
// Lines that gained structure since they were read are left untouched, and
// fields of each ingredient this package does not model are sent back as-is.
func (c *Client) ApplyParsed(ctx context.Context, slug string, parsed []model.ParsedIngredient) (model.Outcome, error) {
	var outcome model.Outcome
	if len(parsed) == 0 {
		return outcome, nil
	}

	var raw rawRecipe
	if err := c.getJSON(ctx, recipePath(slug), nil, &raw); err != nil {
		return outcome, err
	}
	if err := model.ValidateParsed(parsed, len(raw.RecipeIngredient)); err != nil {
		return outcome, err
	}

	for _, p := range parsed {
		entry := raw.RecipeIngredient[p.Index]
		if !isNull(entry["food"]) || !isNull(entry["unit"]) {
			continue
		}

		if err := c.setRef(ctx, entry, "food", c.foods, p.Food, &outcome); err != nil {
			return model.Outcome{}, err
		}
		if err := c.setRef(ctx, entry, "unit", c.units, p.Unit, &outcome); err != nil {
			return model.Outcome{}, err
		}
		if err := setJSON(entry, "quantity", p.Quantity); err != nil {
			return model.Outcome{}, err
		}
		if err := setJSON(entry, "note", p.Note); err != nil {
			return model.Outcome{}, err
		}
		var original string
		_ = json.Unmarshal(entry["originalText"], &original)
		if strings.TrimSpace(original) == "" {
			if err := setJSON(entry, "originalText", p.Input); err != nil {
				return model.Outcome{}, err
			}
		}
		outcome.Added++
	}

	if outcome.Added == 0 {
		return outcome, nil
	}
	body := map[string]any{"recipeIngredient": raw.RecipeIngredient}
	if err := c.sendJSON(ctx, http.MethodPatch, recipePath(slug), body, nil); err != nil {
		return model.Outcome{}, err
	}

	outcome.Changed = true
	slog.Debug("Applied parsed ingredients", "slug", slug, "updated", outcome.Added, "created", outcome.Created)
	return outcome, nil
}

func (c *Client) setRef(ctx context.Context, entry map[string]json.RawMessage, key string, cache *nameCache, name string, outcome *model.Outcome) error {
	if strings.TrimSpace(name) == "" {
		entry[key] = json.RawMessage("null")
		return nil
	}
	r, created, err := cache.ensure(ctx, c, name)
	if err != nil {
		return err
	}
	if created {
		outcome.Created++
	}
	return setJSON(entry, key, r)
}

func setJSON(entry map[string]json.RawMessage, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	entry[key] = data
	return nil
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

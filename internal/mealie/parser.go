package mealie

import (
	"context"
	"fmt"
	"net/http"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/service"
)

// ParseIngredients sends free-text lines to the recipe manager's parser.
// The result has one entry per line; Index is the position in lines.
func (c *Client) ParseIngredients(ctx context.Context, lines []string, strategy service.ParseStrategy) ([]model.ParsedIngredient, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	if strategy == "" {
		strategy = service.ParseNLP
	}

	var resp []parsedPayload
	req := parseRequest{Parser: string(strategy), Language: c.language, Ingredients: lines}
	if err := c.sendJSON(ctx, http.MethodPost, "/api/parser/ingredients", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse ingredients with %s: %w", strategy, err)
	}
	if len(resp) != len(lines) {
		return nil, fmt.Errorf("parser returned %d results for %d lines", len(resp), len(lines))
	}

	out := make([]model.ParsedIngredient, len(resp))
	for i, p := range resp {
		out[i] = model.ParsedIngredient{
			Index:      i,
			Input:      lines[i],
			Quantity:   p.Ingredient.Quantity,
			Note:       p.Ingredient.Note,
			Confidence: p.Confidence.Average,
		}
		if p.Ingredient.Food != nil {
			out[i].Food = p.Ingredient.Food.Name
		}
		if p.Ingredient.Unit != nil {
			out[i].Unit = p.Ingredient.Unit.Name
		}
	}
	return out, nil
}

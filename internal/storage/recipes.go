package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/common"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
)

// FetchRecord loads a recipe with its ingredients, instructions and
// tag, tool and category names.
func (s *Store) FetchRecord(ctx context.Context, slug string) (*model.Recipe, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(slug, "slug"); err != nil {
		return nil, err
	}

	var (
		r           model.Recipe
		description sql.NullString
		orgURL      sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, slug, name, description, org_url FROM recipes WHERE slug = ?`, slug,
	).Scan(&r.ID, &r.Slug, &r.Name, &description, &orgURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("recipe %q: %w", slug, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load recipe %q: %w", slug, err)
	}
	r.Description = description.String
	r.OrgURL = orgURL.String

	if r.Ingredients, err = s.loadIngredients(ctx, r.ID); err != nil {
		return nil, err
	}
	if r.Instructions, err = s.loadInstructions(ctx, r.ID); err != nil {
		return nil, err
	}
	if r.Tags, err = s.loadNames(ctx, tagsCollection, r.ID); err != nil {
		return nil, err
	}
	if r.Tools, err = s.loadNames(ctx, toolsCollection, r.ID); err != nil {
		return nil, err
	}
	if r.Categories, err = s.loadNames(ctx, categoriesCollection, r.ID); err != nil {
		return nil, err
	}

	return &r, nil
}

func (s *Store) loadIngredients(ctx context.Context, recipeID string) ([]model.Ingredient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.note, i.original_text, i.quantity, f.name, u.name
		FROM recipes_ingredients i
		LEFT JOIN ingredient_foods f ON f.id = i.food_id
		LEFT JOIN ingredient_units u ON u.id = i.unit_id
		WHERE i.recipe_id = ?
		ORDER BY i.position, i.id`, recipeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingredients: %w", err)
	}
	defer rows.Close()

	var out []model.Ingredient
	for rows.Next() {
		var note, original, food, unit sql.NullString
		var quantity sql.NullFloat64
		if err := rows.Scan(&note, &original, &quantity, &food, &unit); err != nil {
			return nil, fmt.Errorf("failed to scan ingredient: %w", err)
		}
		out = append(out, model.Ingredient{
			Note:         note.String,
			OriginalText: original.String,
			Quantity:     quantity.Float64,
			Food:         food.String,
			Unit:         unit.String,
		})
	}
	return out, rows.Err()
}

func (s *Store) loadInstructions(ctx context.Context, recipeID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT text FROM recipe_instructions WHERE recipe_id = ? ORDER BY position`, recipeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query instructions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var text sql.NullString
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("failed to scan instruction: %w", err)
		}
		out = append(out, text.String)
	}
	return out, rows.Err()
}

func (s *Store) loadNames(ctx context.Context, c collection, recipeID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, c.namesQuery(), recipeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c.table, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", c.table, err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/common"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/pattern"
	"github.com/google/uuid"
)

// collection describes a named entity linked to recipes through a join table.
type collection struct {
	table  string
	link   string
	column string
	insert string
}

var (
	tagsCollection = collection{
		table:  "tags",
		link:   "recipes_to_tags",
		column: "tag_id",
		insert: `INSERT INTO tags (id, group_id, name, slug) VALUES (?, ?, ?, ?)`,
	}
	toolsCollection = collection{
		table:  "tools",
		link:   "recipes_to_tools",
		column: "tool_id",
		insert: `INSERT INTO tools (id, group_id, name, slug, on_hand) VALUES (?, ?, ?, ?, 0)`,
	}
	categoriesCollection = collection{
		table:  "categories",
		link:   "recipes_to_categories",
		column: "category_id",
		insert: `INSERT INTO categories (id, group_id, name, slug) VALUES (?, ?, ?, ?)`,
	}
)

func collectionFor(target model.Target) collection {
	switch target {
	case model.TargetTools:
		return toolsCollection
	case model.TargetCategories:
		return categoriesCollection
	default:
		return tagsCollection
	}
}

// #nosec G201 - identifiers come from the fixed collections above.
func (c collection) namesQuery() string {
	return fmt.Sprintf(`SELECT t.name FROM %s t JOIN %s l ON l.%s = t.id WHERE l.recipe_id = ? ORDER BY t.name`,
		c.table, c.link, c.column)
}

func (c collection) findQuery() string {
	return fmt.Sprintf(`SELECT id FROM %s WHERE group_id = ? AND (LOWER(name) = LOWER(?) OR slug = ?) ORDER BY name = ? DESC LIMIT 1`, c.table)
}

func (c collection) linkQuery() string {
	return fmt.Sprintf(`INSERT INTO %[1]s (recipe_id, %[2]s) SELECT ?, ? WHERE NOT EXISTS (SELECT 1 FROM %[1]s WHERE recipe_id = ? AND %[2]s = ?)`,
		c.link, c.column)
}

type recipeRef struct {
	id      string
	groupID string
}

func lookupRecipe(ctx context.Context, tx *sql.Tx, slug string) (recipeRef, error) {
	var ref recipeRef
	err := tx.QueryRowContext(ctx, `SELECT id, group_id FROM recipes WHERE slug = ?`, slug).Scan(&ref.id, &ref.groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return ref, fmt.Errorf("recipe %q: %w", slug, common.ErrNotFound)
	}
	if err != nil {
		return ref, fmt.Errorf("failed to look up recipe %q: %w", slug, err)
	}
	return ref, nil
}

// ensure returns the id of the named row, creating it when missing.
func (c collection) ensure(ctx context.Context, tx *sql.Tx, groupID, name string) (string, bool, error) {
	slug := pattern.Slugify(name)

	var id string
	err := tx.QueryRowContext(ctx, c.findQuery(), groupID, name, slug, name).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", false, fmt.Errorf("failed to look up %s %q: %w", c.table, name, err)
	}

	id = uuid.NewString()
	if _, err := tx.ExecContext(ctx, c.insert, id, groupID, name, slug); err != nil {
		return "", false, fmt.Errorf("failed to create %s %q: %w", c.table, name, err)
	}
	return id, true, nil
}

// ApplyTags links every name in the update to the recipe, creating missing
// tags, tools and categories. Existing links are never removed.
func (s *Store) ApplyTags(ctx context.Context, slug string, update model.TagUpdate) (model.Outcome, error) {
	var outcome model.Outcome
	if err := validateString(slug, "slug"); err != nil {
		return outcome, err
	}
	if update.Empty() {
		return outcome, nil
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ref, err := lookupRecipe(ctx, tx, slug)
		if err != nil {
			return err
		}

		for _, target := range []model.Target{model.TargetTags, model.TargetTools, model.TargetCategories} {
			c := collectionFor(target)
			for _, name := range update.Names(target) {
				id, created, err := c.ensure(ctx, tx, ref.groupID, name)
				if err != nil {
					return err
				}
				if created {
					outcome.Created++
				}
				res, err := tx.ExecContext(ctx, c.linkQuery(), ref.id, id, ref.id, id)
				if err != nil {
					return fmt.Errorf("failed to link %s %q: %w", c.table, name, err)
				}
				if n, _ := res.RowsAffected(); n > 0 {
					outcome.Added += int(n)
				}
			}
		}
		return nil
	})
	if err != nil {
		return model.Outcome{}, err
	}

	outcome.Changed = outcome.Added > 0
	slog.Debug("Applied tags", "slug", slug, "added", outcome.Added, "created", outcome.Created)
	return outcome, nil
}

// ensureFoodOrUnit finds a food or unit by name, creating it when missing.
func ensureFoodOrUnit(ctx context.Context, tx *sql.Tx, table, groupID, name string) (any, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, nil
	}

	var id string
	// #nosec G201 - table is ingredient_foods or ingredient_units
	err := tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE group_id = ? AND LOWER(name) = LOWER(?) LIMIT 1`, table),
		groupID, name,
	).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to look up %s %q: %w", table, name, err)
	}

	id = uuid.NewString()
	// #nosec G201 - table is ingredient_foods or ingredient_units
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, group_id, name) VALUES (?, ?, ?)`, table),
		id, groupID, name,
	); err != nil {
		return nil, false, fmt.Errorf("failed to create %s %q: %w", table, name, err)
	}
	return id, true, nil
}

// ApplyParsed replaces free-text ingredient lines with structured ones.
// Lines that gained structure since they were read are left untouched.
func (s *Store) ApplyParsed(ctx context.Context, slug string, parsed []model.ParsedIngredient) (model.Outcome, error) {
	var outcome model.Outcome
	if err := validateString(slug, "slug"); err != nil {
		return outcome, err
	}
	if len(parsed) == 0 {
		return outcome, nil
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ref, err := lookupRecipe(ctx, tx, slug)
		if err != nil {
			return err
		}

		rowIDs, err := ingredientRowIDs(ctx, tx, ref.id)
		if err != nil {
			return err
		}
		if err := model.ValidateParsed(parsed, len(rowIDs)); err != nil {
			return err
		}

		for _, p := range parsed {
			foodID, foodCreated, err := ensureFoodOrUnit(ctx, tx, "ingredient_foods", ref.groupID, p.Food)
			if err != nil {
				return err
			}
			unitID, unitCreated, err := ensureFoodOrUnit(ctx, tx, "ingredient_units", ref.groupID, p.Unit)
			if err != nil {
				return err
			}
			if foodCreated {
				outcome.Created++
			}
			if unitCreated {
				outcome.Created++
			}

			res, err := tx.ExecContext(ctx, `
				UPDATE recipes_ingredients
				SET food_id = ?, unit_id = ?, quantity = ?, note = ?,
				    original_text = CASE WHEN TRIM(COALESCE(original_text, '')) = '' THEN ? ELSE original_text END
				WHERE id = ? AND food_id IS NULL AND unit_id IS NULL`,
				foodID, unitID, p.Quantity, p.Note, p.Input, rowIDs[p.Index],
			)
			if err != nil {
				return fmt.Errorf("failed to update ingredient %d: %w", p.Index, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				outcome.Added += int(n)
			}
		}
		return nil
	})
	if err != nil {
		return model.Outcome{}, err
	}

	outcome.Changed = outcome.Added > 0
	slog.Debug("Applied parsed ingredients", "slug", slug, "updated", outcome.Added, "created", outcome.Created)
	return outcome, nil
}

func ingredientRowIDs(ctx context.Context, tx *sql.Tx, recipeID string) ([]int64, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM recipes_ingredients WHERE recipe_id = ? ORDER BY position, id`, recipeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingredient rows: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan ingredient row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

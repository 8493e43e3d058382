package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/common"
)

// requiredColumns lists every table and column this package reads or writes.
var requiredColumns = map[string][]string{
	"recipes":               {"id", "group_id", "slug", "name", "description", "org_url"},
	"recipes_ingredients":   {"id", "position", "recipe_id", "note", "unit_id", "food_id", "quantity", "original_text"},
	"recipe_instructions":   {"recipe_id", "position", "text"},
	"ingredient_foods":      {"id", "group_id", "name"},
	"ingredient_units":      {"id", "group_id", "name"},
	"tags":                  {"id", "group_id", "name", "slug"},
	"recipes_to_tags":       {"recipe_id", "tag_id"},
	"tools":                 {"id", "group_id", "name", "slug", "on_hand"},
	"recipes_to_tools":      {"recipe_id", "tool_id"},
	"categories":            {"id", "group_id", "name", "slug"},
	"recipes_to_categories": {"recipe_id", "category_id"},
}

// verifySchema fails with common.ErrSchemaMismatch when any table or column
// is missing. Extra tables and columns are fine.
func (s *Store) verifySchema(ctx context.Context) error {
	tables := make([]string, 0, len(requiredColumns))
	for t := range requiredColumns {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	var problems []string
	for _, table := range tables {
		cols, err := s.tableColumns(ctx, table)
		if err != nil {
			return fmt.Errorf("%w: inspecting %s: %w", common.ErrConnection, table, err)
		}
		if len(cols) == 0 {
			problems = append(problems, "missing table "+table)
			continue
		}
		for _, col := range requiredColumns[table] {
			if !cols[col] {
				problems = append(problems, fmt.Sprintf("missing column %s.%s", table, col))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", common.ErrSchemaMismatch, strings.Join(problems, "; "))
	}
	return nil
}

func (s *Store) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	// #nosec G201 - table names come from requiredColumns
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue any
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

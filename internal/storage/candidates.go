package storage

import (
	"context"
	"fmt"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/service"
)

// candidatePageSize bounds how many slugs are held in memory at once.
const candidatePageSize = 500

// unparsedCondition matches recipes with at least one free-text ingredient
// line: text present and neither food nor unit attached.
const unparsedCondition = `EXISTS (
	SELECT 1 FROM recipes_ingredients i
	LEFT JOIN ingredient_foods f ON f.id = i.food_id
	LEFT JOIN ingredient_units u ON u.id = i.unit_id
	WHERE i.recipe_id = r.id
	  AND COALESCE(f.name, '') = ''
	  AND COALESCE(u.name, '') = ''
	  AND TRIM(CASE WHEN TRIM(COALESCE(i.original_text, '')) <> '' THEN i.original_text ELSE COALESCE(i.note, '') END) <> ''
)`

func candidateQuery(need service.Need) (string, error) {
	var cond string
	switch need {
	case service.NeedAll, "":
		cond = "1 = 1"
	case service.NeedUnparsed:
		cond = unparsedCondition
	case service.NeedUntagged:
		cond = `NOT EXISTS (SELECT 1 FROM recipes_to_tags rt WHERE rt.recipe_id = r.id)`
	case service.NeedUncategorized:
		cond = `NOT EXISTS (SELECT 1 FROM recipes_to_categories rc WHERE rc.recipe_id = r.id)`
	default:
		return "", fmt.Errorf("unknown candidate filter %q", need)
	}
	return `SELECT r.slug FROM recipes r WHERE r.slug > ? AND ` + cond + ` ORDER BY r.slug LIMIT ?`, nil
}

// FetchCandidates returns a keyset-paginated cursor over matching slugs.
// Each page is read in full so the single connection stays free for writes
// between pages.
func (s *Store) FetchCandidates(ctx context.Context, filter service.Filter) (service.Cursor, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	query, err := candidateQuery(filter.Need)
	if err != nil {
		return nil, err
	}
	return &cursor{store: s, query: query, after: filter.After}, nil
}

type cursor struct {
	err     error
	store   *Store
	query   string
	after   string
	current string
	page    []string
	done    bool
	closed  bool
}

func (c *cursor) Next(ctx context.Context) bool {
	if c.closed || c.err != nil {
		return false
	}
	if len(c.page) == 0 {
		if c.done {
			return false
		}
		if err := c.fetch(ctx); err != nil {
			c.err = err
			return false
		}
		if len(c.page) == 0 {
			return false
		}
	}
	c.current, c.page = c.page[0], c.page[1:]
	c.after = c.current
	return true
}

func (c *cursor) fetch(ctx context.Context) error {
	rows, err := c.store.db.QueryContext(ctx, c.query, c.after, candidatePageSize)
	if err != nil {
		return fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	page := make([]string, 0, candidatePageSize)
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return fmt.Errorf("failed to scan candidate: %w", err)
		}
		page = append(page, slug)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate candidates: %w", err)
	}

	c.page = page
	c.done = len(page) < candidatePageSize
	return nil
}

func (c *cursor) Slug() string { return c.current }

func (c *cursor) Err() error { return c.err }

func (c *cursor) Close() error {
	c.closed = true
	c.page = nil
	return nil
}

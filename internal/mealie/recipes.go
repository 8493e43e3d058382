package mealie

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/service"
)

func recipePath(slug string) string {
	return "/api/recipes/" + url.PathEscape(slug)
}

// FetchRecord loads one recipe by slug.
func (c *Client) FetchRecord(ctx context.Context, slug string) (*model.Recipe, error) {
	if strings.TrimSpace(slug) == "" {
		return nil, fmt.Errorf("slug is required")
	}
	var p recipePayload
	if err := c.getJSON(ctx, recipePath(slug), nil, &p); err != nil {
		return nil, err
	}
	return p.toModel(), nil
}

// FetchCandidates walks the recipe listing in slug order. Untagged and
// uncategorized filters are answered from the listing itself; the unparsed
// filter needs every recipe's ingredients and fetches each one.
func (c *Client) FetchCandidates(_ context.Context, filter service.Filter) (service.Cursor, error) {
	switch filter.Need {
	case service.NeedAll, service.NeedUnparsed, service.NeedUntagged, service.NeedUncategorized, "":
	default:
		return nil, fmt.Errorf("unknown candidate filter %q", filter.Need)
	}
	return &cursor{client: c, filter: filter}, nil
}

type cursor struct {
	err     error
	client  *Client
	filter  service.Filter
	current string
	buf     []summary
	page    int
	done    bool
	closed  bool
}

func (cur *cursor) Next(ctx context.Context) bool {
	for !cur.closed && cur.err == nil {
		if len(cur.buf) == 0 {
			if cur.done {
				return false
			}
			if err := cur.fetch(ctx); err != nil {
				cur.err = err
				return false
			}
			continue
		}

		s := cur.buf[0]
		cur.buf = cur.buf[1:]
		if s.Slug <= cur.filter.After {
			continue
		}
		ok, err := cur.wanted(ctx, s)
		if err != nil {
			cur.err = err
			return false
		}
		if ok {
			cur.current = s.Slug
			return true
		}
	}
	return false
}

func (cur *cursor) wanted(ctx context.Context, s summary) (bool, error) {
	switch cur.filter.Need {
	case service.NeedUntagged:
		return len(s.Tags) == 0, nil
	case service.NeedUncategorized:
		return len(s.RecipeCategory) == 0, nil
	case service.NeedUnparsed:
		r, err := cur.client.FetchRecord(ctx, s.Slug)
		if err != nil {
			return false, fmt.Errorf("failed to inspect %s: %w", s.Slug, err)
		}
		return !r.Parsed(), nil
	default:
		return true, nil
	}
}

func (cur *cursor) fetch(ctx context.Context) error {
	cur.page++
	q := url.Values{
		"page":           {strconv.Itoa(cur.page)},
		"perPage":        {strconv.Itoa(cur.client.pageSize)},
		"orderBy":        {"slug"},
		"orderDirection": {"asc"},
	}
	var p page[summary]
	if err := cur.client.getJSON(ctx, "/api/recipes", q, &p); err != nil {
		return fmt.Errorf("failed to list recipes: %w", err)
	}
	cur.buf = p.Items
	cur.done = len(p.Items) == 0 || cur.page >= p.TotalPages
	return nil
}

func (cur *cursor) Slug() string { return cur.current }

func (cur *cursor) Err() error { return cur.err }

func (cur *cursor) Close() error {
	cur.closed = true
	cur.buf = nil
	return nil
}

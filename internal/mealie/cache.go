package mealie

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

type organizerKind string

const (
	organizerTags       organizerKind = "tags"
	organizerTools      organizerKind = "tools"
	organizerCategories organizerKind = "categories"
)

// nameCache maps names to server-side refs for one collection endpoint.
// It is primed on first use and kept for the rest of the run.
type nameCache struct {
	byName map[string]ref
	path   string
	mu     sync.Mutex
	primed bool
}

func newNameCache(path string) *nameCache {
	return &nameCache{path: path, byName: make(map[string]ref)}
}

func cacheKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ensure returns the ref called name, creating it on the server when it does
// not exist yet. The bool reports whether it was created.
func (nc *nameCache) ensure(ctx context.Context, c *Client, name string) (ref, bool, error) {
	nc.mu.Lock()
	defer nc.mu.Unlock()

	if err := nc.prime(ctx, c); err != nil {
		return ref{}, false, err
	}
	if r, ok := nc.byName[cacheKey(name)]; ok {
		return r, false, nil
	}

	var created ref
	if err := c.sendJSON(ctx, http.MethodPost, nc.path, map[string]string{"name": strings.TrimSpace(name)}, &created); err != nil {
		return ref{}, false, fmt.Errorf("failed to create %q at %s: %w", name, nc.path, err)
	}
	nc.byName[cacheKey(created.Name)] = created
	return created, true, nil
}

// prime loads every page of the collection. Callers hold nc.mu.
func (nc *nameCache) prime(ctx context.Context, c *Client) error {
	if nc.primed {
		return nil
	}
	for n := 1; ; n++ {
		var p page[ref]
		q := url.Values{"page": {strconv.Itoa(n)}, "perPage": {strconv.Itoa(c.pageSize)}}
		if err := c.getJSON(ctx, nc.path, q, &p); err != nil {
			return fmt.Errorf("failed to list %s: %w", nc.path, err)
		}
		for _, r := range p.Items {
			if _, dup := nc.byName[cacheKey(r.Name)]; !dup {
				nc.byName[cacheKey(r.Name)] = r
			}
		}
		if len(p.Items) == 0 || n >= p.TotalPages {
			break
		}
	}
	nc.primed = true
	return nil
}

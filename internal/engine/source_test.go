package engine

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/common"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/service"
)

// memSource is an in-memory service.Source.
type memSource struct {
	recipes map[string]model.Recipe
	// applyErr, when set, fails ApplyTags/ApplyParsed for a slug.
	applyErr func(slug string) error
	applies  map[string]int
	applied  map[string]model.TagUpdate
	parsed   map[string][]model.ParsedIngredient
	slugs    []string
	mu       sync.Mutex
	// repeat emits every slug this many times.
	repeat int
	direct bool
	// yielded counts slugs handed out by all cursors.
	yielded atomic.Int64
}

func newMemSource(recipes ...model.Recipe) *memSource {
	s := &memSource{
		recipes: make(map[string]model.Recipe, len(recipes)),
		applies: make(map[string]int),
		applied: make(map[string]model.TagUpdate),
		parsed:  make(map[string][]model.ParsedIngredient),
		repeat:  1,
	}
	for _, r := range recipes {
		s.recipes[r.Slug] = r
		s.slugs = append(s.slugs, r.Slug)
	}
	sort.Strings(s.slugs)
	return s
}

func (s *memSource) FetchCandidates(_ context.Context, filter service.Filter) (service.Cursor, error) {
	var slugs []string
	for _, slug := range s.slugs {
		if filter.After != "" && slug <= filter.After {
			continue
		}
		for i := 0; i < s.repeat; i++ {
			slugs = append(slugs, slug)
		}
	}
	return &sliceCursor{slugs: slugs, pos: -1, yielded: &s.yielded}, nil
}

func (s *memSource) FetchRecord(_ context.Context, slug string) (*model.Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recipes[slug]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &r, nil
}

func (s *memSource) ApplyTags(_ context.Context, slug string, update model.TagUpdate) (model.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applies[slug]++
	if s.applyErr != nil {
		if err := s.applyErr(slug); err != nil {
			return model.Outcome{}, err
		}
	}
	prev := s.applied[slug]
	prev.Merge(update)
	s.applied[slug] = prev
	return model.Outcome{Added: update.Count(), Changed: !update.Empty()}, nil
}

func (s *memSource) ApplyParsed(_ context.Context, slug string, parsed []model.ParsedIngredient) (model.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applies[slug]++
	if s.applyErr != nil {
		if err := s.applyErr(slug); err != nil {
			return model.Outcome{}, err
		}
	}
	s.parsed[slug] = parsed
	return model.Outcome{Added: len(parsed), Changed: len(parsed) > 0}, nil
}

func (s *memSource) Applies(slug string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applies[slug]
}

func (s *memSource) TotalApplies() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.applies {
		total += n
	}
	return total
}

func (s *memSource) Name() string       { return "memory" }
func (s *memSource) DirectWrites() bool { return s.direct }
func (s *memSource) Close() error       { return nil }

type sliceCursor struct {
	err     error
	yielded *atomic.Int64
	slugs   []string
	pos     int
}

func (c *sliceCursor) Next(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	c.pos++
	if c.pos >= len(c.slugs) {
		return false
	}
	if c.yielded != nil {
		c.yielded.Add(1)
	}
	return true
}

func (c *sliceCursor) Slug() string { return c.slugs[c.pos] }
func (c *sliceCursor) Err() error   { return c.err }
func (c *sliceCursor) Close() error { return nil }

// stubParser answers per line and strategy.
type stubParser struct {
	answer func(line string, strategy service.ParseStrategy) model.ParsedIngredient
	err    map[service.ParseStrategy]error
	calls  map[service.ParseStrategy]int
	mu     sync.Mutex
}

func (p *stubParser) ParseIngredients(_ context.Context, lines []string, strategy service.ParseStrategy) ([]model.ParsedIngredient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = make(map[service.ParseStrategy]int)
	}
	p.calls[strategy]++
	if err := p.err[strategy]; err != nil {
		return nil, err
	}
	out := make([]model.ParsedIngredient, len(lines))
	for i, line := range lines {
		out[i] = p.answer(line, strategy)
		out[i].Index = i
		out[i].Input = line
	}
	return out, nil
}

// stubEscalator returns a fixed result.
type stubEscalator struct {
	err    error
	result model.ClassificationResult
	calls  int
	mu     sync.Mutex
}

func (e *stubEscalator) Escalate(_ context.Context, _ *model.Recipe, _ map[model.Category][]string) (model.ClassificationResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return e.result, e.err
}

type staticConfirmer bool

func (c staticConfirmer) ConfirmInactive(context.Context) (bool, error) { return bool(c), nil }

type okProber struct{}

func (okProber) ProbeWriteLock(context.Context) error { return nil }

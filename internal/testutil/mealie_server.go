package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
	"github.com/google/uuid"
)

// Token is the bearer credential the fake server accepts.
const Token = "test-token"

type namedRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

type ingredientJSON struct {
	Quantity     float64   `json:"quantity"`
	Unit         *namedRef `json:"unit"`
	Food         *namedRef `json:"food"`
	Note         string    `json:"note"`
	OriginalText string    `json:"originalText,omitempty"`
	ReferenceID  string    `json:"referenceId,omitempty"`
	Display      string    `json:"display,omitempty"`
}

type instructionJSON struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type recipeJSON struct {
	ID                 string            `json:"id"`
	Slug               string            `json:"slug"`
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	OrgURL             string            `json:"orgURL"`
	RecipeIngredient   []ingredientJSON  `json:"recipeIngredient"`
	RecipeInstructions []instructionJSON `json:"recipeInstructions"`
	Tags               []namedRef        `json:"tags"`
	Tools              []namedRef        `json:"tools"`
	RecipeCategory     []namedRef        `json:"recipeCategory"`
	Rating             int               `json:"rating"`
}

type patchJSON struct {
	Tags             *[]namedRef       `json:"tags"`
	Tools            *[]namedRef       `json:"tools"`
	RecipeCategory   *[]namedRef       `json:"recipeCategory"`
	RecipeIngredient *[]ingredientJSON `json:"recipeIngredient"`
}

// ParsedLine is what the fake parser returns for one line.
type ParsedLine struct {
	Food       string
	Unit       string
	Quantity   float64
	Confidence float64
}

// MealieServer is an in-memory fake of the recipe manager's REST API.
type MealieServer struct {
	*httptest.Server

	// Parse answers parser requests; the default returns every line as a
	// food with confidence 0.9.
	Parse func(line string, parser string) ParsedLine
	// Fail, when set, can force a status code for any request.
	Fail func(r *http.Request) int

	recipes    map[string]*recipeJSON
	organizers map[string][]namedRef
	foods      []namedRef
	units      []namedRef
	requests   map[string]int
	mu         sync.Mutex
}

// NewMealieServer starts a fake API serving the given recipes.
func NewMealieServer(t testing.TB, recipes ...model.Recipe) *MealieServer {
	t.Helper()

	s := &MealieServer{
		recipes:    make(map[string]*recipeJSON, len(recipes)),
		organizers: make(map[string][]namedRef),
		requests:   make(map[string]int),
		Parse: func(line string, _ string) ParsedLine {
			return ParsedLine{Food: line, Confidence: 0.9}
		},
	}
	for _, r := range recipes {
		s.put(r)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/recipes", s.handleList)
	mux.HandleFunc("GET /api/recipes/{slug}", s.handleGet)
	mux.HandleFunc("PATCH /api/recipes/{slug}", s.handlePatch)
	mux.HandleFunc("POST /api/parser/ingredients", s.handleParse)
	mux.HandleFunc("GET /api/foods", func(w http.ResponseWriter, r *http.Request) { s.handleNamed(w, r, &s.foods) })
	mux.HandleFunc("GET /api/units", func(w http.ResponseWriter, r *http.Request) { s.handleNamed(w, r, &s.units) })
	mux.HandleFunc("POST /api/foods", func(w http.ResponseWriter, r *http.Request) { s.handleCreateNamed(w, r, &s.foods) })
	mux.HandleFunc("POST /api/units", func(w http.ResponseWriter, r *http.Request) { s.handleCreateNamed(w, r, &s.units) })
	mux.HandleFunc("GET /api/organizers/{kind}", s.handleOrganizers)
	mux.HandleFunc("POST /api/organizers/{kind}", s.handleCreateOrganizer)

	s.Server = httptest.NewServer(s.middleware(mux))
	t.Cleanup(s.Close)
	return s
}

// AddFood registers a known food.
func (s *MealieServer) AddFood(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.foods = append(s.foods, namedRef{ID: id, Name: name})
	return id
}

// AddUnit registers a known unit.
func (s *MealieServer) AddUnit(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.units = append(s.units, namedRef{ID: id, Name: name})
	return id
}

// Requests returns how many requests matched "METHOD /path".
func (s *MealieServer) Requests(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[key]
}

// Recipe returns the current server-side state of a recipe.
func (s *MealieServer) Recipe(slug string) (model.Recipe, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rj, ok := s.recipes[slug]
	if !ok {
		return model.Recipe{}, false
	}
	return toModel(rj), true
}

func (s *MealieServer) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[r.Method+" "+r.URL.Path]++
		s.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer "+Token {
			http.Error(w, `{"detail":"Not authenticated"}`, http.StatusUnauthorized)
			return
		}
		if s.Fail != nil {
			if code := s.Fail(r); code != 0 {
				http.Error(w, `{"detail":"injected failure"}`, code)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *MealieServer) put(r model.Recipe) {
	rj := &recipeJSON{
		ID:          r.ID,
		Slug:        r.Slug,
		Name:        r.Name,
		Description: r.Description,
		OrgURL:      r.OrgURL,
		Rating:      5,
	}
	if rj.ID == "" {
		rj.ID = uuid.NewString()
	}
	for _, ing := range r.Ingredients {
		ij := ingredientJSON{
			Quantity:     ing.Quantity,
			Note:         ing.Note,
			OriginalText: ing.OriginalText,
			ReferenceID:  uuid.NewString(),
		}
		if ing.Food != "" {
			ij.Food = &namedRef{ID: uuid.NewString(), Name: ing.Food}
		}
		if ing.Unit != "" {
			ij.Unit = &namedRef{ID: uuid.NewString(), Name: ing.Unit}
		}
		rj.RecipeIngredient = append(rj.RecipeIngredient, ij)
	}
	for _, step := range r.Instructions {
		rj.RecipeInstructions = append(rj.RecipeInstructions, instructionJSON{ID: uuid.NewString(), Text: step})
	}
	rj.Tags = s.refs("tags", r.Tags)
	rj.Tools = s.refs("tools", r.Tools)
	rj.RecipeCategory = s.refs("categories", r.Categories)
	s.recipes[r.Slug] = rj
}

// refs resolves names to organizers of one kind, creating them as needed.
// The caller holds s.mu or owns s exclusively.
func (s *MealieServer) refs(kind string, names []string) []namedRef {
	out := make([]namedRef, 0, len(names))
	for _, n := range names {
		out = append(out, s.organizer(kind, n))
	}
	return out
}

func (s *MealieServer) organizer(kind, name string) namedRef {
	for _, o := range s.organizers[kind] {
		if strings.EqualFold(o.Name, name) {
			return o
		}
	}
	o := namedRef{ID: uuid.NewString(), Name: name, Slug: strings.ReplaceAll(strings.ToLower(name), " ", "-")}
	s.organizers[kind] = append(s.organizers[kind], o)
	return o
}

// Organizers returns the names of every tag, tool or category the server knows.
func (s *MealieServer) Organizers(kind string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.organizers[kind]))
	for _, o := range s.organizers[kind] {
		names = append(names, o.Name)
	}
	sort.Strings(names)
	return names
}

func toModel(rj *recipeJSON) model.Recipe {
	r := model.Recipe{ID: rj.ID, Slug: rj.Slug, Name: rj.Name, Description: rj.Description, OrgURL: rj.OrgURL}
	for _, ij := range rj.RecipeIngredient {
		ing := model.Ingredient{Quantity: ij.Quantity, Note: ij.Note, OriginalText: ij.OriginalText, ReferenceID: ij.ReferenceID}
		if ij.Food != nil {
			ing.Food = ij.Food.Name
		}
		if ij.Unit != nil {
			ing.Unit = ij.Unit.Name
		}
		r.Ingredients = append(r.Ingredients, ing)
	}
	for _, step := range rj.RecipeInstructions {
		r.Instructions = append(r.Instructions, step.Text)
	}
	for _, t := range rj.Tags {
		r.Tags = append(r.Tags, t.Name)
	}
	for _, t := range rj.Tools {
		r.Tools = append(r.Tools, t.Name)
	}
	for _, c := range rj.RecipeCategory {
		r.Categories = append(r.Categories, c.Name)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func pageParams(r *http.Request) (page, perPage int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ = strconv.Atoi(r.URL.Query().Get("perPage"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 50
	}
	return page, perPage
}

func pageOf[T any](items []T, page, perPage int) map[string]any {
	total := len(items)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return map[string]any{
		"page":        page,
		"per_page":    perPage,
		"total":       total,
		"total_pages": (total + perPage - 1) / perPage,
		"items":       items[start:end],
		"next":        nil,
	}
}

func (s *MealieServer) handleList(w http.ResponseWriter, r *http.Request) {
	page, perPage := pageParams(r)

	s.mu.Lock()
	slugs := make([]string, 0, len(s.recipes))
	for slug := range s.recipes {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	// Summaries carry tags and categories but not ingredients.
	items := make([]map[string]any, 0, len(slugs))
	for _, slug := range slugs {
		rj := s.recipes[slug]
		items = append(items, map[string]any{
			"id":             rj.ID,
			"slug":           rj.Slug,
			"name":           rj.Name,
			"orgURL":         rj.OrgURL,
			"tags":           rj.Tags,
			"recipeCategory": rj.RecipeCategory,
			"tools":          rj.Tools,
			"dateAdded":      "2024-01-01",
		})
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, pageOf(items, page, perPage))
}

func (s *MealieServer) handleGet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rj, ok := s.recipes[r.PathValue("slug")]
	var copied recipeJSON
	if ok {
		copied = *rj
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "recipe not found"})
		return
	}
	writeJSON(w, http.StatusOK, copied)
}

func (s *MealieServer) handlePatch(w http.ResponseWriter, r *http.Request) {
	var patch patchJSON
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rj, ok := s.recipes[r.PathValue("slug")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "recipe not found"})
		return
	}
	for _, list := range []*[]namedRef{patch.Tags, patch.Tools, patch.RecipeCategory} {
		if list == nil {
			continue
		}
		for _, ref := range *list {
			if ref.ID == "" {
				writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "organizer " + ref.Name + " has no id"})
				return
			}
		}
	}
	if patch.Tags != nil {
		rj.Tags = *patch.Tags
	}
	if patch.Tools != nil {
		rj.Tools = *patch.Tools
	}
	if patch.RecipeCategory != nil {
		rj.RecipeCategory = *patch.RecipeCategory
	}
	if patch.RecipeIngredient != nil {
		rj.RecipeIngredient = *patch.RecipeIngredient
	}
	writeJSON(w, http.StatusOK, rj)
}

func (s *MealieServer) handleParse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Parser      string   `json:"parser"`
		Language    string   `json:"language"`
		Ingredients []string `json:"ingredients"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	out := make([]map[string]any, 0, len(req.Ingredients))
	for _, line := range req.Ingredients {
		p := s.Parse(line, req.Parser)
		ing := map[string]any{
			"quantity": p.Quantity,
			"note":     "",
			"unit":     nil,
			"food":     nil,
		}
		if p.Food != "" {
			ing["food"] = map[string]any{"name": p.Food}
		}
		if p.Unit != "" {
			ing["unit"] = map[string]any{"name": p.Unit}
		}
		out = append(out, map[string]any{
			"input":      line,
			"confidence": map[string]any{"average": p.Confidence, "food": p.Confidence},
			"ingredient": ing,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *MealieServer) handleNamed(w http.ResponseWriter, r *http.Request, items *[]namedRef) {
	page, perPage := pageParams(r)
	s.mu.Lock()
	copied := append([]namedRef(nil), (*items)...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, pageOf(copied, page, perPage))
}

func (s *MealieServer) handleOrganizers(w http.ResponseWriter, r *http.Request) {
	page, perPage := pageParams(r)
	s.mu.Lock()
	copied := append([]namedRef(nil), s.organizers[r.PathValue("kind")]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, pageOf(copied, page, perPage))
}

func (s *MealieServer) handleCreateOrganizer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "name is required"})
		return
	}
	s.mu.Lock()
	o := s.organizer(r.PathValue("kind"), req.Name)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, o)
}

func (s *MealieServer) handleCreateNamed(w http.ResponseWriter, r *http.Request, items *[]namedRef) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "name is required"})
		return
	}
	s.mu.Lock()
	ref := namedRef{ID: uuid.NewString(), Name: req.Name}
	*items = append(*items, ref)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, ref)
}

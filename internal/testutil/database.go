// Package testutil provides test fixtures: temporary recipe-manager databases
// and a fake recipe-manager API server.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
	"github.com/google/uuid"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// GroupID is the group every seeded row belongs to.
const GroupID = "00000000-0000-0000-0000-000000000001"

// MealieSchema is the subset of the recipe manager's schema the direct backend touches.
var MealieSchema = []string{
	`CREATE TABLE groups (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE recipes (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL REFERENCES groups(id),
		slug TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		org_url TEXT,
		UNIQUE (slug, group_id)
	)`,
	`CREATE INDEX ix_recipes_slug ON recipes(slug)`,
	`CREATE TABLE ingredient_foods (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE ingredient_units (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE recipes_ingredients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		position INTEGER,
		recipe_id TEXT NOT NULL REFERENCES recipes(id),
		title TEXT,
		note TEXT,
		unit_id TEXT REFERENCES ingredient_units(id),
		food_id TEXT REFERENCES ingredient_foods(id),
		quantity REAL,
		original_text TEXT,
		reference_id TEXT
	)`,
	`CREATE INDEX ix_recipes_ingredients_recipe ON recipes_ingredients(recipe_id)`,
	`CREATE TABLE recipe_instructions (
		id TEXT PRIMARY KEY,
		recipe_id TEXT NOT NULL REFERENCES recipes(id),
		position INTEGER,
		title TEXT,
		text TEXT
	)`,
	`CREATE TABLE tags (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		name TEXT NOT NULL,
		slug TEXT NOT NULL
	)`,
	`CREATE TABLE recipes_to_tags (
		recipe_id TEXT REFERENCES recipes(id),
		tag_id TEXT REFERENCES tags(id)
	)`,
	`CREATE TABLE tools (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		name TEXT NOT NULL,
		slug TEXT NOT NULL,
		on_hand BOOLEAN NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE recipes_to_tools (
		recipe_id TEXT REFERENCES recipes(id),
		tool_id TEXT REFERENCES tools(id)
	)`,
	`CREATE TABLE categories (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		name TEXT NOT NULL,
		slug TEXT NOT NULL
	)`,
	`CREATE TABLE recipes_to_categories (
		recipe_id TEXT REFERENCES recipes(id),
		category_id TEXT REFERENCES categories(id)
	)`,
}

// snapshotTables lists every table with a stable ordering for Snapshot.
var snapshotTables = []struct{ name, order string }{
	{"recipes", "slug"},
	{"recipes_ingredients", "recipe_id, position"},
	{"recipe_instructions", "recipe_id, position"},
	{"ingredient_foods", "name"},
	{"ingredient_units", "name"},
	{"tags", "name"},
	{"recipes_to_tags", "recipe_id, tag_id"},
	{"tools", "name"},
	{"recipes_to_tools", "recipe_id, tool_id"},
	{"categories", "name"},
	{"recipes_to_categories", "recipe_id, category_id"},
}

// Catalog is a temporary recipe-manager database.
type Catalog struct {
	DB   *sql.DB
	t    testing.TB
	Path string
}

// NewCatalog creates an empty recipe-manager database in a temp dir.
// It is closed automatically when the test ends.
func NewCatalog(t testing.TB) *Catalog {
	t.Helper()

	path := filepath.Join(t.TempDir(), "mealie.db")
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		t.Fatalf("failed to open catalog: %v", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range MealieSchema {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to create schema: %v", err)
		}
	}
	if _, err := db.Exec(`INSERT INTO groups (id, name) VALUES (?, 'Home')`, GroupID); err != nil {
		t.Fatalf("failed to seed group: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return &Catalog{DB: db, Path: path, t: t}
}

// AddRecipes inserts recipes in a single transaction. Missing ids are generated.
func (c *Catalog) AddRecipes(recipes ...model.Recipe) {
	c.t.Helper()

	tx, err := c.DB.Begin()
	if err != nil {
		c.t.Fatalf("failed to begin seed transaction: %v", err)
	}
	for i := range recipes {
		if err := insertRecipe(tx, &recipes[i]); err != nil {
			_ = tx.Rollback()
			c.t.Fatalf("failed to seed recipe %q: %v", recipes[i].Slug, err)
		}
	}
	if err := tx.Commit(); err != nil {
		c.t.Fatalf("failed to commit seed transaction: %v", err)
	}
}

func insertRecipe(tx *sql.Tx, r *model.Recipe) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if _, err := tx.Exec(
		`INSERT INTO recipes (id, group_id, slug, name, description, org_url) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, GroupID, r.Slug, r.Name, r.Description, r.OrgURL,
	); err != nil {
		return err
	}

	for i, ing := range r.Ingredients {
		foodID, err := ensureNamed(tx, "ingredient_foods", ing.Food, false)
		if err != nil {
			return err
		}
		unitID, err := ensureNamed(tx, "ingredient_units", ing.Unit, false)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO recipes_ingredients (position, recipe_id, note, unit_id, food_id, quantity, original_text, reference_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			i, r.ID, ing.Note, unitID, foodID, ing.Quantity, ing.OriginalText, uuid.NewString(),
		); err != nil {
			return err
		}
	}

	for i, step := range r.Instructions {
		if _, err := tx.Exec(
			`INSERT INTO recipe_instructions (id, recipe_id, position, text) VALUES (?, ?, ?, ?)`,
			uuid.NewString(), r.ID, i, step,
		); err != nil {
			return err
		}
	}

	links := []struct {
		table, link, column string
		names               []string
	}{
		{"tags", "recipes_to_tags", "tag_id", r.Tags},
		{"tools", "recipes_to_tools", "tool_id", r.Tools},
		{"categories", "recipes_to_categories", "category_id", r.Categories},
	}
	for _, l := range links {
		for _, name := range l.names {
			id, err := ensureNamed(tx, l.table, name, true)
			if err != nil {
				return err
			}
			// #nosec G201 - table and column names are constants
			q := fmt.Sprintf(`INSERT INTO %s (recipe_id, %s) VALUES (?, ?)`, l.link, l.column)
			if _, err := tx.Exec(q, r.ID, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// ensureNamed returns the id of the row called name, creating it if needed.
// An empty name yields a NULL id.
func ensureNamed(tx *sql.Tx, table, name string, hasSlug bool) (any, error) {
	if name == "" {
		return nil, nil
	}

	var id string
	// #nosec G201 - table name is a constant
	err := tx.QueryRow(fmt.Sprintf(`SELECT id FROM %s WHERE name = ?`, table), name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	id = uuid.NewString()
	if hasSlug {
		slug := strings.ReplaceAll(strings.ToLower(name), " ", "-")
		// #nosec G201 - table name is a constant
		_, err = tx.Exec(fmt.Sprintf(`INSERT INTO %s (id, group_id, name, slug) VALUES (?, ?, ?, ?)`, table), id, GroupID, name, slug)
	} else {
		// #nosec G201 - table name is a constant
		_, err = tx.Exec(fmt.Sprintf(`INSERT INTO %s (id, group_id, name) VALUES (?, ?, ?)`, table), id, GroupID, name)
	}
	return id, err
}

// Snapshot renders every row of every table in a stable order.
// Two equal snapshots mean the observable store state did not change.
func (c *Catalog) Snapshot() string {
	c.t.Helper()

	var b strings.Builder
	for _, tbl := range snapshotTables {
		// #nosec G201 - table names are constants
		rows, err := c.DB.QueryContext(context.Background(), fmt.Sprintf(`SELECT * FROM %s ORDER BY %s`, tbl.name, tbl.order))
		if err != nil {
			c.t.Fatalf("snapshot %s: %v", tbl.name, err)
		}
		cols, err := rows.Columns()
		if err != nil {
			c.t.Fatalf("snapshot %s: %v", tbl.name, err)
		}
		fmt.Fprintf(&b, "== %s\n", tbl.name)
		for rows.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				c.t.Fatalf("snapshot %s: %v", tbl.name, err)
			}
			for i, v := range values {
				if bs, ok := v.([]byte); ok {
					values[i] = string(bs)
				}
			}
			fmt.Fprintln(&b, values...)
		}
		if err := rows.Err(); err != nil {
			c.t.Fatalf("snapshot %s: %v", tbl.name, err)
		}
		_ = rows.Close()
	}
	return b.String()
}

// Names returns the names linked to a recipe in one collection, sorted.
func (c *Catalog) Names(slug string, target model.Target) []string {
	c.t.Helper()

	var table, link, column string
	switch target {
	case model.TargetTools:
		table, link, column = "tools", "recipes_to_tools", "tool_id"
	case model.TargetCategories:
		table, link, column = "categories", "recipes_to_categories", "category_id"
	default:
		table, link, column = "tags", "recipes_to_tags", "tag_id"
	}

	// #nosec G201 - table names are constants
	q := fmt.Sprintf(`SELECT t.name FROM %s t
		JOIN %s l ON l.%s = t.id
		JOIN recipes r ON r.id = l.recipe_id
		WHERE r.slug = ? ORDER BY t.name`, table, link, column)
	rows, err := c.DB.Query(q, slug)
	if err != nil {
		c.t.Fatalf("names for %s: %v", slug, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			c.t.Fatalf("names for %s: %v", slug, err)
		}
		names = append(names, n)
	}
	return names
}

// GenerateRecipes builds n recipes with slugs recipe-00000..; the recipes at
// the given indexes get one unparsed ingredient line, all others are parsed.
func GenerateRecipes(n int, unparsed ...int) []model.Recipe {
	free := make(map[int]bool, len(unparsed))
	for _, i := range unparsed {
		free[i] = true
	}

	recipes := make([]model.Recipe, 0, n)
	for i := 0; i < n; i++ {
		r := model.Recipe{
			Slug:         fmt.Sprintf("recipe-%05d", i),
			Name:         fmt.Sprintf("Recipe %d", i),
			Ingredients:  []model.Ingredient{{Quantity: 2, Unit: "cup", Food: "flour", Note: "sifted"}},
			Instructions: []string{"Mix.", "Bake."},
		}
		if free[i] {
			r.Ingredients = append(r.Ingredients, model.Ingredient{Note: "a pinch of salt"})
		}
		recipes = append(recipes, r)
	}
	return recipes
}

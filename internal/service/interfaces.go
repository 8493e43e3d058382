// Package service defines the interfaces for all application services.
package service

import (
	"context"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
)

// Need selects which recipes a candidate query returns.
type Need string

// Need constants.
const (
	NeedAll           Need = "all"
	NeedUnparsed      Need = "unparsed"
	NeedUntagged      Need = "untagged"
	NeedUncategorized Need = "uncategorized"
)

// Filter narrows a candidate query.
type Filter struct {
	Need Need
	// After resumes discovery after this slug; empty starts from the beginning.
	After string
}

// Cursor is a lazy sequence of recipe slugs.
// Callers must Close it even when Next returned false.
type Cursor interface {
	Next(ctx context.Context) bool
	Slug() string
	Err() error
	Close() error
}

// CandidateFinder discovers recipes that need work.
type CandidateFinder interface {
	// FetchCandidates starts a fresh cursor on every call.
	FetchCandidates(ctx context.Context, filter Filter) (Cursor, error)
}

// Source is the full data-access contract shared by every backend.
type Source interface {
	CandidateFinder

	FetchRecord(ctx context.Context, slug string) (*model.Recipe, error)
	ApplyTags(ctx context.Context, slug string, update model.TagUpdate) (model.Outcome, error)
	ApplyParsed(ctx context.Context, slug string, parsed []model.ParsedIngredient) (model.Outcome, error)

	// Name identifies the backend in logs and reports.
	Name() string
	// DirectWrites reports whether writes go straight to the store file.
	DirectWrites() bool
	Close() error
}

// ParseStrategy selects the ingredient parser used by the recipe manager.
type ParseStrategy string

// ParseStrategy constants.
const (
	ParseNLP    ParseStrategy = "nlp"
	ParseOpenAI ParseStrategy = "openai"
)

// IngredientParser turns free-text ingredient lines into structured ones.
type IngredientParser interface {
	// ParseIngredients returns one result per input line, in input order.
	ParseIngredients(ctx context.Context, lines []string, strategy ParseStrategy) ([]model.ParsedIngredient, error)
}

// Escalator asks an external AI service to classify a recipe
// when the rule engine is not confident enough.
type Escalator interface {
	Escalate(ctx context.Context, recipe *model.Recipe, vocabulary map[model.Category][]string) (model.ClassificationResult, error)
}

// LockProber checks that nothing else is writing to the store.
type LockProber interface {
	ProbeWriteLock(ctx context.Context) error
}

// Confirmer asks the operator to confirm the recipe manager is stopped.
type Confirmer interface {
	ConfirmInactive(ctx context.Context) (bool, error)
}

package engine

import (
	"context"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/service"
)

// Task is one kind of per-recipe work the pipeline can run.
type Task interface {
	// Name labels the task in logs, reports and metrics.
	Name() string
	// Need selects the candidates the task works on.
	Need() service.Need
	// Threshold is the confidence a plan needs to be applied.
	Threshold() float64
	// Plan decides what to write for a recipe. It must not write.
	Plan(ctx context.Context, recipe *model.Recipe) (Plan, error)
	// Apply writes a plan through the source.
	Apply(ctx context.Context, src service.Source, slug string, plan Plan) (model.Outcome, error)
}

// Escalating is implemented by tasks that can hand a low-confidence plan
// to an external AI service.
type Escalating interface {
	Task
	CanEscalate() bool
	// Escalate returns a replacement plan. Errors wrap common.ErrEscalation.
	Escalate(ctx context.Context, recipe *model.Recipe, plan Plan) (Plan, error)
}

// Plan is the write a task intends for one recipe.
type Plan struct {
	Added  map[model.Category][]string
	Update model.TagUpdate
	// Skip, when set, stops the item with this reason.
	Skip       string
	Parsed     []model.ParsedIngredient
	Confidence float64
}

// Empty reports whether the plan writes nothing.
func (p Plan) Empty() bool {
	return p.Update.Empty() && len(p.Parsed) == 0
}

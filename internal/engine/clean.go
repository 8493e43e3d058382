package engine

import (
	"context"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/classification"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/service"
)

// CleanTask flags junk imports and recipes with broken instructions with a
// review tag. It never deletes anything.
type CleanTask struct {
	detector  *classification.PatternDetector
	threshold float64
}

// NewCleanTask creates a clean task.
func NewCleanTask(detector *classification.PatternDetector, threshold float64) *CleanTask {
	return &CleanTask{detector: detector, threshold: threshold}
}

// Name implements Task.
func (t *CleanTask) Name() string { return "clean" }

// Need implements Task.
func (t *CleanTask) Need() service.Need { return service.NeedAll }

// Threshold implements Task.
func (t *CleanTask) Threshold() float64 { return t.threshold }

// Plan implements Task. A recipe with no findings is fully confident.
func (t *CleanTask) Plan(_ context.Context, recipe *model.Recipe) (Plan, error) {
	findings := t.detector.Inspect(recipe)
	if len(findings) == 0 {
		return Plan{Confidence: 1}, nil
	}

	plan := Plan{Update: classification.PlanReview(recipe, findings)}
	for _, f := range findings {
		if f.Confidence > plan.Confidence {
			plan.Confidence = f.Confidence
		}
	}
	if !plan.Update.Empty() {
		plan.Added = map[model.Category][]string{model.CategoryTag: plan.Update.Tags}
	}
	return plan, nil
}

// Apply implements Task.
func (t *CleanTask) Apply(ctx context.Context, src service.Source, slug string, plan Plan) (model.Outcome, error) {
	return src.ApplyTags(ctx, slug, plan.Update)
}

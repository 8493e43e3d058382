package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/common"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/pattern"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/service"
)

// ClassifyTask tags recipes from the rule set.
type ClassifyTask struct {
	rules      *pattern.RuleSet
	escalator  service.Escalator
	vocabulary map[model.Category][]string
	need       service.Need
	threshold  float64
}

// NewClassifyTask creates a classification task. escalator may be nil.
func NewClassifyTask(rules *pattern.RuleSet, escalator service.Escalator, threshold float64) *ClassifyTask {
	return &ClassifyTask{
		rules:      rules,
		escalator:  escalator,
		vocabulary: rules.Vocabulary(),
		need:       service.NeedAll,
		threshold:  threshold,
	}
}

// WithNeed narrows the candidates, for example to untagged recipes only.
func (t *ClassifyTask) WithNeed(need service.Need) *ClassifyTask {
	t.need = need
	return t
}

// Name implements Task.
func (t *ClassifyTask) Name() string { return "classify" }

// Need implements Task.
func (t *ClassifyTask) Need() service.Need { return t.need }

// Threshold implements Task.
func (t *ClassifyTask) Threshold() float64 { return t.threshold }

// Plan classifies the recipe and keeps only the names it does not carry.
func (t *ClassifyTask) Plan(_ context.Context, recipe *model.Recipe) (Plan, error) {
	return planTags(recipe, pattern.Classify(recipe, t.rules)), nil
}

// CanEscalate implements Escalating.
func (t *ClassifyTask) CanEscalate() bool { return t.escalator != nil }

// Escalate asks the AI service to pick tags from the rule vocabulary.
func (t *ClassifyTask) Escalate(ctx context.Context, recipe *model.Recipe, _ Plan) (Plan, error) {
	if t.escalator == nil {
		return Plan{}, fmt.Errorf("%w: no AI service configured", common.ErrEscalation)
	}
	result, err := t.escalator.Escalate(ctx, recipe, t.vocabulary)
	if err != nil {
		if errors.Is(err, common.ErrEscalation) {
			return Plan{}, err
		}
		return Plan{}, fmt.Errorf("%w: %w", common.ErrEscalation, err)
	}
	result.Escalated = true
	return planTags(recipe, result), nil
}

// Apply implements Task.
func (t *ClassifyTask) Apply(ctx context.Context, src service.Source, slug string, plan Plan) (model.Outcome, error) {
	return src.ApplyTags(ctx, slug, plan.Update)
}

func planTags(recipe *model.Recipe, result model.ClassificationResult) Plan {
	plan := Plan{
		Update:     pattern.Plan(recipe, result),
		Confidence: result.Confidence,
	}
	for _, m := range result.Matches {
		for _, tag := range m.Tags {
			var u model.TagUpdate
			u.Add(m.Category.Target(), tag)
			if u.Without(recipe).Empty() {
				continue
			}
			if plan.Added == nil {
				plan.Added = make(map[model.Category][]string)
			}
			plan.Added[m.Category] = append(plan.Added[m.Category], tag)
		}
	}
	return plan
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/common"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/service"
)

const skipUnresolved = "unresolved ingredient line"

// RemediateTask turns free-text ingredient lines into structured ones.
// Lines the primary parser is unsure about are re-parsed with the AI
// parser; a recipe is only written when every line resolved.
type RemediateTask struct {
	parser    service.IngredientParser
	threshold float64
}

// NewRemediateTask creates a remediation task.
func NewRemediateTask(parser service.IngredientParser, threshold float64) *RemediateTask {
	return &RemediateTask{parser: parser, threshold: threshold}
}

// Name implements Task.
func (t *RemediateTask) Name() string { return "remediate" }

// Need implements Task.
func (t *RemediateTask) Need() service.Need { return service.NeedUnparsed }

// Threshold implements Task.
func (t *RemediateTask) Threshold() float64 { return t.threshold }

// Plan parses every unparsed line with the primary strategy.
func (t *RemediateTask) Plan(ctx context.Context, recipe *model.Recipe) (Plan, error) {
	idx := recipe.UnparsedLines()
	if len(idx) == 0 {
		return Plan{Confidence: 1}, nil
	}

	parsed, err := t.parse(ctx, recipe, idx, service.ParseNLP)
	if err != nil {
		return Plan{}, err
	}
	return t.plan(parsed), nil
}

// CanEscalate implements Escalating.
func (t *RemediateTask) CanEscalate() bool { return true }

// Escalate re-parses the weak lines of plan with the AI parser and keeps
// the better answer per line.
func (t *RemediateTask) Escalate(ctx context.Context, recipe *model.Recipe, plan Plan) (Plan, error) {
	var weak []int
	for _, p := range plan.Parsed {
		if !resolved(p) || p.Confidence < t.threshold {
			weak = append(weak, p.Index)
		}
	}
	if len(weak) == 0 {
		return plan, nil
	}

	retried, err := t.parse(ctx, recipe, weak, service.ParseOpenAI)
	if err != nil {
		if errors.Is(err, common.ErrEscalation) {
			return Plan{}, err
		}
		return Plan{}, fmt.Errorf("%w: AI parser: %w", common.ErrEscalation, err)
	}

	byIndex := make(map[int]model.ParsedIngredient, len(retried))
	for _, p := range retried {
		byIndex[p.Index] = p
	}
	merged := make([]model.ParsedIngredient, len(plan.Parsed))
	for i, p := range plan.Parsed {
		merged[i] = p
		if alt, ok := byIndex[p.Index]; ok && resolved(alt) && (!resolved(p) || alt.Confidence > p.Confidence) {
			merged[i] = alt
		}
	}
	return t.plan(merged), nil
}

// Apply implements Task.
func (t *RemediateTask) Apply(ctx context.Context, src service.Source, slug string, plan Plan) (model.Outcome, error) {
	return src.ApplyParsed(ctx, slug, plan.Parsed)
}

// parse sends the lines at idx and maps the results back to recipe indexes.
func (t *RemediateTask) parse(ctx context.Context, recipe *model.Recipe, idx []int, strategy service.ParseStrategy) ([]model.ParsedIngredient, error) {
	lines := make([]string, len(idx))
	for i, n := range idx {
		lines[i] = recipe.Ingredients[n].Text()
	}

	parsed, err := t.parser.ParseIngredients(ctx, lines, strategy)
	if err != nil {
		return nil, err
	}
	if len(parsed) != len(idx) {
		return nil, fmt.Errorf("%w: parser returned %d lines for %d", common.ErrValidation, len(parsed), len(idx))
	}
	for i := range parsed {
		parsed[i].Index = idx[i]
	}
	return parsed, nil
}

// plan scores parsed lines by the weakest one. Unresolved lines count as
// zero and mark the plan skipped.
func (t *RemediateTask) plan(parsed []model.ParsedIngredient) Plan {
	plan := Plan{Parsed: parsed, Confidence: 1}
	for _, p := range parsed {
		conf := p.Confidence
		if !resolved(p) {
			conf = 0
			plan.Skip = skipUnresolved
		}
		if conf < plan.Confidence {
			plan.Confidence = conf
		}
	}
	return plan
}

func resolved(p model.ParsedIngredient) bool {
	return strings.TrimSpace(p.Food) != "" || strings.TrimSpace(p.Unit) != ""
}

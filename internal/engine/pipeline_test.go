package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/common"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/config"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/pattern"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/report"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/safety"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/service"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/testutil"
)

const flourRules = `
categories:
  - category: tag
    rules:
      - {id: baking, pattern: flour, tag: Baking, scope: ingredients}
`

func loadRules(t *testing.T, doc string) *pattern.RuleSet {
	t.Helper()
	rs, err := pattern.Load(strings.NewReader(doc), pattern.FormatYAML, t.Name())
	require.NoError(t, err)
	return rs
}

func testContext(workers int) config.ExecutionContext {
	ec := config.Default()
	ec.DryRun = false
	ec.Workers = workers
	ec.QueueSize = 2 * workers
	ec.Retry = common.RetryOptions{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
	return ec
}

// proceeding returns a governor that already passed its checks.
func proceeding(t *testing.T, cfg safety.Config) *safety.Governor {
	t.Helper()
	g := safety.New(cfg)
	require.NoError(t, g.Check(context.Background()))
	require.NoError(t, g.Proceed())
	return g
}

func newPipeline(t *testing.T, src *memSource, ec config.ExecutionContext, g *safety.Governor) *Pipeline {
	t.Helper()
	if g == nil {
		g = proceeding(t, safety.Config{DryRun: ec.DryRun})
	}
	p, err := NewPipeline(Options{Source: src, Governor: g, Context: ec})
	require.NoError(t, err)
	return p
}

func TestPipeline_RetryCeilingOnOneItem(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newMemSource(testutil.GenerateRecipes(100)...)
	flaky := "recipe-00037"
	src.applyErr = func(slug string) error {
		if slug == flaky {
			return common.Transient(errors.New("connection reset by peer"))
		}
		return nil
	}

	ec := testContext(4)
	p := newPipeline(t, src, ec, nil)
	job, err := p.Run(context.Background(), NewClassifyTask(loadRules(t, flourRules), nil, ec.Threshold))
	require.NoError(t, err)

	assert.Equal(t, 100, job.Processed())
	assert.Equal(t, 99, job.Count(model.StateSucceeded))
	assert.Equal(t, 1, job.Count(model.StateFailed))
	assert.Equal(t, ec.Retry.MaxAttempts, src.Applies(flaky))
	assert.Equal(t, ec.Retry.MaxAttempts-1, job.Retries())
	assert.Equal(t, report.ExitFailures, job.ExitCode())

	errs := job.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, flaky, errs[0].Slug)
	assert.ErrorIs(t, errs[0].Err, common.ErrMaxRetries)

	for _, slug := range src.slugs {
		if slug == flaky {
			continue
		}
		assert.Equal(t, []string{"Baking"}, src.applied[slug].Tags, slug)
	}
}

func TestPipeline_ResumeAfter(t *testing.T) {
	src := newMemSource(testutil.GenerateRecipes(10)...)
	ec := testContext(2)
	ec.After = "recipe-00006"

	p, err := NewPipeline(Options{Source: src, Governor: proceeding(t, safety.Config{}), Context: ec})
	require.NoError(t, err)

	job, err := p.Run(context.Background(), NewClassifyTask(loadRules(t, flourRules), nil, ec.Threshold))
	require.NoError(t, err)

	assert.Equal(t, 3, job.Processed())
	assert.Zero(t, src.Applies("recipe-00006"))
	assert.Equal(t, 1, src.Applies("recipe-00007"))
}

func TestPipeline_EachItemOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	for workers := 1; workers <= 8; workers++ {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			src := newMemSource(testutil.GenerateRecipes(50)...)
			src.repeat = 3

			var seen atomic.Int64
			ec := testContext(workers)
			p, err := NewPipeline(Options{
				Source:   src,
				Governor: proceeding(t, safety.Config{}),
				Context:  ec,
				OnItem:   func(*model.WorkItem) { seen.Add(1) },
			})
			require.NoError(t, err)

			job, err := p.Run(context.Background(), NewClassifyTask(loadRules(t, flourRules), nil, ec.Threshold))
			require.NoError(t, err)

			assert.Equal(t, 50, job.Processed())
			assert.Equal(t, int64(50), seen.Load())
			assert.Equal(t, 50, src.TotalApplies())
			for _, slug := range src.slugs {
				assert.Equal(t, 1, src.Applies(slug), slug)
			}
		})
	}
}

func TestPipeline_DryRunWritesNothing(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newMemSource(testutil.GenerateRecipes(20)...)
	ec := testContext(3)
	ec.DryRun = true
	p := newPipeline(t, src, ec, nil)

	job, err := p.Run(context.Background(), NewClassifyTask(loadRules(t, flourRules), nil, ec.Threshold))
	require.NoError(t, err)

	assert.Equal(t, 0, src.TotalApplies())
	assert.Equal(t, 20, job.WouldApply())
	assert.Equal(t, 20, job.Count(model.StateSucceeded))
	assert.Equal(t, map[string]int{"Baking": 20}, job.TagCounts()[model.CategoryTag])
}

func TestPipeline_NothingToAdd(t *testing.T) {
	recipes := testutil.GenerateRecipes(5)
	for i := range recipes {
		recipes[i].Tags = []string{"baking"}
	}
	src := newMemSource(recipes...)
	ec := testContext(2)
	p := newPipeline(t, src, ec, nil)

	job, err := p.Run(context.Background(), NewClassifyTask(loadRules(t, flourRules), nil, ec.Threshold))
	require.NoError(t, err)

	assert.Equal(t, 5, job.Count(model.StateSucceeded))
	assert.Equal(t, 0, src.TotalApplies())
	assert.Empty(t, job.TagCounts())
}

func TestPipeline_ConfidenceGate(t *testing.T) {
	// "pan" scores 3/7 against a 0.5 threshold.
	const panRules = `
categories:
  - category: equipment
    rules:
      - {pattern: pan, tag: Skillet}
`
	recipe := model.Recipe{Slug: "eggs", Name: "Eggs", Instructions: []string{"Heat the pan."}}

	confident := model.ClassificationResult{
		Confidence: 0.9,
		Matches: []model.CategoryMatch{
			{Category: model.CategoryEquipment, Tags: []string{"Cast Iron"}, Confidence: 0.9},
		},
	}

	tests := []struct {
		escalator  *stubEscalator
		wantErr    error
		wantState  model.ItemState
		wantReason string
		wantTools  []string
		name       string
		override   bool
		escalated  bool
	}{
		{
			name:       "no escalator skips",
			wantState:  model.StateSkipped,
			wantReason: "below confidence threshold",
		},
		{
			name:      "confident escalation applies",
			escalator: &stubEscalator{result: confident},
			wantState: model.StateSucceeded,
			wantTools: []string{"Cast Iron"},
			escalated: true,
		},
		{
			name:       "escalation over quota skips",
			escalator:  &stubEscalator{err: fmt.Errorf("%w: insufficient_quota", common.ErrEscalation)},
			wantState:  model.StateSkipped,
			wantReason: "escalation failed",
			wantErr:    common.ErrEscalation,
			escalated:  true,
		},
		{
			name:       "unsure escalation skips",
			escalator:  &stubEscalator{result: model.ClassificationResult{Confidence: 0.2}},
			wantState:  model.StateSkipped,
			wantReason: "escalation below confidence threshold",
			escalated:  true,
		},
		{
			name:      "override applies the rule result",
			override:  true,
			wantState: model.StateSucceeded,
			wantTools: []string{"Skillet"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newMemSource(recipe)
			ec := testContext(1)
			ec.Threshold = 0.5
			ec.Override = tt.override

			var items []*model.WorkItem
			p, err := NewPipeline(Options{
				Source:   src,
				Governor: proceeding(t, safety.Config{}),
				Context:  ec,
				OnItem:   func(w *model.WorkItem) { items = append(items, w) },
			})
			require.NoError(t, err)

			var escalator service.Escalator
			if tt.escalator != nil {
				escalator = tt.escalator
			}
			task := NewClassifyTask(loadRules(t, panRules), escalator, ec.Threshold)

			job, err := p.Run(context.Background(), task)
			require.NoError(t, err)
			require.Len(t, items, 1)

			item := items[0]
			assert.Equal(t, tt.wantState, item.State)
			assert.Equal(t, tt.wantReason, item.Reason)
			assert.Equal(t, tt.escalated, item.Escalated)
			if tt.wantErr != nil {
				assert.ErrorIs(t, item.Err, tt.wantErr)
			}
			assert.Equal(t, tt.wantTools, src.applied["eggs"].Tools)
			if tt.escalated {
				assert.Equal(t, 1, job.Escalations())
			}
		})
	}
}

func TestPipeline_DeclinedPreconditionWritesNothing(t *testing.T) {
	src := newMemSource(testutil.GenerateRecipes(10)...)
	src.direct = true

	g := safety.New(safety.Config{Confirmer: staticConfirmer(false), Prober: okProber{}, DirectWrites: true})
	require.ErrorIs(t, g.Check(context.Background()), common.ErrPreconditionDeclined)

	ec := testContext(2)
	p := newPipeline(t, src, ec, g)
	job, err := p.Run(context.Background(), NewClassifyTask(loadRules(t, flourRules), nil, ec.Threshold))

	require.ErrorIs(t, err, common.ErrPreconditionDeclined)
	assert.True(t, job.Aborted())
	assert.Equal(t, 0, job.Processed())
	assert.Equal(t, 0, src.TotalApplies())
	assert.Equal(t, report.ExitAborted, job.ExitCode())
}

func TestPipeline_Interrupt(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newMemSource(testutil.GenerateRecipes(100)...)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var done atomic.Int64
	ec := testContext(1)
	ec.QueueSize = 50
	p, err := NewPipeline(Options{
		Source:   src,
		Governor: proceeding(t, safety.Config{}),
		Context:  ec,
		OnItem: func(*model.WorkItem) {
			if done.Add(1) == 5 {
				cancel()
			}
		},
	})
	require.NoError(t, err)

	job, err := p.Run(ctx, NewClassifyTask(loadRules(t, flourRules), nil, ec.Threshold))
	require.NoError(t, err)

	assert.True(t, job.Interrupted())
	assert.Equal(t, 5, job.Count(model.StateSucceeded))
	assert.Equal(t, 5, src.TotalApplies())
	assert.Equal(t, report.ExitInterrupted, job.ExitCode())

	// Everything admitted is accounted for, processed or not.
	admitted := int(src.yielded.Load())
	assert.GreaterOrEqual(t, admitted, 5)
	assert.Equal(t, admitted, job.Processed())
	assert.Equal(t, admitted-5, job.Count(model.StateSkipped))
	assert.Equal(t, int64(admitted), done.Load())
	assert.Empty(t, job.Errors())
}

func TestPipeline_FatalStopsRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newMemSource(testutil.GenerateRecipes(40)...)
	src.applyErr = func(slug string) error {
		if slug == "recipe-00003" {
			return common.ErrLockConflict
		}
		return nil
	}

	ec := testContext(1)
	p := newPipeline(t, src, ec, nil)
	job, err := p.Run(context.Background(), NewClassifyTask(loadRules(t, flourRules), nil, ec.Threshold))

	require.ErrorIs(t, err, common.ErrLockConflict)
	assert.True(t, job.Aborted())
	assert.Equal(t, 3, job.Count(model.StateSucceeded))
	assert.Equal(t, 1, job.Count(model.StateFailed))
	assert.Equal(t, 4, src.TotalApplies())
	assert.Equal(t, int(src.yielded.Load()), job.Processed())
	assert.Equal(t, job.Processed()-4, job.Count(model.StateSkipped))
}

func TestPipeline_MissingRecordIsPerItem(t *testing.T) {
	src := newMemSource(testutil.GenerateRecipes(3)...)
	src.slugs = append(src.slugs, "vanished")

	ec := testContext(2)
	p := newPipeline(t, src, ec, nil)
	job, err := p.Run(context.Background(), NewClassifyTask(loadRules(t, flourRules), nil, ec.Threshold))
	require.NoError(t, err)

	assert.Equal(t, 3, job.Count(model.StateSucceeded))
	assert.Equal(t, 1, job.Count(model.StateFailed))
	errs := job.Errors()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0].Err, common.ErrNotFound)
}

func TestRunAll_MergesReports(t *testing.T) {
	recipes := testutil.GenerateRecipes(6, 1, 4)
	src := newMemSource(recipes...)
	parser := &stubParser{answer: func(string, service.ParseStrategy) model.ParsedIngredient {
		return model.ParsedIngredient{Food: "salt", Confidence: 0.95}
	}}

	ec := testContext(2)
	p := newPipeline(t, src, ec, nil)
	detector := newDetector(t)

	job, err := p.RunAll(context.Background(), "all",
		NewRemediateTask(parser, ec.ParseThreshold),
		NewClassifyTask(loadRules(t, flourRules), nil, ec.Threshold),
		NewCleanTask(detector, ec.Threshold),
	)
	require.NoError(t, err)

	assert.Equal(t, "all", job.Task)
	// remediate sees 6 (memory source ignores the need), classify 6, clean 6.
	assert.Equal(t, 18, job.Processed())
	assert.Equal(t, 0, job.Count(model.StateFailed))
	assert.Len(t, src.parsed, 2)
	assert.Equal(t, report.ExitOK, job.ExitCode())
}

func TestNewPipeline_Validation(t *testing.T) {
	g := safety.New(safety.Config{})
	src := newMemSource()

	_, err := NewPipeline(Options{Governor: g, Context: testContext(1)})
	assert.Error(t, err)

	_, err = NewPipeline(Options{Source: src, Context: testContext(1)})
	assert.Error(t, err)

	_, err = NewPipeline(Options{Source: src, Governor: g, Context: testContext(0)})
	assert.ErrorIs(t, err, common.ErrConfig)

	ec := testContext(3)
	ec.QueueSize = 0
	p, err := NewPipeline(Options{Source: src, Governor: g, Context: ec})
	require.NoError(t, err)
	assert.Equal(t, 6, p.ec.QueueSize)
	assert.NotNil(t, p.Reporter())
}

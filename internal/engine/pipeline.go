// Package engine runs tasks over the recipe catalog with a bounded worker pool.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/common"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/config"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/report"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/safety"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/service"
)

// Pipeline feeds candidates from a source to a pool of workers.
type Pipeline struct {
	source   service.Source
	governor *safety.Governor
	reporter *report.Reporter
	onItem   func(*model.WorkItem)
	ec       config.ExecutionContext
}

// Options wires a Pipeline.
type Options struct {
	Source   service.Source
	Governor *safety.Governor
	// Reporter defaults to a fresh one.
	Reporter *report.Reporter
	// OnItem is called from worker goroutines after each item is recorded.
	OnItem  func(*model.WorkItem)
	Context config.ExecutionContext
}

// NewPipeline creates a pipeline.
func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("pipeline requires a source")
	}
	if opts.Governor == nil {
		return nil, fmt.Errorf("pipeline requires a safety governor")
	}
	if opts.Context.Workers < 1 {
		return nil, common.NewConfigError("workers", "must be at least 1, got %d", opts.Context.Workers)
	}
	if opts.Reporter == nil {
		opts.Reporter = report.NewReporter()
	}
	if opts.Context.QueueSize < 1 {
		opts.Context.QueueSize = 2 * opts.Context.Workers
	}

	return &Pipeline{
		source:   opts.Source,
		governor: opts.Governor,
		reporter: opts.Reporter,
		onItem:   opts.OnItem,
		ec:       opts.Context,
	}, nil
}

// Reporter returns the reporter the pipeline records into.
func (p *Pipeline) Reporter() *report.Reporter {
	return p.reporter
}

// Run processes every candidate of task. A fatal error stops the run and is
// returned together with the partial report. Cancelling ctx stops admitting
// new items, lets in-flight items finish and marks the report interrupted.
func (p *Pipeline) Run(ctx context.Context, task Task) (*report.JobReport, error) {
	job := p.reporter.Start(task.Name())
	defer job.Finish()

	if p.governor.State() != safety.Proceeding {
		err := p.governor.Err()
		if err == nil {
			err = fmt.Errorf("%w: governor is %s", common.ErrNotAuthorized, p.governor.State())
		}
		job.Abort(err)
		return job, err
	}

	cursor, err := p.source.FetchCandidates(ctx, service.Filter{Need: task.Need(), After: p.ec.After})
	if err != nil {
		return job, fmt.Errorf("failed to discover candidates: %w", err)
	}

	slog.Info("Starting task",
		"task", task.Name(),
		"backend", p.source.Name(),
		"workers", p.ec.Workers,
		"dry_run", p.ec.DryRun)

	queue := make(chan *model.WorkItem, p.ec.QueueSize)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(queue)
		defer func() {
			if cerr := cursor.Close(); cerr != nil {
				slog.Warn("Failed to close candidate cursor", "error", cerr)
			}
		}()
		return p.produce(gctx, cursor, queue, job)
	})

	for i := 0; i < p.ec.Workers; i++ {
		workerID := i
		g.Go(func() error {
			return p.work(gctx, workerID, task, queue, job)
		})
	}

	err = g.Wait()
	// Workers that stopped early leave admitted items behind.
	for item := range queue {
		p.abandon(gctx, item, job)
	}
	if ctx.Err() != nil {
		job.Interrupt()
		slog.Warn("Task interrupted", "task", task.Name(), "processed", job.Processed())
	}
	if err != nil {
		if common.IsFatal(err) {
			job.Abort(err)
		}
		return job, err
	}

	slog.Info("Task complete",
		"task", task.Name(),
		"processed", job.Processed(),
		"succeeded", job.Count(model.StateSucceeded),
		"skipped", job.Count(model.StateSkipped),
		"failed", job.Count(model.StateFailed))
	return job, nil
}

// RunAll runs tasks in order and merges their reports under name. A task
// that is interrupted or fails fatally stops the sequence.
func (p *Pipeline) RunAll(ctx context.Context, name string, tasks ...Task) (*report.JobReport, error) {
	reports := make([]*report.JobReport, 0, len(tasks))
	for _, task := range tasks {
		job, err := p.Run(ctx, task)
		reports = append(reports, job)
		if err != nil {
			return report.Merge(name, reports...), err
		}
		if job.Interrupted() {
			break
		}
	}
	return report.Merge(name, reports...), nil
}

// produce admits each discovered slug once. Every admitted item ends up in
// the report, even when the run stops before a worker takes it.
func (p *Pipeline) produce(ctx context.Context, cursor service.Cursor, queue chan<- *model.WorkItem, job *report.JobReport) error {
	seen := make(map[string]struct{})
	for cursor.Next(ctx) {
		slug := cursor.Slug()
		if _, dup := seen[slug]; dup {
			slog.Debug("Dropping duplicate candidate", "slug", slug)
			continue
		}
		seen[slug] = struct{}{}

		item := model.NewWorkItem(slug)
		select {
		case queue <- item:
		case <-ctx.Done():
			p.abandon(ctx, item, job)
			return nil
		}
	}
	if err := cursor.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("candidate discovery failed: %w", err)
	}
	return nil
}

// work drains the queue. Items dequeued after cancellation are recorded as
// skipped without being touched; an item that has started runs to completion.
func (p *Pipeline) work(ctx context.Context, workerID int, task Task, queue <-chan *model.WorkItem, job *report.JobReport) error {
	for item := range queue {
		if ctx.Err() != nil {
			p.abandon(ctx, item, job)
			continue
		}

		slog.Debug("Worker picked item", "worker_id", workerID, "slug", item.Slug)
		err := p.process(context.WithoutCancel(ctx), task, item)

		job.Record(item)
		if p.onItem != nil {
			p.onItem(item)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// abandon records an admitted item that the stopped run never processed.
func (p *Pipeline) abandon(ctx context.Context, item *model.WorkItem, job *report.JobReport) {
	reason := "run aborted"
	if cause := context.Cause(ctx); cause == nil || errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		reason = "interrupted"
	}
	item.Skip(reason, nil)
	job.Record(item)
	if p.onItem != nil {
		p.onItem(item)
	}
}

// process takes one item to a terminal state. The returned error is
// non-nil only when the whole run must stop.
func (p *Pipeline) process(ctx context.Context, task Task, item *model.WorkItem) error {
	item.Start()
	item.Attempts = 1

	var recipe *model.Recipe
	err := p.retry(ctx, item, func() error {
		var ferr error
		recipe, ferr = p.source.FetchRecord(ctx, item.Slug)
		return ferr
	})
	if err != nil {
		return p.fail(item, "fetch", err)
	}

	var plan Plan
	err = p.retry(ctx, item, func() error {
		var perr error
		plan, perr = task.Plan(ctx, recipe)
		return perr
	})
	if err != nil {
		return p.fail(item, "plan", err)
	}

	plan, ok := p.gate(ctx, task, recipe, plan, item)
	if !ok {
		return nil
	}
	if plan.Skip != "" {
		item.Skip(plan.Skip, nil)
		slog.Info("Skipping recipe", "task", task.Name(), "slug", item.Slug, "reason", plan.Skip)
		return nil
	}

	item.Update = plan.Update
	item.Added = plan.Added
	if plan.Empty() {
		item.Succeed()
		return nil
	}

	if err := p.governor.AuthorizeWrite(); err != nil {
		if errors.Is(err, common.ErrDryRun) {
			item.WouldWrite = true
			item.Succeed()
			slog.Info("Would apply",
				"task", task.Name(),
				"slug", item.Slug,
				"tags", plan.Update.Tags,
				"tools", plan.Update.Tools,
				"categories", plan.Update.Categories,
				"parsed_lines", len(plan.Parsed),
				"confidence", plan.Confidence)
			return nil
		}
		item.Fail(err)
		return err
	}

	var outcome model.Outcome
	err = p.retry(ctx, item, func() error {
		var aerr error
		outcome, aerr = task.Apply(ctx, p.source, item.Slug, plan)
		return aerr
	})
	if err != nil {
		return p.fail(item, "apply", err)
	}

	item.Succeed()
	slog.Debug("Applied",
		"task", task.Name(),
		"slug", item.Slug,
		"added", outcome.Added,
		"created", outcome.Created,
		"changed", outcome.Changed)
	return nil
}

// gate holds back plans below the task's threshold. It escalates when the
// task can, and reports false when the item was skipped.
func (p *Pipeline) gate(ctx context.Context, task Task, recipe *model.Recipe, plan Plan, item *model.WorkItem) (Plan, bool) {
	threshold := task.Threshold()
	if plan.Confidence >= threshold {
		return plan, true
	}

	reason := "below confidence threshold"
	var escErr error

	if esc, ok := task.(Escalating); ok && esc.CanEscalate() {
		item.Escalate()
		escalated, err := esc.Escalate(ctx, recipe, plan)
		switch {
		case err != nil:
			reason, escErr = "escalation failed", err
			slog.Warn("Escalation failed", "task", task.Name(), "slug", item.Slug, "error", err)
		case escalated.Confidence < threshold:
			reason = "escalation below confidence threshold"
		default:
			return escalated, true
		}
	}

	if p.ec.Override {
		slog.Info("Applying below threshold on override",
			"task", task.Name(),
			"slug", item.Slug,
			"confidence", plan.Confidence,
			"threshold", threshold)
		return plan, true
	}

	item.Skip(reason, escErr)
	slog.Info("Skipping recipe",
		"task", task.Name(),
		"slug", item.Slug,
		"reason", reason,
		"confidence", plan.Confidence)
	return plan, false
}

// retry runs op under the run's retry policy and counts extra attempts.
func (p *Pipeline) retry(ctx context.Context, item *model.WorkItem, op func() error) error {
	attempts, err := common.WithRetry(ctx, op, p.ec.Retry)
	if attempts > 1 {
		item.Attempts += attempts - 1
	}
	return err
}

func (p *Pipeline) fail(item *model.WorkItem, op string, err error) error {
	item.Fail(&common.RecordError{Slug: item.Slug, Op: op, Err: err})
	slog.Warn("Recipe failed", "slug", item.Slug, "op", op, "attempts", item.Attempts, "error", err)
	if p.fatal(err) {
		return err
	}
	return nil
}

// fatal reports whether err must stop the run. Connection failures are
// fatal only when the source is the database file itself.
func (p *Pipeline) fatal(err error) bool {
	if common.IsFatal(err) {
		return true
	}
	return p.source.DirectWrites() && errors.Is(err, common.ErrConnection)
}

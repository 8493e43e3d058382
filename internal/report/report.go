// Package report aggregates the outcome of a run.
package report

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
)

// Exit statuses.
const (
	ExitOK          = 0
	ExitFailures    = 1
	ExitAborted     = 2
	ExitInterrupted = 130
)

// ItemError is a per-recipe failure kept as data.
type ItemError struct {
	Err   error
	Slug  string
	State model.ItemState
}

// JobReport is the result of one task over the catalog. It is safe for
// concurrent use by the workers of a run.
type JobReport struct {
	started     time.Time
	abortErr    error
	metrics     *metrics
	counts      map[model.ItemState]int
	tags        map[model.Category]map[string]int
	Task        string
	errors      []ItemError
	elapsed     time.Duration
	wouldApply  atomic.Int64
	escalations atomic.Int64
	retries     atomic.Int64
	mu          sync.Mutex
	interrupted bool
	aborted     bool
}

func newJobReport(task string, m *metrics) *JobReport {
	return &JobReport{
		Task:    task,
		started: time.Now(),
		metrics: m,
		counts:  make(map[model.ItemState]int),
		tags:    make(map[model.Category]map[string]int),
	}
}

// Record aggregates one terminal item.
func (r *JobReport) Record(item *model.WorkItem) {
	if item.Attempts > 1 {
		r.retries.Add(int64(item.Attempts - 1))
	}
	if item.Escalated {
		r.escalations.Add(1)
	}
	if item.WouldWrite {
		r.wouldApply.Add(1)
	}

	r.mu.Lock()
	r.counts[item.State]++
	if item.Err != nil && item.State != model.StateSucceeded {
		r.errors = append(r.errors, ItemError{Slug: item.Slug, State: item.State, Err: item.Err})
	}
	if item.State == model.StateSucceeded {
		for c, names := range item.Added {
			if r.tags[c] == nil {
				r.tags[c] = make(map[string]int)
			}
			for _, n := range names {
				r.tags[c][n]++
			}
		}
	}
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.observe(r.Task, item)
	}
}

// Interrupt marks the report partial.
func (r *JobReport) Interrupt() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interrupted = true
}

// Abort marks the run as stopped before any write with err as the reason.
func (r *JobReport) Abort(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aborted = true
	r.abortErr = err
}

// Finish freezes the elapsed time.
func (r *JobReport) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.elapsed = time.Since(r.started)
}

// Count returns how many items ended in state.
func (r *JobReport) Count(state model.ItemState) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[state]
}

// Processed returns how many items reached a terminal state.
func (r *JobReport) Processed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.counts {
		total += n
	}
	return total
}

// WouldApply returns how many dry-run items had something to write.
func (r *JobReport) WouldApply() int { return int(r.wouldApply.Load()) }

// Escalations returns how many items were routed to the AI service.
func (r *JobReport) Escalations() int { return int(r.escalations.Load()) }

// Retries returns the total number of extra attempts.
func (r *JobReport) Retries() int { return int(r.retries.Load()) }

// Interrupted reports whether the run was cut short.
func (r *JobReport) Interrupted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interrupted
}

// Aborted reports whether the governor stopped the run.
func (r *JobReport) Aborted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aborted
}

// AbortErr returns why the run was aborted.
func (r *JobReport) AbortErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.abortErr
}

// Elapsed returns the run time, frozen by Finish.
func (r *JobReport) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.elapsed == 0 {
		return time.Since(r.started)
	}
	return r.elapsed
}

// Errors returns the recorded per-item errors sorted by slug.
func (r *JobReport) Errors() []ItemError {
	r.mu.Lock()
	out := append([]ItemError(nil), r.errors...)
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// TagCounts returns a copy of the per-category tag counts.
func (r *JobReport) TagCounts() map[model.Category]map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[model.Category]map[string]int, len(r.tags))
	for c, m := range r.tags {
		inner := make(map[string]int, len(m))
		for k, v := range m {
			inner[k] = v
		}
		out[c] = inner
	}
	return out
}

// ExitCode maps the report to a process exit status.
func (r *JobReport) ExitCode() int {
	switch {
	case r.Aborted():
		return ExitAborted
	case r.Interrupted():
		return ExitInterrupted
	case r.Count(model.StateFailed) > 0:
		return ExitFailures
	default:
		return ExitOK
	}
}

// Merge combines reports of the tasks of one run into a single report.
func Merge(task string, reports ...*JobReport) *JobReport {
	out := newJobReport(task, nil)
	var elapsed time.Duration
	var abortErrs []error

	for _, r := range reports {
		if r == nil {
			continue
		}
		r.mu.Lock()
		for s, n := range r.counts {
			out.counts[s] += n
		}
		for c, m := range r.tags {
			if out.tags[c] == nil {
				out.tags[c] = make(map[string]int)
			}
			for k, v := range m {
				out.tags[c][k] += v
			}
		}
		out.errors = append(out.errors, r.errors...)
		out.interrupted = out.interrupted || r.interrupted
		if r.aborted {
			out.aborted = true
			abortErrs = append(abortErrs, r.abortErr)
		}
		if r.elapsed > 0 {
			elapsed += r.elapsed
		} else {
			elapsed += time.Since(r.started)
		}
		r.mu.Unlock()

		out.wouldApply.Add(r.wouldApply.Load())
		out.escalations.Add(r.escalations.Load())
		out.retries.Add(r.retries.Load())
	}

	out.elapsed = elapsed
	out.abortErr = errors.Join(abortErrs...)
	return out
}

// Share is one row of a tag distribution.
type Share struct {
	Tag     string
	Count   int
	Percent float64
}

// Distribution returns the tags added for a category, most frequent first.
func (r *JobReport) Distribution(c model.Category) []Share {
	counts := r.TagCounts()[c]
	total := 0
	for _, n := range counts {
		total += n
	}
	out := make([]Share, 0, len(counts))
	for tag, n := range counts {
		out = append(out, Share{Tag: tag, Count: n, Percent: 100 * float64(n) / float64(total)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

// FormatElapsed renders a duration as "1h 2m", "3m 4s" or "5s".
func FormatElapsed(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	h, m, s := secs/3600, (secs%3600)/60, secs%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

package model

import "time"

// ItemState is the lifecycle state of a WorkItem.
type ItemState string

// ItemState constants.
const (
	StatePending    ItemState = "pending"
	StateInProgress ItemState = "in-progress"
	StateSucceeded  ItemState = "succeeded"
	StateFailed     ItemState = "failed"
	StateSkipped    ItemState = "skipped"
	StateEscalated  ItemState = "escalated"
)

// Terminal reports whether no further transition is possible.
func (s ItemState) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateSkipped:
		return true
	default:
		return false
	}
}

// WorkItem is one recipe's unit of work within a run.
type WorkItem struct {
	Started time.Time
	Err     error
	// Added lists the new names per category, for reporting.
	Added      map[Category][]string
	Update     TagUpdate
	Slug       string
	State      ItemState
	Reason     string
	Attempts   int
	Escalated  bool
	WouldWrite bool
}

// NewWorkItem creates a pending item for a discovered slug.
func NewWorkItem(slug string) *WorkItem {
	return &WorkItem{Slug: slug, State: StatePending}
}

// Start moves the item into processing.
func (w *WorkItem) Start() {
	w.State = StateInProgress
	w.Started = time.Now()
}

// Escalate records that the item was routed to an external AI service.
func (w *WorkItem) Escalate() {
	w.State = StateEscalated
	w.Escalated = true
}

// Succeed marks the item done.
func (w *WorkItem) Succeed() {
	w.State = StateSucceeded
}

// Fail marks the item failed with err.
func (w *WorkItem) Fail(err error) {
	w.State = StateFailed
	w.Err = err
}

// Skip marks the item skipped for reason.
func (w *WorkItem) Skip(reason string, err error) {
	w.State = StateSkipped
	w.Reason = reason
	w.Err = err
}

// Elapsed returns the time spent on the item so far.
func (w *WorkItem) Elapsed() time.Duration {
	if w.Started.IsZero() {
		return 0
	}
	return time.Since(w.Started)
}

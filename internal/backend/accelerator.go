// Package backend selects and wires the data-access variant for a run.
package backend

import (
	"context"
	"errors"
	"io"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/service"
)

// Accelerator discovers candidates through a read-only index and sends
// everything else to the API.
type Accelerator struct {
	index service.CandidateFinder
	api   service.Source
}

// NewAccelerator pairs an index with the API. The index is only ever used to
// find candidates; if it is an io.Closer it is closed with the accelerator.
func NewAccelerator(index service.CandidateFinder, api service.Source) *Accelerator {
	return &Accelerator{index: index, api: api}
}

// FetchCandidates queries the index.
func (a *Accelerator) FetchCandidates(ctx context.Context, filter service.Filter) (service.Cursor, error) {
	return a.index.FetchCandidates(ctx, filter)
}

// FetchRecord reads through the API.
func (a *Accelerator) FetchRecord(ctx context.Context, slug string) (*model.Recipe, error) {
	return a.api.FetchRecord(ctx, slug)
}

// ApplyTags writes through the API.
func (a *Accelerator) ApplyTags(ctx context.Context, slug string, update model.TagUpdate) (model.Outcome, error) {
	return a.api.ApplyTags(ctx, slug, update)
}

// ApplyParsed writes through the API.
func (a *Accelerator) ApplyParsed(ctx context.Context, slug string, parsed []model.ParsedIngredient) (model.Outcome, error) {
	return a.api.ApplyParsed(ctx, slug, parsed)
}

// Name identifies the backend.
func (a *Accelerator) Name() string { return "accelerated" }

// DirectWrites is false: writes always go through the API.
func (a *Accelerator) DirectWrites() bool { return false }

// Close closes the index and the API client.
func (a *Accelerator) Close() error {
	var errs []error
	if c, ok := a.index.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, a.api.Close())
	return errors.Join(errs...)
}

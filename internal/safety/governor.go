// Package safety gates writes behind the preconditions of the active backend.
package safety

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/common"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/service"
)

// State is the governor's position in its lifecycle.
type State int

// State constants.
const (
	NotChecked State = iota
	Confirmed
	Proceeding
	Aborted
)

func (s State) String() string {
	switch s {
	case NotChecked:
		return "not-checked"
	case Confirmed:
		return "confirmed"
	case Proceeding:
		return "proceeding"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrInvalidTransition is returned when a method is called in the wrong state.
var ErrInvalidTransition = errors.New("invalid governor transition")

// Governor decides whether the pipeline may write.
//
// Direct writes to the store file require the operator to confirm the
// recipe manager is stopped and a successful write-lock probe. API writes
// and dry runs need neither.
type Governor struct {
	confirmer Confirmer
	prober    service.LockProber
	err       error
	state     State
	mu        sync.RWMutex
	dryRun    bool
	direct    bool
}

// Confirmer is the operator prompt used for direct writes.
type Confirmer = service.Confirmer

// Config wires a Governor.
type Config struct {
	Confirmer Confirmer
	Prober    service.LockProber
	DryRun    bool
	// DirectWrites is true when the backend writes to the store file itself.
	DirectWrites bool
}

// New returns a governor in the NotChecked state.
func New(cfg Config) *Governor {
	return &Governor{
		confirmer: cfg.Confirmer,
		prober:    cfg.Prober,
		dryRun:    cfg.DryRun,
		direct:    cfg.DirectWrites,
	}
}

// State returns the current state.
func (g *Governor) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Err returns why the governor aborted, if it did.
func (g *Governor) Err() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.err
}

// Check evaluates the write preconditions once.
func (g *Governor) Check(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != NotChecked {
		return fmt.Errorf("%w: check from %s", ErrInvalidTransition, g.state)
	}

	if g.dryRun || !g.direct {
		g.state = Confirmed
		slog.Debug("Write preconditions satisfied", "dry_run", g.dryRun, "direct", g.direct)
		return nil
	}

	if err := g.checkDirect(ctx); err != nil {
		g.state = Aborted
		g.err = err
		slog.Error("Write preconditions failed; aborting", "error", err)
		return err
	}

	g.state = Confirmed
	slog.Info("Direct write preconditions satisfied")
	return nil
}

func (g *Governor) checkDirect(ctx context.Context) error {
	if g.confirmer == nil {
		return fmt.Errorf("%w: no way to confirm the recipe manager is stopped", common.ErrPreconditionDeclined)
	}
	ok, err := g.confirmer.ConfirmInactive(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrPreconditionDeclined, err)
	}
	if !ok {
		return fmt.Errorf("%w: operator did not confirm the recipe manager is stopped", common.ErrPreconditionDeclined)
	}

	if g.prober == nil {
		return fmt.Errorf("%w: no lock probe available", common.ErrPreconditionDeclined)
	}
	if err := g.prober.ProbeWriteLock(ctx); err != nil {
		if errors.Is(err, common.ErrLockConflict) {
			return err
		}
		return fmt.Errorf("%w: %w", common.ErrLockConflict, err)
	}
	return nil
}

// Proceed moves a confirmed governor to Proceeding.
func (g *Governor) Proceed() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != Confirmed {
		return fmt.Errorf("%w: proceed from %s", ErrInvalidTransition, g.state)
	}
	g.state = Proceeding
	return nil
}

// AuthorizeWrite returns nil when a write may go ahead. In a dry run it
// returns common.ErrDryRun and the caller reports what it would have written.
func (g *Governor) AuthorizeWrite() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.state != Proceeding {
		return fmt.Errorf("%w: governor is %s", common.ErrNotAuthorized, g.state)
	}
	if g.dryRun {
		return common.ErrDryRun
	}
	return nil
}

package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/config"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/mealie"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/service"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/storage"
)

// Handles bundles the capabilities selected for one run.
type Handles struct {
	Source service.Source
	// Parser is nil when no API is configured.
	Parser service.IngredientParser
	// Prober is set only when writes go straight to the database.
	Prober service.LockProber

	store *storage.Store
	api   *mealie.Client
}

// Options adjusts how Open builds the handles.
type Options struct {
	// HTTPClient replaces the default transport for API calls.
	HTTPClient *http.Client
}

// Open builds the backend named by ec.Backend. A direct backend in dry-run
// mode opens the database read-only.
func Open(ctx context.Context, ec config.ExecutionContext, opts Options) (*Handles, error) {
	h := &Handles{}

	if ec.MealieToken != "" {
		api, err := mealie.New(ctx, mealie.Options{
			BaseURL:    ec.MealieURL,
			Token:      ec.MealieToken,
			RateLimit:  ec.RateLimit,
			Timeout:    ec.HTTPTimeout,
			HTTPClient: opts.HTTPClient,
		})
		if err != nil {
			return nil, err
		}
		h.api = api
		h.Parser = api
	}

	switch ec.Backend {
	case config.BackendAPI:
		if h.api == nil {
			return nil, fmt.Errorf("api backend: %w", errMissingAPI)
		}
		h.Source = h.api

	case config.BackendDirect:
		store, err := storage.Open(ctx, ec.DBPath, storage.Options{ReadOnly: ec.DryRun})
		if err != nil {
			_ = h.Close()
			return nil, err
		}
		h.store = store
		h.Source = store
		if !ec.DryRun {
			h.Prober = store
		}

	case config.BackendAccelerated:
		if h.api == nil {
			return nil, fmt.Errorf("accelerated backend: %w", errMissingAPI)
		}
		index, err := storage.Open(ctx, ec.DBPath, storage.Options{ReadOnly: true})
		if err != nil {
			_ = h.Close()
			return nil, err
		}
		h.Source = NewAccelerator(index, h.api)

	default:
		return nil, fmt.Errorf("unknown backend %q", ec.Backend)
	}

	slog.Info("Opened backend", "backend", h.Source.Name(), "direct_writes", h.Source.DirectWrites())
	return h, nil
}

var errMissingAPI = errors.New("no Mealie API token configured")

// Backup copies the database before a direct write run. Other backends have
// nothing local to back up and return "".
func (h *Handles) Backup(ctx context.Context, dir string) (string, error) {
	if h.store == nil || dir == "" || !h.store.DirectWrites() {
		return "", nil
	}
	return h.store.Backup(ctx, dir)
}

// Close releases every handle.
func (h *Handles) Close() error {
	var errs []error
	if h.Source != nil {
		errs = append(errs, h.Source.Close())
	}
	// The API client is closed by the accelerator or is the source itself,
	// except when it only serves the parser for a direct backend.
	if h.api != nil && h.store != nil {
		errs = append(errs, h.api.Close())
	}
	if h.Source == nil && h.api != nil {
		errs = append(errs, h.api.Close())
	}
	return errors.Join(errs...)
}

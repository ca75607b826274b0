// Package app assembles the services of pulse over the configured store.
// The CLI, the HTTP API and the MCP server all start from an App.
package app

import (
	"fmt"

	"github.com/custodia-labs/pulse/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/pulse/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/pulse/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/pulse/internal/core/domain"
	"github.com/custodia-labs/pulse/internal/core/ports/driven"
	"github.com/custodia-labs/pulse/internal/core/services"
	"github.com/custodia-labs/pulse/internal/logger"
	"github.com/custodia-labs/pulse/internal/metrics"
)

// App holds one store and every service built on it.
type App struct {
	Settings domain.AppSettings
	Store    driven.Store

	Identity *services.IdentityService
	Ingest   *services.IngestService
	Runner   *services.RunnerService
	Query    *services.QueryService
	Tracker  *services.TrackerService
	Roster   *services.RosterSyncService
}

// New opens the store named by settings and wires the services.
func New(settings domain.AppSettings) (*App, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	store, err := OpenStore(settings.Storage)
	if err != nil {
		return nil, err
	}
	return NewWithStore(settings, store), nil
}

// NewWithStore wires the services over an already opened store.
func NewWithStore(settings domain.AppSettings, store driven.Store) *App {
	identity := services.NewIdentityService(store.PersonStore(), store.IdentifierStore(), store.UnresolvedStore())
	ingest := services.NewIngestService(store.ActivityStore(), identity)
	return &App{
		Settings: settings,
		Store:    store,
		Identity: identity,
		Ingest:   ingest,
		Runner:   services.NewRunnerService(ingest, settings.Ingest),
		Query:    services.NewQueryService(store.ActivityStore(), identity, settings.Query, metrics.RecordBatch),
		Tracker:  services.NewTrackerService(store.SnapshotStore(), identity),
		Roster:   services.NewRosterSyncService(identity),
	}
}

// OpenStore opens the datastore selected by the storage settings.
func OpenStore(s domain.StorageSettings) (driven.Store, error) {
	switch s.Driver {
	case domain.StorageSQLite, "":
		store, err := sqlite.NewStore(s.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		logger.Debug("using sqlite store at %s", store.Path())
		return store, nil
	case domain.StoragePostgres:
		store, err := postgres.NewStore(s.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	case domain.StorageMemory:
		logger.Warn("using in-memory store; nothing will be persisted")
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("%w: storage driver %q", domain.ErrInvalidInput, s.Driver)
	}
}

// Close releases the store.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}

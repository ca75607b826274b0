package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// StorageDriver selects the datastore backing all stores.
type StorageDriver string

// Available storage drivers.
const (
	// StorageSQLite is an embedded database file under the data directory.
	StorageSQLite StorageDriver = "sqlite"

	// StoragePostgres is a shared PostgreSQL database reached through a DSN.
	StoragePostgres StorageDriver = "postgres"

	// StorageMemory keeps everything in process; nothing survives a restart.
	StorageMemory StorageDriver = "memory"
)

// IsValid returns true if the driver is recognised.
func (d StorageDriver) IsValid() bool {
	switch d {
	case StorageSQLite, StoragePostgres, StorageMemory:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (d StorageDriver) String() string {
	return string(d)
}

// Description returns a human-readable description of the driver.
func (d StorageDriver) Description() string {
	switch d {
	case StorageSQLite:
		return "SQLite (local file)"
	case StoragePostgres:
		return "PostgreSQL (shared server)"
	case StorageMemory:
		return "Memory (ephemeral)"
	default:
		return unknownDescription
	}
}

// StorageSettings holds datastore configuration.
type StorageSettings struct {
	Driver StorageDriver

	// DataDir is where the SQLite file lives. Empty means ~/.pulse/data.
	DataDir string

	// DSN is the PostgreSQL connection string.
	DSN string
}

// LogSettings holds logging configuration.
type LogSettings struct {
	// Level is one of trace, debug, info, warn, error.
	Level string

	// Format is json or console.
	Format string
}

// IngestSettings holds ingestion run configuration.
type IngestSettings struct {
	// WorkersPerSource is how many goroutines write events of one source.
	WorkersPerSource int

	// MaxEventsPerSecond throttles writes per source. Zero disables throttling.
	MaxEventsPerSecond float64
}

// QuerySettings holds query serving configuration.
type QuerySettings struct {
	// PageSize is the default page size of activity queries.
	PageSize int

	// MaxRecent caps the "most recent N" aggregate.
	MaxRecent int
}

// ServerSettings holds the HTTP query API configuration.
type ServerSettings struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// AppSettings holds all application settings.
type AppSettings struct {
	Storage StorageSettings
	Log     LogSettings
	Ingest  IngestSettings
	Query   QuerySettings
	Server  ServerSettings
}

// DefaultAppSettings returns settings with sensible defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Storage: StorageSettings{
			Driver: StorageSQLite,
		},
		Log: LogSettings{
			Level:  "info",
			Format: "console",
		},
		Ingest: IngestSettings{
			WorkersPerSource: 4,
		},
		Query: QuerySettings{
			PageSize:  100,
			MaxRecent: 50,
		},
		Server: ServerSettings{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Validate checks settings for values the application cannot run with.
func (s *AppSettings) Validate() error {
	if !s.Storage.Driver.IsValid() {
		return fmt.Errorf("%w: storage driver %q", ErrInvalidInput, s.Storage.Driver)
	}
	if s.Storage.Driver == StoragePostgres && s.Storage.DSN == "" {
		return fmt.Errorf("%w: storage.dsn is required for postgres", ErrInvalidInput)
	}
	if s.Ingest.WorkersPerSource < 1 {
		return fmt.Errorf("%w: ingest.workers_per_source must be at least 1", ErrInvalidInput)
	}
	if s.Ingest.MaxEventsPerSecond < 0 {
		return fmt.Errorf("%w: ingest.max_events_per_second must not be negative", ErrInvalidInput)
	}
	if s.Query.PageSize < 1 || s.Query.MaxRecent < 1 {
		return fmt.Errorf("%w: query page size and max recent must be positive", ErrInvalidInput)
	}
	return nil
}

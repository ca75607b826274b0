package services

import (
	"fmt"
	"time"

	"github.com/custodia-labs/pulse/internal/core/domain"
	"github.com/custodia-labs/pulse/internal/core/ports/driven"
	"github.com/custodia-labs/pulse/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
const (
	keyStorageDriver     = "storage.driver"
	keyStorageDataDir    = "storage.data_dir"
	keyStorageDSN        = "storage.dsn"
	keyLogLevel          = "log.level"
	keyLogFormat         = "log.format"
	keyIngestWorkers     = "ingest.workers_per_source"
	keyIngestRate        = "ingest.max_events_per_second"
	keyQueryPageSize     = "query.page_size"
	keyQueryMaxRecent    = "query.max_recent"
	keyServerAddr        = "server.addr"
	keyServerShutdownTTL = "server.shutdown_timeout"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current application settings. Missing keys take their
// defaults; the result is validated.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Storage: domain.StorageSettings{
			Driver:  domain.StorageDriver(s.getString(keyStorageDriver, string(defaults.Storage.Driver))),
			DataDir: s.configStore.GetString(keyStorageDataDir),
			DSN:     s.configStore.GetString(keyStorageDSN),
		},
		Log: domain.LogSettings{
			Level:  s.getString(keyLogLevel, defaults.Log.Level),
			Format: s.getString(keyLogFormat, defaults.Log.Format),
		},
		Ingest: domain.IngestSettings{
			WorkersPerSource:   s.getInt(keyIngestWorkers, defaults.Ingest.WorkersPerSource),
			MaxEventsPerSecond: s.configStore.GetFloat(keyIngestRate),
		},
		Query: domain.QuerySettings{
			PageSize:  s.getInt(keyQueryPageSize, defaults.Query.PageSize),
			MaxRecent: s.getInt(keyQueryMaxRecent, defaults.Query.MaxRecent),
		},
		Server: domain.ServerSettings{
			Addr:            s.getString(keyServerAddr, defaults.Server.Addr),
			ShutdownTimeout: s.getDuration(keyServerShutdownTTL, defaults.Server.ShutdownTimeout),
		},
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", s.configStore.Path(), err)
	}
	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	values := []struct {
		key   string
		value any
	}{
		{keyStorageDriver, string(settings.Storage.Driver)},
		{keyStorageDataDir, settings.Storage.DataDir},
		{keyStorageDSN, settings.Storage.DSN},
		{keyLogLevel, settings.Log.Level},
		{keyLogFormat, settings.Log.Format},
		{keyIngestWorkers, settings.Ingest.WorkersPerSource},
		{keyIngestRate, settings.Ingest.MaxEventsPerSecond},
		{keyQueryPageSize, settings.Query.PageSize},
		{keyQueryMaxRecent, settings.Query.MaxRecent},
		{keyServerAddr, settings.Server.Addr},
		{keyServerShutdownTTL, settings.Server.ShutdownTimeout.String()},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetDuration(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

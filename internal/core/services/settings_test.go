package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pulse/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/pulse/internal/core/domain"
)

func TestNewSettingsService(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	require.NotNil(t, service)
}

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAppSettings(), *settings)
	assert.Equal(t, service.GetDefaults(), *settings)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("storage.driver", "postgres")
	_ = store.Set("storage.dsn", "postgres://localhost/pulse")
	_ = store.Set("ingest.workers_per_source", 8)
	_ = store.Set("ingest.max_events_per_second", 12.5)
	_ = store.Set("query.page_size", 25)
	_ = store.Set("server.shutdown_timeout", "3s")

	settings, err := NewSettingsService(store).Get()

	require.NoError(t, err)
	assert.Equal(t, domain.StoragePostgres, settings.Storage.Driver)
	assert.Equal(t, "postgres://localhost/pulse", settings.Storage.DSN)
	assert.Equal(t, 8, settings.Ingest.WorkersPerSource)
	assert.InDelta(t, 12.5, settings.Ingest.MaxEventsPerSecond, 0.0001)
	assert.Equal(t, 25, settings.Query.PageSize)
	assert.Equal(t, domain.DefaultAppSettings().Query.MaxRecent, settings.Query.MaxRecent)
	assert.Equal(t, 3*time.Second, settings.Server.ShutdownTimeout)
}

func TestSettingsService_Get_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"unknown driver", "storage.driver", "mongo"},
		{"postgres without dsn", "storage.driver", "postgres"},
		{"negative workers", "ingest.workers_per_source", -1},
		{"negative rate", "ingest.max_events_per_second", -2.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewConfigStore()
			_ = store.Set(tt.key, tt.val)

			_, err := NewSettingsService(store).Get()

			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestSettingsService_SaveRoundTrip(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)
	want := domain.DefaultAppSettings()
	want.Storage.Driver = domain.StorageMemory
	want.Ingest.MaxEventsPerSecond = 4
	want.Server.Addr = "127.0.0.1:9000"

	require.NoError(t, service.Save(&want))
	got, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

func TestSettingsService_Save_RejectsInvalid(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())
	bad := domain.DefaultAppSettings()
	bad.Query.PageSize = 0

	err := service.Save(&bad)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

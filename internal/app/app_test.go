package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

func TestNew_Memory(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.Storage.Driver = domain.StorageMemory

	a, err := New(settings)
	require.NoError(t, err)
	defer a.Close()

	p, err := a.Identity.CreatePerson(context.Background(), "Ada", "")
	require.NoError(t, err)
	got, err := a.Identity.GetPerson(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.DisplayName)
}

func TestNew_SQLite(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.Storage.DataDir = t.TempDir()

	a, err := New(settings)
	require.NoError(t, err)
	assert.NoError(t, a.Close())
}

func TestNew_InvalidSettings(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.Storage.Driver = domain.StoragePostgres

	_, err := New(settings)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = OpenStore(domain.StorageSettings{Driver: "oracle"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pulse/internal/adapters/driven/storage/storetest"
	"github.com/custodia-labs/pulse/internal/core/domain"
	"github.com/custodia-labs/pulse/internal/core/ports/driven"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "pulse-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) driven.Store {
		tempDir := t.TempDir()
		store, err := NewStore(tempDir)
		require.NoError(t, err)
		return store
	})
}

func TestNewStore_ErrorHandling(t *testing.T) {
	_, err := NewStore("/invalid\x00path")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "creating data directory")
}

func TestNewStore_Success(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "pulse-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	dbPath := filepath.Join(tempDir, "pulse.db")
	assert.Equal(t, dbPath, store.Path())
	assert.FileExists(t, dbPath)
	assert.NoError(t, store.db.Ping())
}

func TestMigrate_RecordsVersionAndIsIdempotent(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewStore(tempDir)
	require.NoError(t, err)

	var version int
	require.NoError(t, store.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)

	ctx := context.Background()
	require.NoError(t, store.PersonStore().CreatePerson(ctx, domain.Person{ID: "p1", DisplayName: "Alice", Active: true}))
	require.NoError(t, store.Close())

	// Reopening must not re-run the initial migration or lose data.
	store, err = NewStore(tempDir)
	require.NoError(t, err)
	defer store.Close()

	var applied int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, 1, applied)

	p, err := store.PersonStore().GetPerson(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.DisplayName)
}

func TestActivityStore_TimestampsRoundTripUTC(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	local := time.FixedZone("CET", 3600)
	at := time.Date(2024, 5, 6, 7, 8, 9, 123456789, local)
	require.NoError(t, store.ActivityStore().InsertActivity(ctx, &domain.Activity{
		Key:          "github:commit:abc",
		PersonID:     "p1",
		Actor:        domain.Actor{SourceType: domain.SourceGitHub, SourceKey: "alice"},
		SourceType:   domain.SourceGitHub,
		ActivityType: "commit",
		NativeID:     "abc",
		OccurredAt:   at,
	}))

	got, err := store.ActivityStore().GetActivity(ctx, "github:commit:abc")
	require.NoError(t, err)
	assert.True(t, got.OccurredAt.Equal(at))
	assert.Equal(t, time.UTC, got.OccurredAt.Location())
	assert.Nil(t, got.Payload.Data)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}

func TestIsUniqueViolation(t *testing.T) {
	err := errors.New("constraint failed: UNIQUE constraint failed: persons.id (1555)")

	assert.False(t, isUniqueViolation(nil, ""))
	assert.False(t, isUniqueViolation(assert.AnError, ""))
	assert.True(t, isUniqueViolation(err, ""))
	assert.True(t, isUniqueViolation(err, "persons.id"))
	assert.False(t, isUniqueViolation(err, "persons.name_key"))
}

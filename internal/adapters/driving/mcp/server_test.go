package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pulse/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/pulse/internal/app"
	"github.com/custodia-labs/pulse/internal/core/domain"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestApp wires the real services over the in-memory store.
func newTestApp(t *testing.T) *app.App {
	t.Helper()
	settings := domain.DefaultAppSettings()
	settings.Storage.Driver = domain.StorageMemory
	a := app.NewWithStore(settings, memory.NewStore())
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func portsFor(a *app.App) *Ports {
	return &Ports{
		Activities: a.Query,
		Summaries:  a.Query,
		Registry:   a.Identity,
	}
}

// seed creates jane bound to github:jane with n commits, one minute apart.
func seed(t *testing.T, a *app.App, n int) *domain.Person {
	t.Helper()
	ctx := context.Background()
	p, err := a.Identity.CreatePerson(ctx, "Jane Doe", "jane@example.com")
	require.NoError(t, err)
	require.NoError(t, a.Identity.Bind(ctx, p.ID, domain.SourceGitHub, "jane"))

	for i := 0; i < n; i++ {
		_, err := a.Ingest.Ingest(ctx, domain.Event{
			SourceType:   domain.SourceGitHub,
			ActivityType: "commit",
			NativeID:     string(rune('a' + i)),
			OccurredAt:   t0.Add(time.Duration(i) * time.Minute),
			Actor:        domain.Actor{SourceType: domain.SourceGitHub, SourceKey: "jane"},
			Payload:      []byte(`{}`),
		})
		require.NoError(t, err)
	}
	return p
}

func TestNewServer(t *testing.T) {
	t.Run("nil activity service returns error", func(t *testing.T) {
		ports := &Ports{}
		server, err := NewServer(ports)
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingActivityService)
	})

	t.Run("valid ports creates server", func(t *testing.T) {
		server, err := NewServer(portsFor(newTestApp(t)))
		require.NoError(t, err)
		assert.NotNil(t, server)
	})
}

func TestPorts_Validate(t *testing.T) {
	t.Run("nil activity service returns error", func(t *testing.T) {
		ports := &Ports{}
		assert.ErrorIs(t, ports.Validate(), ErrMissingActivityService)
	})

	t.Run("activities only is valid", func(t *testing.T) {
		ports := &Ports{Activities: newTestApp(t).Query}
		assert.NoError(t, ports.Validate())
	})

	t.Run("all ports is valid", func(t *testing.T) {
		assert.NoError(t, portsFor(newTestApp(t)).Validate())
	})
}

package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

func TestServer_handleQueryActivities(t *testing.T) {
	ctx := context.Background()

	t.Run("filters by identifier and pages", func(t *testing.T) {
		a := newTestApp(t)
		p := seed(t, a, 3)
		server, err := NewServer(portsFor(a))
		require.NoError(t, err)

		_, first, err := server.handleQueryActivities(ctx, nil, QueryActivitiesInput{Identifier: "github:JANE", Limit: 2})
		require.NoError(t, err)
		require.Equal(t, 2, first.Count)
		assert.Equal(t, "github:commit:c", first.Activities[0].Key)
		assert.Equal(t, p.ID, first.Activities[0].PersonID)
		assert.Equal(t, "github:jane", first.Activities[0].Actor)
		require.NotEmpty(t, first.NextCursor)

		_, second, err := server.handleQueryActivities(ctx, nil, QueryActivitiesInput{
			Identifier: "github:jane", Limit: 2, Cursor: first.NextCursor,
		})
		require.NoError(t, err)
		require.Equal(t, 1, second.Count)
		assert.Equal(t, "github:commit:a", second.Activities[0].Key)
		assert.Empty(t, second.NextCursor)
	})

	t.Run("default limit applies", func(t *testing.T) {
		a := newTestApp(t)
		seed(t, a, 3)
		server, err := NewServer(portsFor(a))
		require.NoError(t, err)

		_, out, err := server.handleQueryActivities(ctx, nil, QueryActivitiesInput{})
		require.NoError(t, err)
		assert.Equal(t, 3, out.Count)
	})

	t.Run("rejects bad filters", func(t *testing.T) {
		server, err := NewServer(portsFor(newTestApp(t)))
		require.NoError(t, err)

		inputs := []QueryActivitiesInput{
			{SourceType: "jira"},
			{Identifier: "jane"},
			{Since: "yesterday"},
			{Cursor: "not-base64!"},
		}
		for _, in := range inputs {
			_, _, err := server.handleQueryActivities(ctx, nil, in)
			assert.Error(t, err, "%+v", in)
		}
	})
}

func TestServer_handlePersonSummaries(t *testing.T) {
	ctx := context.Background()

	t.Run("summarises every active person by default", func(t *testing.T) {
		a := newTestApp(t)
		p := seed(t, a, 4)
		server, err := NewServer(portsFor(a))
		require.NoError(t, err)

		_, out, err := server.handlePersonSummaries(ctx, nil, PersonSummariesInput{Recent: 2})
		require.NoError(t, err)
		require.Len(t, out.Summaries, 1)
		assert.Equal(t, p.ID, out.Summaries[0].PersonID)
		assert.Equal(t, "Jane Doe", out.Summaries[0].DisplayName)
		assert.Equal(t, 4, out.Summaries[0].ActivityCount)
		require.Len(t, out.Summaries[0].Recent, 2)
		assert.Equal(t, "github:commit:d", out.Summaries[0].Recent[0].Key)
	})

	t.Run("unknown ids get zero aggregates", func(t *testing.T) {
		server, err := NewServer(portsFor(newTestApp(t)))
		require.NoError(t, err)

		_, out, err := server.handlePersonSummaries(ctx, nil, PersonSummariesInput{PersonIDs: []string{"nobody"}})
		require.NoError(t, err)
		require.Len(t, out.Summaries, 1)
		assert.Zero(t, out.Summaries[0].ActivityCount)
		assert.Empty(t, out.Summaries[0].Recent)
	})
}

func TestServer_handleResolveIdentifier(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	p := seed(t, a, 0)
	server, err := NewServer(portsFor(a))
	require.NoError(t, err)

	_, out, err := server.handleResolveIdentifier(ctx, nil, ResolveIdentifierInput{SourceType: "GitHub", SourceKey: "Jane"})
	require.NoError(t, err)
	assert.True(t, out.Resolved)
	assert.Equal(t, p.ID, out.PersonID)
	assert.Equal(t, "Jane Doe", out.DisplayName)

	_, out, err = server.handleResolveIdentifier(ctx, nil, ResolveIdentifierInput{SourceType: "slack", SourceKey: "U1"})
	require.NoError(t, err)
	assert.False(t, out.Resolved)

	_, _, err = server.handleResolveIdentifier(ctx, nil, ResolveIdentifierInput{SourceType: "jira", SourceKey: "x"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

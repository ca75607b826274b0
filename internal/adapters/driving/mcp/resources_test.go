package mcp

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

func TestExtractPersonID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{
			name:     "valid identifiers URI",
			uri:      "pulse://persons/p-123/identifiers",
			expected: "p-123",
		},
		{
			name:     "invalid prefix",
			uri:      "file://persons/p-123/identifiers",
			expected: "",
		},
		{
			name:     "missing identifiers suffix",
			uri:      "pulse://persons/p-123",
			expected: "",
		},
		{
			name:     "empty URI",
			uri:      "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractPersonID(tt.uri))
		})
	}
}

// Helper to create a ReadResourceRequest with the given URI.
func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handlePersonsResource(t *testing.T) {
	a := newTestApp(t)
	seed(t, a, 0)
	server, err := NewServer(portsFor(a))
	require.NoError(t, err)

	result, err := server.handlePersonsResource(context.Background(), makeReadResourceRequest("pulse://persons"))

	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "application/json", result.Contents[0].MIMEType)
	assert.Contains(t, result.Contents[0].Text, "Jane Doe")
	assert.Contains(t, result.Contents[0].Text, "jane@example.com")
}

func TestServer_handleUnresolvedResource(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	_, err := a.Ingest.Ingest(ctx, domain.Event{
		SourceType:   domain.SourceSlack,
		ActivityType: "message",
		NativeID:     "m1",
		OccurredAt:   t0,
		Actor:        domain.Actor{SourceType: domain.SourceSlack, SourceKey: "U42", DisplayName: "ghost"},
		Payload:      []byte(`{}`),
	})
	require.NoError(t, err)
	server, err := NewServer(portsFor(a))
	require.NoError(t, err)

	result, err := server.handleUnresolvedResource(ctx, makeReadResourceRequest("pulse://unresolved"))

	require.NoError(t, err)
	assert.Contains(t, result.Contents[0].Text, `"identifier": "slack:U42"`)
	assert.Contains(t, result.Contents[0].Text, `"occurrences": 1`)
}

func TestServer_handleIdentifiersResource(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	p := seed(t, a, 0)
	server, err := NewServer(portsFor(a))
	require.NoError(t, err)

	t.Run("lists bindings", func(t *testing.T) {
		result, err := server.handleIdentifiersResource(ctx, makeReadResourceRequest("pulse://persons/"+p.ID+"/identifiers"))
		require.NoError(t, err)
		assert.Contains(t, result.Contents[0].Text, "github:jane")
	})

	t.Run("unknown person is not found", func(t *testing.T) {
		_, err := server.handleIdentifiersResource(ctx, makeReadResourceRequest("pulse://persons/nobody/identifiers"))
		require.Error(t, err)
	})

	t.Run("invalid URI is not found", func(t *testing.T) {
		_, err := server.handleIdentifiersResource(ctx, makeReadResourceRequest("pulse://invalid"))
		require.Error(t, err)
	})
}

package domain

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIdentifierRef(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    IdentifierRef
		wantErr error
	}{
		{name: "github login", input: "github:JaneDoe", want: IdentifierRef{SourceType: SourceGitHub, SourceKey: "JaneDoe"}},
		{name: "source is case-insensitive", input: "Slack:U024BE7LH", want: IdentifierRef{SourceType: SourceSlack, SourceKey: "U024BE7LH"}},
		{name: "email keeps the rest", input: "email:jane@example.com", want: IdentifierRef{SourceType: SourceEmail, SourceKey: "jane@example.com"}},
		{name: "key may contain colons", input: "notion:user:42", want: IdentifierRef{SourceType: SourceNotion, SourceKey: "user:42"}},
		{name: "no separator", input: "janedoe", wantErr: ErrInvalidInput},
		{name: "empty key", input: "github: ", wantErr: ErrInvalidInput},
		{name: "unknown source", input: "jira:JD", wantErr: ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ParseIdentifierRef(tt.input)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Nil(t, ref)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *ref)
		})
	}
}

func TestIdentifierRef_String(t *testing.T) {
	ref := IdentifierRef{SourceType: SourceGitHub, SourceKey: "janedoe"}
	assert.Equal(t, "github:janedoe", ref.String())
}

func TestCursor_RoundTrip(t *testing.T) {
	a := &Activity{
		Key:        "github:commit:abc123",
		OccurredAt: time.Date(2024, 5, 1, 9, 30, 0, 123456789, time.UTC),
	}

	token := CursorAfter(a).Encode()
	require.NotEmpty(t, token)

	c, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, a.Key, c.Key)
	assert.True(t, a.OccurredAt.Equal(c.OccurredAt))
	assert.Equal(t, time.UTC, c.OccurredAt.Location())
}

func TestCursor_Zero(t *testing.T) {
	assert.True(t, Cursor{}.IsZero())
	assert.Empty(t, Cursor{}.Encode())

	c, err := DecodeCursor("")
	require.NoError(t, err)
	assert.True(t, c.IsZero())
}

func TestDecodeCursor_Invalid(t *testing.T) {
	enc := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

	tests := []struct {
		name  string
		token string
	}{
		{"not base64", "!!!"},
		{"no separator", enc("2024-05-01T00:00:00Z")},
		{"empty key", enc("2024-05-01T00:00:00Z|")},
		{"bad time", enc("yesterday|github:commit:a")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCursor(tt.token)
			assert.True(t, errors.Is(err, ErrInvalidInput), "got %v", err)
		})
	}
}

package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

func TestIdentityService_CreatePerson(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, err := env.identity.CreatePerson(ctx, "  Ada Lovelace ", "ada@example.com")

	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Ada Lovelace", p.DisplayName)
	assert.True(t, p.Active)

	got, err := env.identity.GetPerson(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got.PrimaryEmail)
}

func TestIdentityService_CreatePerson_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.identity.CreatePerson(ctx, "   ", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.identity.createPerson(ctx, domain.UnknownPersonID, "Nobody", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	mustPerson(t, env, "Ada")
	_, err = env.identity.CreatePerson(ctx, "ADA", "")
	assert.ErrorIs(t, err, domain.ErrDuplicateDisplayName)
}

func TestIdentityService_Resolve_IgnoresCase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := mustPerson(t, env, "Ada")
	require.NoError(t, env.identity.Bind(ctx, ada.ID, domain.SourceGitHub, "ada-l"))

	for _, key := range []string{"ada-l", "Ada-L", " ADA-L "} {
		personID, ok, err := env.identity.Resolve(ctx, domain.SourceGitHub, key)
		require.NoError(t, err, key)
		assert.True(t, ok, key)
		assert.Equal(t, ada.ID, personID, key)
	}
}

func TestIdentityService_Resolve_Missing(t *testing.T) {
	env := newTestEnv(t)

	personID, ok, err := env.identity.Resolve(context.Background(), domain.SourceSlack, "U123")

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, personID)
}

func TestIdentityService_Resolve_InvalidInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.identity.Resolve(ctx, domain.SourceType("jira"), "x")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	_, _, err = env.identity.Resolve(ctx, domain.SourceGitHub, " ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIdentityService_Resolve_SameKeyDifferentSources(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := mustPerson(t, env, "Ada")
	bob := mustPerson(t, env, "Bob")
	require.NoError(t, env.identity.Bind(ctx, ada.ID, domain.SourceGitHub, "shared"))
	require.NoError(t, env.identity.Bind(ctx, bob.ID, domain.SourceSlack, "shared"))

	gh, _, err := env.identity.Resolve(ctx, domain.SourceGitHub, "shared")
	require.NoError(t, err)
	sl, _, err := env.identity.Resolve(ctx, domain.SourceSlack, "shared")
	require.NoError(t, err)

	assert.Equal(t, ada.ID, gh)
	assert.Equal(t, bob.ID, sl)
}

func TestIdentityService_ResolveOrCreateProvisional(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	personID, err := env.identity.ResolveOrCreateProvisional(ctx, domain.SourceSlack, "U999", "Mystery")
	require.NoError(t, err)
	assert.Equal(t, domain.UnknownPersonID, personID)

	_, err = env.identity.ResolveOrCreateProvisional(ctx, domain.SourceSlack, "u999", "")
	require.NoError(t, err)

	markers, err := env.identity.Unresolved(ctx)
	require.NoError(t, err)
	require.Len(t, markers, 1)
	assert.Equal(t, "U999", markers[0].SourceKey)
	assert.Equal(t, "Mystery", markers[0].ObservedDisplayName)
	assert.Equal(t, 2, markers[0].Occurrences)
}

func TestIdentityService_ResolveOrCreateProvisional_Bound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := mustPerson(t, env, "Ada")
	require.NoError(t, env.identity.Bind(ctx, ada.ID, domain.SourceEmail, "ada@example.com"))

	personID, err := env.identity.ResolveOrCreateProvisional(ctx, domain.SourceEmail, "<ADA@example.com>", "")

	require.NoError(t, err)
	assert.Equal(t, ada.ID, personID)
	markers, err := env.identity.Unresolved(ctx)
	require.NoError(t, err)
	assert.Empty(t, markers)
}

func TestIdentityService_Bind_SamePersonIsNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := mustPerson(t, env, "Ada")

	inserted, err := env.identity.BindIdentifier(ctx, ada.ID, domain.SourceGitHub, "ada-l")
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = env.identity.BindIdentifier(ctx, ada.ID, domain.SourceGitHub, "ADA-L")
	require.NoError(t, err)
	assert.False(t, inserted)

	ids, err := env.identity.Identifiers(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, "ada-l", ids[0].SourceKey)
}

func TestIdentityService_Bind_Conflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := mustPerson(t, env, "Ada")
	bob := mustPerson(t, env, "Bob")
	require.NoError(t, env.identity.Bind(ctx, ada.ID, domain.SourceGitHub, "ada-l"))

	err := env.identity.Bind(ctx, bob.ID, domain.SourceGitHub, "Ada-L")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConflict)
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, ada.ID, conflict.CurrentPersonID)
	assert.Equal(t, bob.ID, conflict.RequestPersonID)

	// The binding is unchanged.
	personID, _, err := env.identity.Resolve(ctx, domain.SourceGitHub, "ada-l")
	require.NoError(t, err)
	assert.Equal(t, ada.ID, personID)
}

func TestIdentityService_Bind_UnknownPerson(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.identity.Bind(ctx, "missing", domain.SourceGitHub, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = env.identity.Bind(ctx, domain.UnknownPersonID, domain.SourceGitHub, "ghost")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIdentityService_Bind_PromotesUnresolved(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.identity.ResolveOrCreateProvisional(ctx, domain.SourceSlack, "U42", "")
	require.NoError(t, err)
	ada := mustPerson(t, env, "Ada")

	require.NoError(t, env.identity.Bind(ctx, ada.ID, domain.SourceSlack, "u42"))

	markers, err := env.identity.Unresolved(ctx)
	require.NoError(t, err)
	assert.Empty(t, markers)
}

func TestIdentityService_DeactivatePerson(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := mustPerson(t, env, "Ada")
	require.NoError(t, env.identity.Bind(ctx, ada.ID, domain.SourceGitHub, "ada-l"))

	require.NoError(t, env.identity.DeactivatePerson(ctx, ada.ID))
	require.NoError(t, env.identity.DeactivatePerson(ctx, ada.ID))

	active, err := env.identity.ListPersons(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := env.identity.ListPersons(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].Active)

	// History keeps resolving.
	personID, ok, err := env.identity.Resolve(ctx, domain.SourceGitHub, "ada-l")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ada.ID, personID)

	// The name is free again.
	_, err = env.identity.CreatePerson(ctx, "Ada", "")
	assert.NoError(t, err)
}

func TestIdentityService_DeactivatePerson_NotFound(t *testing.T) {
	env := newTestEnv(t)

	err := env.identity.DeactivatePerson(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

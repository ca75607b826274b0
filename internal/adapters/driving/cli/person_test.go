package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pulse/internal/app"
	"github.com/custodia-labs/pulse/internal/core/domain"
)

func personByName(t *testing.T, a *app.App, name string) *domain.Person {
	t.Helper()
	persons, err := a.Identity.ListPersons(context.Background(), true)
	require.NoError(t, err)
	for i := range persons {
		if persons[i].DisplayName == name {
			return &persons[i]
		}
	}
	t.Fatalf("person %q not found", name)
	return nil
}

func TestPersonCmd_AddBindResolve(t *testing.T) {
	a := setupTestServices(t)

	out, err := execute(t, "", "person", "add", "Jane Doe", "--email", "jane@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Added Jane Doe")
	jane := personByName(t, a, "Jane Doe")
	assert.Equal(t, "jane@example.com", jane.PrimaryEmail)

	out, err = execute(t, "", "bind", jane.ID, "github:JaneDoe")
	require.NoError(t, err)
	assert.Contains(t, out, "Bound github:JaneDoe to "+jane.ID)

	out, err = execute(t, "", "resolve", "GitHub:janedoe")
	require.NoError(t, err)
	assert.Contains(t, out, "-> Jane Doe ("+jane.ID+")")

	out, err = execute(t, "", "resolve", "slack:U1")
	require.NoError(t, err)
	assert.Contains(t, out, "slack:U1 is not bound to anyone")

	out, err = execute(t, "", "person", "show", jane.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Jane Doe")
	assert.Contains(t, out, "github:JaneDoe")
}

func TestBindCmd_Conflict(t *testing.T) {
	a := setupTestServices(t)
	ctx := context.Background()
	jane, err := a.Identity.CreatePerson(ctx, "Jane", "")
	require.NoError(t, err)
	bob, err := a.Identity.CreatePerson(ctx, "Bob", "")
	require.NoError(t, err)
	require.NoError(t, a.Identity.Bind(ctx, jane.ID, domain.SourceGitHub, "jd"))

	_, err = execute(t, "", "bind", bob.ID, "github:JD")

	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Contains(t, err.Error(), jane.ID)
}

func TestBindCmd_BadIdentifier(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "", "bind", "p-1", "jira:x")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	_, err = execute(t, "", "bind", "p-1", "github")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPersonCmd_ListAndDeactivate(t *testing.T) {
	a := setupTestServices(t)

	out, err := execute(t, "", "person", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No persons.")

	bob, err := a.Identity.CreatePerson(context.Background(), "Bob", "")
	require.NoError(t, err)

	_, err = execute(t, "", "person", "deactivate", bob.ID)
	require.NoError(t, err)

	out, err = execute(t, "", "person", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No persons.")

	out, err = execute(t, "", "person", "list", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "Bob")
	assert.Contains(t, out, "inactive")
}

func TestUnresolvedCmd(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "", "unresolved")
	require.NoError(t, err)
	assert.Contains(t, out, "Every actor is resolved.")

	_, err = execute(t, commitLine("ghost", "g1", t0)+"\n", "ingest", "-")
	require.NoError(t, err)

	out, err = execute(t, "", "unresolved")
	require.NoError(t, err)
	assert.Contains(t, out, "github:ghost")
}

func TestRosterSyncCmd(t *testing.T) {
	a := setupTestServices(t)
	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`members:
  - name: Ada Lovelace
    email: ada@example.com
    identifiers:
      github: [ada-l]
`), 0o600))

	out, err := execute(t, "", "roster", "sync", path)

	require.NoError(t, err)
	assert.Contains(t, out, "Roster sync")
	assert.Contains(t, out, "created")
	ada := personByName(t, a, "Ada Lovelace")
	id, ok, err := a.Identity.Resolve(context.Background(), domain.SourceGitHub, "ADA-L")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ada.ID, id)
}

func TestRosterSyncCmd_InvalidFile(t *testing.T) {
	setupTestServices(t)
	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	_, err := execute(t, "", "roster", "sync", path)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

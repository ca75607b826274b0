package driving

import (
	"context"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

// IdentityRegistry maps source identities onto canonical persons.
type IdentityRegistry interface {
	// Resolve looks up the person bound to a source identity, ignoring case.
	// A missing binding is reported through the boolean, never as an error.
	Resolve(ctx context.Context, sourceType domain.SourceType, sourceKey string) (string, bool, error)

	// ResolveOrCreateProvisional resolves the identity or, when unbound,
	// records an unresolved marker and returns domain.UnknownPersonID.
	ResolveOrCreateProvisional(ctx context.Context, sourceType domain.SourceType, sourceKey, observedDisplayName string) (string, error)

	// Bind attaches a source identity to a person.
	// Returns *domain.ConflictError when it is bound to someone else.
	Bind(ctx context.Context, personID string, sourceType domain.SourceType, sourceKey string) error

	// CreatePerson adds an active person.
	CreatePerson(ctx context.Context, displayName, primaryEmail string) (*domain.Person, error)

	// GetPerson retrieves a person by ID.
	GetPerson(ctx context.Context, personID string) (*domain.Person, error)

	// ListPersons returns persons ordered by display name.
	ListPersons(ctx context.Context, includeInactive bool) ([]domain.Person, error)

	// DeactivatePerson marks a person inactive. Their history keeps resolving.
	DeactivatePerson(ctx context.Context, personID string) error

	// Identifiers returns every binding of a person.
	Identifiers(ctx context.Context, personID string) ([]domain.Identifier, error)

	// Unresolved returns the actors still waiting for a roster update.
	Unresolved(ctx context.Context) ([]domain.UnresolvedActor, error)
}

// RosterService reconciles an external roster against the registry.
type RosterService interface {
	// Sync creates, reactivates and deactivates persons and binds identifiers.
	// Conflicting identifiers are reported, never overwritten.
	Sync(ctx context.Context, roster domain.Roster) (*domain.ReconcileReport, error)
}

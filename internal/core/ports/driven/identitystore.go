package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

// PersonStore persists canonical persons.
// Persons are never deleted; deactivation is an update.
type PersonStore interface {
	// CreatePerson stores a new person.
	// Returns domain.ErrAlreadyExists for a taken ID and
	// domain.ErrDuplicateDisplayName when an active person already uses the name.
	CreatePerson(ctx context.Context, p domain.Person) error

	// UpdatePerson replaces name, email and active flag of an existing person.
	UpdatePerson(ctx context.Context, p domain.Person) error

	// GetPerson retrieves a person by ID.
	GetPerson(ctx context.Context, id string) (*domain.Person, error)

	// FindPersonByName returns the person with the display name, ignoring case.
	// Active persons win over inactive ones.
	FindPersonByName(ctx context.Context, name string) (*domain.Person, error)

	// ListPersons returns persons ordered by display name.
	ListPersons(ctx context.Context, includeInactive bool) ([]domain.Person, error)
}

// IdentifierStore persists identifier bindings.
type IdentifierStore interface {
	// BindIfAbsent inserts the binding unless (source type, normalised key)
	// is already bound. It returns the binding stored afterwards and whether
	// this call inserted it. It is a single conditional write.
	BindIfAbsent(ctx context.Context, id domain.Identifier) (domain.Identifier, bool, error)

	// LookupIdentifier finds a binding by source type and key, ignoring case.
	LookupIdentifier(ctx context.Context, sourceType domain.SourceType, key string) (*domain.Identifier, error)

	// ListIdentifiers returns all bindings of a person.
	ListIdentifiers(ctx context.Context, personID string) ([]domain.Identifier, error)
}

// UnresolvedStore persists markers for actors without a binding.
type UnresolvedStore interface {
	// RecordUnresolved upserts the marker and bumps its occurrence count.
	RecordUnresolved(ctx context.Context, actor domain.Actor, seenAt time.Time) error

	// ListUnresolved returns all markers, most frequent first.
	ListUnresolved(ctx context.Context) ([]domain.UnresolvedActor, error)

	// DeleteUnresolved removes the marker once the actor has been bound.
	DeleteUnresolved(ctx context.Context, sourceType domain.SourceType, key string) error
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/pulse/internal/core/domain"
	"github.com/custodia-labs/pulse/internal/core/ports/driven"
	"github.com/custodia-labs/pulse/internal/core/ports/driving"
	"github.com/custodia-labs/pulse/internal/logger"
)

// Ensure IdentityService implements the interface.
var _ driving.IdentityRegistry = (*IdentityService)(nil)

// IdentityService maps source identities onto canonical persons.
type IdentityService struct {
	persons     driven.PersonStore
	identifiers driven.IdentifierStore
	unresolved  driven.UnresolvedStore
	now         func() time.Time
}

// NewIdentityService creates a new identity service.
func NewIdentityService(
	persons driven.PersonStore,
	identifiers driven.IdentifierStore,
	unresolved driven.UnresolvedStore,
) *IdentityService {
	return &IdentityService{
		persons:     persons,
		identifiers: identifiers,
		unresolved:  unresolved,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Resolve looks up the person bound to a source identity.
func (s *IdentityService) Resolve(ctx context.Context, sourceType domain.SourceType, sourceKey string) (string, bool, error) {
	if err := validateIdentity(sourceType, sourceKey); err != nil {
		return "", false, err
	}

	id, err := s.identifiers.LookupIdentifier(ctx, sourceType, sourceKey)
	if errors.Is(err, domain.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup identifier: %w", err)
	}
	return id.PersonID, true, nil
}

// ResolveOrCreateProvisional resolves the identity or leaves an unresolved
// marker behind and returns the unknown person.
func (s *IdentityService) ResolveOrCreateProvisional(
	ctx context.Context,
	sourceType domain.SourceType,
	sourceKey, observedDisplayName string,
) (string, error) {
	personID, ok, err := s.Resolve(ctx, sourceType, sourceKey)
	if err != nil {
		return "", err
	}
	if ok {
		return personID, nil
	}

	actor := domain.Actor{SourceType: sourceType, SourceKey: strings.TrimSpace(sourceKey), DisplayName: observedDisplayName}
	if err := s.unresolved.RecordUnresolved(ctx, actor, s.now()); err != nil {
		return "", fmt.Errorf("record unresolved actor: %w", err)
	}
	return domain.UnknownPersonID, nil
}

// Bind attaches a source identity to a person.
func (s *IdentityService) Bind(ctx context.Context, personID string, sourceType domain.SourceType, sourceKey string) error {
	_, err := s.BindIdentifier(ctx, personID, sourceType, sourceKey)
	return err
}

// BindIdentifier is Bind that also reports whether a new binding was made.
// Re-binding an identity to its current owner is a no-op.
func (s *IdentityService) BindIdentifier(
	ctx context.Context,
	personID string,
	sourceType domain.SourceType,
	sourceKey string,
) (bool, error) {
	if err := validateIdentity(sourceType, sourceKey); err != nil {
		return false, err
	}
	if personID == "" || personID == domain.UnknownPersonID {
		return false, fmt.Errorf("%w: person ID is required", domain.ErrInvalidInput)
	}
	if _, err := s.persons.GetPerson(ctx, personID); err != nil {
		return false, fmt.Errorf("get person %s: %w", personID, err)
	}

	want := domain.Identifier{
		SourceType: sourceType,
		SourceKey:  strings.TrimSpace(sourceKey),
		PersonID:   personID,
		CreatedAt:  s.now(),
	}
	stored, inserted, err := s.identifiers.BindIfAbsent(ctx, want)
	if err != nil {
		return false, fmt.Errorf("bind identifier: %w", err)
	}
	if !inserted {
		if stored.PersonID != personID {
			return false, &domain.ConflictError{
				SourceType:      sourceType,
				SourceKey:       want.SourceKey,
				CurrentPersonID: stored.PersonID,
				RequestPersonID: personID,
			}
		}
		return false, nil
	}

	if err := s.unresolved.DeleteUnresolved(ctx, sourceType, want.SourceKey); err != nil {
		return true, fmt.Errorf("clear unresolved marker: %w", err)
	}
	logger.Debug("bound %s:%s to person %s", sourceType, want.SourceKey, personID)
	return true, nil
}

// CreatePerson adds an active person with a generated ID.
func (s *IdentityService) CreatePerson(ctx context.Context, displayName, primaryEmail string) (*domain.Person, error) {
	return s.createPerson(ctx, uuid.NewString(), displayName, primaryEmail)
}

func (s *IdentityService) createPerson(ctx context.Context, id, displayName, primaryEmail string) (*domain.Person, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return nil, fmt.Errorf("%w: display name is required", domain.ErrInvalidInput)
	}
	if id == domain.UnknownPersonID {
		return nil, fmt.Errorf("%w: %q is reserved", domain.ErrInvalidInput, id)
	}

	now := s.now()
	p := domain.Person{
		ID:           id,
		DisplayName:  name,
		PrimaryEmail: strings.TrimSpace(primaryEmail),
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.persons.CreatePerson(ctx, p); err != nil {
		return nil, fmt.Errorf("create person %q: %w", name, err)
	}
	logger.Info("created person %s (%s)", name, id)
	return &p, nil
}

// GetPerson retrieves a person by ID.
func (s *IdentityService) GetPerson(ctx context.Context, personID string) (*domain.Person, error) {
	return s.persons.GetPerson(ctx, personID)
}

// ListPersons returns persons ordered by display name.
func (s *IdentityService) ListPersons(ctx context.Context, includeInactive bool) ([]domain.Person, error) {
	return s.persons.ListPersons(ctx, includeInactive)
}

// DeactivatePerson marks a person inactive.
func (s *IdentityService) DeactivatePerson(ctx context.Context, personID string) error {
	p, err := s.persons.GetPerson(ctx, personID)
	if err != nil {
		return fmt.Errorf("get person %s: %w", personID, err)
	}
	if !p.Active {
		return nil
	}
	p.Active = false
	p.UpdatedAt = s.now()
	if err := s.persons.UpdatePerson(ctx, *p); err != nil {
		return fmt.Errorf("deactivate person %s: %w", personID, err)
	}
	logger.Info("deactivated person %s (%s)", p.DisplayName, personID)
	return nil
}

// Identifiers returns every binding of a person.
func (s *IdentityService) Identifiers(ctx context.Context, personID string) ([]domain.Identifier, error) {
	if _, err := s.persons.GetPerson(ctx, personID); err != nil {
		return nil, fmt.Errorf("get person %s: %w", personID, err)
	}
	return s.identifiers.ListIdentifiers(ctx, personID)
}

// Unresolved returns the actors still waiting for a binding.
func (s *IdentityService) Unresolved(ctx context.Context) ([]domain.UnresolvedActor, error) {
	return s.unresolved.ListUnresolved(ctx)
}

func validateIdentity(sourceType domain.SourceType, sourceKey string) error {
	if !sourceType.Valid() {
		return fmt.Errorf("%w: source type %q", domain.ErrUnsupportedType, sourceType)
	}
	if strings.TrimSpace(sourceKey) == "" {
		return fmt.Errorf("%w: source key is required", domain.ErrInvalidInput)
	}
	return nil
}

package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/pulse/internal/core/domain"
	"github.com/custodia-labs/pulse/internal/core/ports/driven"
)

// ==================== Person Store ====================

type personStore struct {
	store *Store
}

var _ driven.PersonStore = (*personStore)(nil)

// CreatePerson stores a new person.
func (s *personStore) CreatePerson(_ context.Context, p domain.Person) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	if _, ok := s.store.persons[p.ID]; ok {
		return domain.ErrAlreadyExists
	}
	if p.Active && s.activeNameTaken(p.NormalizedName(), p.ID) {
		return domain.ErrDuplicateDisplayName
	}
	now := s.store.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.store.persons[p.ID] = p
	return nil
}

// UpdatePerson replaces an existing person.
func (s *personStore) UpdatePerson(_ context.Context, p domain.Person) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	cur, ok := s.store.persons[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Active && s.activeNameTaken(p.NormalizedName(), p.ID) {
		return domain.ErrDuplicateDisplayName
	}
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = s.store.now()
	s.store.persons[p.ID] = p
	return nil
}

// activeNameTaken must be called with the lock held.
func (s *personStore) activeNameTaken(name, exceptID string) bool {
	for id, other := range s.store.persons {
		if id != exceptID && other.Active && other.NormalizedName() == name {
			return true
		}
	}
	return false
}

// GetPerson retrieves a person by ID.
func (s *personStore) GetPerson(_ context.Context, id string) (*domain.Person, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	p, ok := s.store.persons[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

// FindPersonByName returns the person with the display name, ignoring case.
func (s *personStore) FindPersonByName(_ context.Context, name string) (*domain.Person, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	want := domain.NormalizeName(name)
	var found *domain.Person
	for _, p := range s.store.persons {
		if p.NormalizedName() != want {
			continue
		}
		if p.Active {
			return &p, nil
		}
		if found == nil || p.UpdatedAt.After(found.UpdatedAt) {
			cp := p
			found = &cp
		}
	}
	if found == nil {
		return nil, domain.ErrNotFound
	}
	return found, nil
}

// ListPersons returns persons ordered by display name.
func (s *personStore) ListPersons(_ context.Context, includeInactive bool) ([]domain.Person, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	result := make([]domain.Person, 0, len(s.store.persons))
	for _, p := range s.store.persons {
		if p.Active || includeInactive {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		ni, nj := result[i].NormalizedName(), result[j].NormalizedName()
		if ni != nj {
			return ni < nj
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// ==================== Identifier Store ====================

type identifierStore struct {
	store *Store
}

var _ driven.IdentifierStore = (*identifierStore)(nil)

// BindIfAbsent inserts the binding unless the identifier is already bound.
func (s *identifierStore) BindIfAbsent(_ context.Context, id domain.Identifier) (domain.Identifier, bool, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	k := keyOf(id.SourceType, id.SourceKey)
	if cur, ok := s.store.identifiers[k]; ok {
		return cur, false, nil
	}
	if id.CreatedAt.IsZero() {
		id.CreatedAt = s.store.now()
	}
	s.store.identifiers[k] = id
	return id, true, nil
}

// LookupIdentifier finds a binding by source type and key, ignoring case.
func (s *identifierStore) LookupIdentifier(_ context.Context, sourceType domain.SourceType, key string) (*domain.Identifier, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	id, ok := s.store.identifiers[keyOf(sourceType, key)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &id, nil
}

// ListIdentifiers returns all bindings of a person.
func (s *identifierStore) ListIdentifiers(_ context.Context, personID string) ([]domain.Identifier, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	var result []domain.Identifier
	for _, id := range s.store.identifiers {
		if id.PersonID == personID {
			result = append(result, id)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SourceType != result[j].SourceType {
			return result[i].SourceType < result[j].SourceType
		}
		return result[i].NormalizedKey() < result[j].NormalizedKey()
	})
	return result, nil
}

// ==================== Unresolved Store ====================

type unresolvedStore struct {
	store *Store
}

var _ driven.UnresolvedStore = (*unresolvedStore)(nil)

// RecordUnresolved upserts the marker and bumps its occurrence count.
func (s *unresolvedStore) RecordUnresolved(_ context.Context, actor domain.Actor, seenAt time.Time) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	k := keyOf(actor.SourceType, actor.SourceKey)
	m, ok := s.store.unresolved[k]
	if !ok {
		m = domain.UnresolvedActor{
			SourceType: actor.SourceType,
			SourceKey:  actor.SourceKey,
			FirstSeen:  seenAt,
			LastSeen:   seenAt,
		}
	}
	m.Occurrences++
	if actor.DisplayName != "" {
		m.ObservedDisplayName = actor.DisplayName
	}
	if seenAt.Before(m.FirstSeen) {
		m.FirstSeen = seenAt
	}
	if seenAt.After(m.LastSeen) {
		m.LastSeen = seenAt
	}
	s.store.unresolved[k] = m
	return nil
}

// ListUnresolved returns all markers, most frequent first.
func (s *unresolvedStore) ListUnresolved(_ context.Context) ([]domain.UnresolvedActor, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	result := make([]domain.UnresolvedActor, 0, len(s.store.unresolved))
	for _, m := range s.store.unresolved {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Occurrences != result[j].Occurrences {
			return result[i].Occurrences > result[j].Occurrences
		}
		if result[i].SourceType != result[j].SourceType {
			return result[i].SourceType < result[j].SourceType
		}
		return strings.ToLower(result[i].SourceKey) < strings.ToLower(result[j].SourceKey)
	})
	return result, nil
}

// DeleteUnresolved removes a marker.
func (s *unresolvedStore) DeleteUnresolved(_ context.Context, sourceType domain.SourceType, key string) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	delete(s.store.unresolved, keyOf(sourceType, key))
	return nil
}

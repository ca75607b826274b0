package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/pulse/internal/core/domain"
	"github.com/custodia-labs/pulse/internal/core/ports/driving"
	"github.com/custodia-labs/pulse/internal/logger"
)

// Ensure RosterSyncService implements the interface.
var _ driving.RosterService = (*RosterSyncService)(nil)

// RosterSyncService reconciles an external roster against the registry.
// Unresolved actors named by the roster are promoted into identifiers as a
// side effect of binding.
type RosterSyncService struct {
	identity *IdentityService
}

// NewRosterSyncService creates a new roster sync service.
func NewRosterSyncService(identity *IdentityService) *RosterSyncService {
	return &RosterSyncService{identity: identity}
}

// Sync applies the roster. Members missing from the roster are deactivated
// before any member is created or updated, so a newcomer may take the name
// of someone who left. Problems with single members are collected in the
// report; only datastore failures abort the sync.
func (s *RosterSyncService) Sync(ctx context.Context, roster domain.Roster) (*domain.ReconcileReport, error) {
	if len(roster.Members) == 0 {
		return nil, fmt.Errorf("%w: roster has no members", domain.ErrInvalidInput)
	}

	report := &domain.ReconcileReport{}
	members := make([]domain.RosterMember, 0, len(roster.Members))
	found := make([]*domain.Person, 0, len(roster.Members))
	seen := make(map[string]bool, len(roster.Members))

	for _, m := range roster.Members {
		if strings.TrimSpace(m.DisplayName) == "" {
			report.Invalid = append(report.Invalid, fmt.Sprintf("%v: member %q has no name", domain.ErrInvalidInput, m.ID))
			continue
		}
		p, err := s.findMember(ctx, m)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			p = nil
		case err != nil:
			return nil, err
		default:
			seen[p.ID] = true
		}
		members = append(members, m)
		found = append(found, p)
	}

	active, err := s.identity.ListPersons(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	for _, p := range active {
		if seen[p.ID] {
			continue
		}
		if err := s.identity.DeactivatePerson(ctx, p.ID); err != nil {
			return nil, err
		}
		report.Deactivated = append(report.Deactivated, p.ID)
	}

	for i, m := range members {
		p, err := s.upsertMember(ctx, m, found[i], report)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrDuplicateDisplayName) {
				report.Invalid = append(report.Invalid, err.Error())
				continue
			}
			return nil, err
		}
		if err := s.bindMember(ctx, p.ID, m, report); err != nil {
			return nil, err
		}
	}

	logger.Info("roster sync: %d created, %d reactivated, %d deactivated, %d bound, %d conflicts, %d invalid",
		len(report.Created), len(report.Reactivated), len(report.Deactivated),
		len(report.Bound), len(report.Conflicts), len(report.Invalid))
	return report, nil
}

// upsertMember creates the member's person when p is nil, otherwise it
// reactivates or updates p.
func (s *RosterSyncService) upsertMember(ctx context.Context, m domain.RosterMember, p *domain.Person, report *domain.ReconcileReport) (*domain.Person, error) {
	name := strings.TrimSpace(m.DisplayName)
	if p == nil {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			id = uuid.NewString()
		}
		created, err := s.identity.createPerson(ctx, id, name, m.PrimaryEmail)
		if err != nil {
			return nil, err
		}
		report.Created = append(report.Created, created.ID)
		return created, nil
	}

	email := strings.TrimSpace(m.PrimaryEmail)
	if p.Active && p.DisplayName == name && p.PrimaryEmail == email {
		return p, nil
	}
	reactivated := !p.Active
	p.DisplayName = name
	p.PrimaryEmail = email
	p.Active = true
	p.UpdatedAt = s.identity.now()
	if err := s.identity.persons.UpdatePerson(ctx, *p); err != nil {
		return nil, fmt.Errorf("update person %q: %w", name, err)
	}
	if reactivated {
		report.Reactivated = append(report.Reactivated, p.ID)
		logger.Info("reactivated person %s (%s)", name, p.ID)
	}
	return p, nil
}

func (s *RosterSyncService) findMember(ctx context.Context, m domain.RosterMember) (*domain.Person, error) {
	if id := strings.TrimSpace(m.ID); id != "" {
		p, err := s.identity.persons.GetPerson(ctx, id)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("get person %s: %w", id, err)
		}
		return p, err
	}
	p, err := s.identity.persons.FindPersonByName(ctx, m.DisplayName)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("find person %q: %w", m.DisplayName, err)
	}
	return p, err
}

// bindMember binds the primary email and every listed identifier.
func (s *RosterSyncService) bindMember(ctx context.Context, personID string, m domain.RosterMember, report *domain.ReconcileReport) error {
	type ref struct {
		sourceType domain.SourceType
		key        string
	}
	var refs []ref //nolint:prealloc // size depends on identifier lists
	if email := strings.TrimSpace(m.PrimaryEmail); email != "" {
		refs = append(refs, ref{domain.SourceEmail, email})
	}

	sources := make([]string, 0, len(m.Identifiers))
	for st := range m.Identifiers {
		sources = append(sources, st)
	}
	sort.Strings(sources)
	for _, raw := range sources {
		st, err := domain.ParseSourceType(raw)
		if err != nil {
			report.Invalid = append(report.Invalid, fmt.Sprintf("member %q: %v", m.DisplayName, err))
			continue
		}
		for _, key := range m.Identifiers[raw] {
			refs = append(refs, ref{st, key})
		}
	}

	for _, r := range refs {
		inserted, err := s.identity.BindIdentifier(ctx, personID, r.sourceType, r.key)
		var conflict *domain.ConflictError
		switch {
		case errors.As(err, &conflict):
			report.Conflicts = append(report.Conflicts, *conflict)
			logger.Warn("roster sync: %v", conflict)
		case errors.Is(err, domain.ErrInvalidInput):
			report.Invalid = append(report.Invalid, fmt.Sprintf("member %q: %v", m.DisplayName, err))
		case err != nil:
			return err
		case inserted:
			report.Bound = append(report.Bound, domain.Identifier{
				SourceType: r.sourceType,
				SourceKey:  strings.TrimSpace(r.key),
				PersonID:   personID,
			})
		default:
			report.AlreadyBound++
		}
	}
	return nil
}

package memory

import (
	"context"
	"sort"

	"github.com/custodia-labs/pulse/internal/core/domain"
	"github.com/custodia-labs/pulse/internal/core/ports/driven"
)

type activityStore struct {
	store *Store
}

var _ driven.ActivityStore = (*activityStore)(nil)

// InsertActivity stores a new activity unless its key is taken.
func (s *activityStore) InsertActivity(_ context.Context, a *domain.Activity) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return s.store.insertLocked(a)
}

func (s *Store) insertLocked(a *domain.Activity) error {
	if _, ok := s.activities[a.Key]; ok {
		return domain.ErrAlreadyExists
	}
	stored := *a
	stored.EffectivePersonID = ""
	stored.OccurredAt = a.OccurredAt.UTC()
	if stored.IngestedAt.IsZero() {
		stored.IngestedAt = s.now()
	}
	stored.Payload.Data = append([]byte(nil), a.Payload.Data...)
	s.activities[a.Key] = stored
	return nil
}

// GetActivity retrieves an activity by key.
func (s *activityStore) GetActivity(_ context.Context, key string) (*domain.Activity, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	a, ok := s.store.activities[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	a = s.store.attribute(a)
	return &a, nil
}

// ListActivities returns a page of matching activities, newest first.
func (s *activityStore) ListActivities(_ context.Context, filter domain.ActivityFilter, after domain.Cursor, limit int) ([]domain.Activity, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	matched := s.store.matching(filter)
	if filter.PersonID != "" {
		kept := matched[:0]
		for _, a := range matched {
			if a.EffectivePersonID == filter.PersonID {
				kept = append(kept, a)
			}
		}
		matched = kept
	}
	sortNewestFirst(matched)

	result := make([]domain.Activity, 0, limit)
	for _, a := range matched {
		if !after.IsZero() && !sortsAfter(a, after) {
			continue
		}
		if len(result) == limit {
			break
		}
		result = append(result, a)
	}
	return result, nil
}

// CountByPerson counts activities per effective person.
func (s *activityStore) CountByPerson(_ context.Context, personIDs []string, filter domain.ActivityFilter) (map[string]int, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	wanted := toSet(personIDs)
	counts := make(map[string]int)
	for _, a := range s.store.matching(filter) {
		if wanted[a.EffectivePersonID] {
			counts[a.EffectivePersonID]++
		}
	}
	return counts, nil
}

// RecentByPerson returns the n most recent activities per effective person.
func (s *activityStore) RecentByPerson(_ context.Context, personIDs []string, n int, filter domain.ActivityFilter) (map[string][]domain.Activity, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	wanted := toSet(personIDs)
	matched := s.store.matching(filter)
	sortNewestFirst(matched)

	recent := make(map[string][]domain.Activity)
	for _, a := range matched {
		pid := a.EffectivePersonID
		if wanted[pid] && len(recent[pid]) < n {
			recent[pid] = append(recent[pid], a)
		}
	}
	return recent, nil
}

// attribute fills EffectivePersonID. Must be called with the lock held.
func (s *Store) attribute(a domain.Activity) domain.Activity {
	a.EffectivePersonID = a.PersonID
	if !a.Actor.IsZero() {
		if id, ok := s.identifiers[keyOf(a.Actor.SourceType, a.Actor.SourceKey)]; ok {
			a.EffectivePersonID = id.PersonID
		}
	}
	return a
}

// matching returns attributed activities passing every filter field except
// PersonID. Must be called with the lock held.
func (s *Store) matching(filter domain.ActivityFilter) []domain.Activity {
	var result []domain.Activity
	for _, a := range s.activities {
		if filter.SourceType != "" && a.SourceType != filter.SourceType {
			continue
		}
		if filter.ActivityType != "" && a.ActivityType != filter.ActivityType {
			continue
		}
		if !filter.Since.IsZero() && a.OccurredAt.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && !a.OccurredAt.Before(filter.Until) {
			continue
		}
		result = append(result, s.attribute(a))
	}
	return result
}

func sortNewestFirst(activities []domain.Activity) {
	sort.Slice(activities, func(i, j int) bool {
		if !activities[i].OccurredAt.Equal(activities[j].OccurredAt) {
			return activities[i].OccurredAt.After(activities[j].OccurredAt)
		}
		return activities[i].Key > activities[j].Key
	})
}

// sortsAfter reports whether a comes strictly after c in newest-first order.
func sortsAfter(a domain.Activity, c domain.Cursor) bool {
	if !a.OccurredAt.Equal(c.OccurredAt) {
		return a.OccurredAt.Before(c.OccurredAt)
	}
	return a.Key < c.Key
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

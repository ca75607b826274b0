package memory

import (
	"context"

	"github.com/custodia-labs/pulse/internal/core/domain"
	"github.com/custodia-labs/pulse/internal/core/ports/driven"
)

type snapshotStore struct {
	store *Store
}

var _ driven.SnapshotStore = (*snapshotStore)(nil)

// GetSnapshot retrieves the current snapshot of a document.
func (s *snapshotStore) GetSnapshot(_ context.Context, documentID string) (*domain.DocumentSnapshot, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	snap, ok := s.store.snapshots[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &snap, nil
}

// CreateSnapshot stores the baseline snapshot of a document.
func (s *snapshotStore) CreateSnapshot(_ context.Context, snap domain.DocumentSnapshot) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if _, ok := s.store.snapshots[snap.DocumentID]; ok {
		return domain.ErrRevisionConflict
	}
	s.store.snapshots[snap.DocumentID] = snap
	return nil
}

// AdvanceSnapshot stores the diff activity and replaces the snapshot if the
// stored revision is still expectedRevision.
func (s *snapshotStore) AdvanceSnapshot(_ context.Context, next domain.DocumentSnapshot, expectedRevision string, diff *domain.Activity) (bool, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	cur, ok := s.store.snapshots[next.DocumentID]
	if !ok || cur.RevisionMarker != expectedRevision {
		return false, domain.ErrRevisionConflict
	}

	inserted := false
	if diff != nil {
		switch err := s.store.insertLocked(diff); err {
		case nil:
			inserted = true
		case domain.ErrAlreadyExists:
		default:
			return false, err
		}
	}
	s.store.snapshots[next.DocumentID] = next
	return inserted, nil
}

package memory

import (
	"sync"
	"time"

	"github.com/custodia-labs/pulse/internal/core/domain"
	"github.com/custodia-labs/pulse/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.Store = (*Store)(nil)

// identKey is the lookup key of an identifier or unresolved marker.
type identKey struct {
	sourceType domain.SourceType
	key        string
}

func keyOf(st domain.SourceType, sourceKey string) identKey {
	return identKey{sourceType: st, key: domain.NormalizeKey(st, sourceKey)}
}

// Store is an in-memory implementation of every driven store.
// All sub-stores share one lock so cross-entity writes stay atomic.
type Store struct {
	mu          sync.RWMutex
	persons     map[string]domain.Person
	identifiers map[identKey]domain.Identifier
	unresolved  map[identKey]domain.UnresolvedActor
	activities  map[string]domain.Activity
	snapshots   map[string]domain.DocumentSnapshot
	now         func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		persons:     make(map[string]domain.Person),
		identifiers: make(map[identKey]domain.Identifier),
		unresolved:  make(map[identKey]domain.UnresolvedActor),
		activities:  make(map[string]domain.Activity),
		snapshots:   make(map[string]domain.DocumentSnapshot),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// PersonStore returns a PersonStore backed by this store.
func (s *Store) PersonStore() driven.PersonStore {
	return &personStore{store: s}
}

// IdentifierStore returns an IdentifierStore backed by this store.
func (s *Store) IdentifierStore() driven.IdentifierStore {
	return &identifierStore{store: s}
}

// UnresolvedStore returns an UnresolvedStore backed by this store.
func (s *Store) UnresolvedStore() driven.UnresolvedStore {
	return &unresolvedStore{store: s}
}

// ActivityStore returns an ActivityStore backed by this store.
func (s *Store) ActivityStore() driven.ActivityStore {
	return &activityStore{store: s}
}

// SnapshotStore returns a SnapshotStore backed by this store.
func (s *Store) SnapshotStore() driven.SnapshotStore {
	return &snapshotStore{store: s}
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

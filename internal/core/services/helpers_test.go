package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pulse/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/pulse/internal/core/domain"
	"github.com/custodia-labs/pulse/internal/core/ports/driven"
)

// testEnv wires every service over one in-memory store.
type testEnv struct {
	store    *memory.Store
	identity *IdentityService
	ingest   *IngestService
	runner   *RunnerService
	query    *QueryService
	tracker  *TrackerService
	roster   *RosterSyncService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	t.Cleanup(func() { _ = store.Close() })

	identity := NewIdentityService(store.PersonStore(), store.IdentifierStore(), store.UnresolvedStore())
	ingest := NewIngestService(store.ActivityStore(), identity)
	return &testEnv{
		store:    store,
		identity: identity,
		ingest:   ingest,
		runner:   NewRunnerService(ingest, domain.IngestSettings{WorkersPerSource: 4}),
		query:    NewQueryService(store.ActivityStore(), identity, domain.QuerySettings{PageSize: 10, MaxRecent: 20}, nil),
		tracker:  NewTrackerService(store.SnapshotStore(), identity),
		roster:   NewRosterSyncService(identity),
	}
}

func mustPerson(t *testing.T, env *testEnv, name string) *domain.Person {
	t.Helper()
	p, err := env.identity.CreatePerson(context.Background(), name, "")
	require.NoError(t, err)
	return p
}

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func commitEvent(login, sha string, at time.Time) domain.Event {
	return domain.Event{
		SourceType:   domain.SourceGitHub,
		ActivityType: "commit",
		NativeID:     sha,
		OccurredAt:   at,
		Actor:        domain.Actor{SourceType: domain.SourceGitHub, SourceKey: login},
		Payload:      json.RawMessage(fmt.Sprintf(`{"sha":%q}`, sha)),
	}
}

func slackEvent(user, ts string, at time.Time) domain.Event {
	return domain.Event{
		SourceType:   domain.SourceSlack,
		ActivityType: "message",
		NativeID:     "C01:" + ts,
		OccurredAt:   at,
		Actor:        domain.Actor{SourceType: domain.SourceSlack, SourceKey: user},
		Payload:      json.RawMessage(`{"text":"hi"}`),
	}
}

// countingActivityStore counts aggregate queries issued against the store.
type countingActivityStore struct {
	driven.ActivityStore
	counts  atomic.Int32
	recents atomic.Int32

	mu      sync.Mutex
	failErr error
}

func (s *countingActivityStore) CountByPerson(ctx context.Context, ids []string, f domain.ActivityFilter) (map[string]int, error) {
	s.counts.Add(1)
	if err := s.err(); err != nil {
		return nil, err
	}
	return s.ActivityStore.CountByPerson(ctx, ids, f)
}

func (s *countingActivityStore) RecentByPerson(ctx context.Context, ids []string, n int, f domain.ActivityFilter) (map[string][]domain.Activity, error) {
	s.recents.Add(1)
	if err := s.err(); err != nil {
		return nil, err
	}
	return s.ActivityStore.RecentByPerson(ctx, ids, n, f)
}

func (s *countingActivityStore) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *countingActivityStore) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failErr
}

// failingActivityStore fails inserts for one source type.
type failingActivityStore struct {
	driven.ActivityStore
	source domain.SourceType
	err    error
}

func (s *failingActivityStore) InsertActivity(ctx context.Context, a *domain.Activity) error {
	if a.SourceType == s.source {
		return s.err
	}
	return s.ActivityStore.InsertActivity(ctx, a)
}

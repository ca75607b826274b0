// Package storetest holds the behaviour every driven.Store adapter must
// share. Adapter packages call Run from their own tests.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pulse/internal/core/domain"
	"github.com/custodia-labs/pulse/internal/core/ports/driven"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) driven.Store

// Run executes the contract suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s driven.Store)
	}{
		{"PersonLifecycle", testPersonLifecycle},
		{"PersonDisplayNameUnique", testPersonDisplayNameUnique},
		{"FindPersonByName", testFindPersonByName},
		{"BindIfAbsent", testBindIfAbsent},
		{"BindIfAbsentConcurrent", testBindIfAbsentConcurrent},
		{"ListIdentifiers", testListIdentifiers},
		{"Unresolved", testUnresolved},
		{"InsertActivityFirstSeenWins", testInsertActivityFirstSeenWins},
		{"TimeRangeRoundTrip", testTimeRangeRoundTrip},
		{"ListActivitiesOrderAndCursor", testListActivitiesOrderAndCursor},
		{"ListActivitiesFilters", testListActivitiesFilters},
		{"ReadTimeAttribution", testReadTimeAttribution},
		{"CountByPerson", testCountByPerson},
		{"RecentByPerson", testRecentByPerson},
		{"Snapshots", testSnapshots},
		{"AdvanceSnapshotIdempotentDiff", testAdvanceSnapshotIdempotentDiff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { assert.NoError(t, s.Close()) })
			tt.fn(t, s)
		})
	}
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func person(id, name string) domain.Person {
	return domain.Person{ID: id, DisplayName: name, PrimaryEmail: id + "@example.com", Active: true}
}

func activity(key string, personID string, actor domain.Actor, at time.Time) *domain.Activity {
	return &domain.Activity{
		Key:          key,
		PersonID:     personID,
		Actor:        actor,
		SourceType:   actor.SourceType,
		ActivityType: "commit",
		NativeID:     key,
		OccurredAt:   at,
		Payload:      domain.Payload{Kind: "commit", Data: json.RawMessage(`{"n":1}`)},
	}
}

func gh(login string) domain.Actor {
	return domain.Actor{SourceType: domain.SourceGitHub, SourceKey: login}
}

func testPersonLifecycle(t *testing.T, s driven.Store) {
	ctx := context.Background()
	ps := s.PersonStore()

	require.NoError(t, ps.CreatePerson(ctx, person("p1", "Alice Smith")))
	assert.ErrorIs(t, ps.CreatePerson(ctx, person("p1", "Someone Else")), domain.ErrAlreadyExists)

	got, err := ps.GetPerson(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", got.DisplayName)
	assert.True(t, got.Active)
	assert.False(t, got.CreatedAt.IsZero())

	got.Active = false
	require.NoError(t, ps.UpdatePerson(ctx, *got))

	active, err := ps.ListPersons(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := ps.ListPersons(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].Active)

	_, err = ps.GetPerson(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, ps.UpdatePerson(ctx, person("missing", "X")), domain.ErrNotFound)
}

func testPersonDisplayNameUnique(t *testing.T, s driven.Store) {
	ctx := context.Background()
	ps := s.PersonStore()

	require.NoError(t, ps.CreatePerson(ctx, person("p1", "Alice")))
	assert.ErrorIs(t, ps.CreatePerson(ctx, person("p2", "alice")), domain.ErrDuplicateDisplayName)

	// An inactive person releases the name.
	p1, err := ps.GetPerson(ctx, "p1")
	require.NoError(t, err)
	p1.Active = false
	require.NoError(t, ps.UpdatePerson(ctx, *p1))
	require.NoError(t, ps.CreatePerson(ctx, person("p2", "alice")))

	// Reactivating p1 would now collide.
	p1.Active = true
	assert.ErrorIs(t, ps.UpdatePerson(ctx, *p1), domain.ErrDuplicateDisplayName)
}

func testFindPersonByName(t *testing.T, s driven.Store) {
	ctx := context.Background()
	ps := s.PersonStore()

	old := person("p-old", "Bob")
	old.Active = false
	require.NoError(t, ps.CreatePerson(ctx, old))
	require.NoError(t, ps.CreatePerson(ctx, person("p-new", "Bob")))

	got, err := ps.FindPersonByName(ctx, "  BOB ")
	require.NoError(t, err)
	assert.Equal(t, "p-new", got.ID, "active person wins")

	_, err = ps.FindPersonByName(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testBindIfAbsent(t *testing.T, s driven.Store) {
	ctx := context.Background()
	ids := s.IdentifierStore()

	stored, inserted, err := ids.BindIfAbsent(ctx, domain.Identifier{SourceType: domain.SourceGitHub, SourceKey: "OctoCat", PersonID: "p1"})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, "OctoCat", stored.SourceKey)

	stored, inserted, err = ids.BindIfAbsent(ctx, domain.Identifier{SourceType: domain.SourceGitHub, SourceKey: "octocat", PersonID: "p2"})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, "p1", stored.PersonID, "existing binding is returned untouched")
	assert.Equal(t, "OctoCat", stored.SourceKey, "native casing is preserved")

	// Same key under another source type is a different identity.
	_, inserted, err = ids.BindIfAbsent(ctx, domain.Identifier{SourceType: domain.SourceSlack, SourceKey: "octocat", PersonID: "p2"})
	require.NoError(t, err)
	assert.True(t, inserted)

	got, err := ids.LookupIdentifier(ctx, domain.SourceGitHub, "OCTOCAT")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.PersonID)

	_, err = ids.LookupIdentifier(ctx, domain.SourceGitHub, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testBindIfAbsentConcurrent(t *testing.T, s driven.Store) {
	ctx := context.Background()
	ids := s.IdentifierStore()

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	owners := make(map[string]bool)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stored, inserted, err := ids.BindIfAbsent(ctx, domain.Identifier{
				SourceType: domain.SourceEmail,
				SourceKey:  "Race@Example.com",
				PersonID:   fmt.Sprintf("p%d", i),
			})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if inserted {
				winners++
			}
			owners[stored.PersonID] = true
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Len(t, owners, 1, "every caller sees the same owner")
}

func testListIdentifiers(t *testing.T, s driven.Store) {
	ctx := context.Background()
	ids := s.IdentifierStore()

	for _, id := range []domain.Identifier{
		{SourceType: domain.SourceSlack, SourceKey: "U123", PersonID: "p1"},
		{SourceType: domain.SourceEmail, SourceKey: "a@example.com", PersonID: "p1"},
		{SourceType: domain.SourceGitHub, SourceKey: "alice", PersonID: "p1"},
		{SourceType: domain.SourceGitHub, SourceKey: "bob", PersonID: "p2"},
	} {
		_, _, err := ids.BindIfAbsent(ctx, id)
		require.NoError(t, err)
	}

	got, err := ids.ListIdentifiers(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, domain.SourceEmail, got[0].SourceType)
	assert.Equal(t, domain.SourceGitHub, got[1].SourceType)
	assert.Equal(t, domain.SourceSlack, got[2].SourceType)
}

func testUnresolved(t *testing.T, s driven.Store) {
	ctx := context.Background()
	us := s.UnresolvedStore()

	ghost := domain.Actor{SourceType: domain.SourceGitHub, SourceKey: "Ghost", DisplayName: "G"}
	require.NoError(t, us.RecordUnresolved(ctx, ghost, base))
	require.NoError(t, us.RecordUnresolved(ctx, gh("ghost"), base.Add(time.Hour)))
	require.NoError(t, us.RecordUnresolved(ctx, gh("other"), base))

	got, err := us.ListUnresolved(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Ghost", got[0].SourceKey, "first casing is kept")
	assert.Equal(t, 2, got[0].Occurrences)
	assert.Equal(t, "G", got[0].ObservedDisplayName)
	assert.True(t, got[0].FirstSeen.Equal(base))
	assert.True(t, got[0].LastSeen.Equal(base.Add(time.Hour)))

	require.NoError(t, us.DeleteUnresolved(ctx, domain.SourceGitHub, "GHOST"))
	got, err = us.ListUnresolved(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "other", got[0].SourceKey)
}

func testInsertActivityFirstSeenWins(t *testing.T, s driven.Store) {
	ctx := context.Background()
	as := s.ActivityStore()

	first := activity("github:commit:abc", "p1", gh("alice"), base)
	require.NoError(t, as.InsertActivity(ctx, first))

	second := activity("github:commit:abc", "p1", gh("alice"), base)
	second.Payload.Data = json.RawMessage(`{"n":2}`)
	assert.ErrorIs(t, as.InsertActivity(ctx, second), domain.ErrAlreadyExists)

	got, err := as.GetActivity(ctx, "github:commit:abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(got.Payload.Data))
	assert.Equal(t, "commit", got.Payload.Kind)
	assert.True(t, got.OccurredAt.Equal(base))
	assert.False(t, got.IngestedAt.IsZero())
	assert.Equal(t, "alice", got.Actor.SourceKey)

	_, err = as.GetActivity(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// The edges of domain.TimeInRange must survive a write and read back
// unchanged, in both activities and snapshots.
func testTimeRangeRoundTrip(t *testing.T, s driven.Store) {
	ctx := context.Background()
	as := s.ActivityStore()

	edges := map[string]time.Time{
		"min": domain.MinTime,
		"max": domain.MaxTime.Add(-time.Nanosecond),
	}
	for name, at := range edges {
		require.True(t, domain.TimeInRange(at), name)
		require.NoError(t, as.InsertActivity(ctx, activity("github:commit:"+name, "p1", gh("alice"), at)))

		got, err := as.GetActivity(ctx, "github:commit:"+name)
		require.NoError(t, err)
		assert.True(t, got.OccurredAt.Equal(at), "%s: stored %s read back %s", name, at, got.OccurredAt)

		snap := domain.DocumentSnapshot{
			DocumentID:     "doc-" + name,
			SourceType:     domain.SourceDrive,
			RevisionMarker: "r1",
			Content:        "a\n",
			ContentHash:    domain.HashContent("a\n"),
			Segmentation:   domain.SegmentLines,
			State:          domain.StateBaseline,
			CapturedAt:     at,
		}
		require.NoError(t, s.SnapshotStore().CreateSnapshot(ctx, snap))
		gotSnap, err := s.SnapshotStore().GetSnapshot(ctx, snap.DocumentID)
		require.NoError(t, err)
		assert.True(t, gotSnap.CapturedAt.Equal(at), "%s: snapshot read back %s", name, gotSnap.CapturedAt)
	}
}

func testListActivitiesOrderAndCursor(t *testing.T, s driven.Store) {
	ctx := context.Background()
	as := s.ActivityStore()

	// Two activities share a timestamp so the key breaks the tie.
	require.NoError(t, as.InsertActivity(ctx, activity("k1", "p1", gh("alice"), base)))
	require.NoError(t, as.InsertActivity(ctx, activity("k2", "p1", gh("alice"), base.Add(time.Hour))))
	require.NoError(t, as.InsertActivity(ctx, activity("k3", "p1", gh("alice"), base.Add(time.Hour))))
	require.NoError(t, as.InsertActivity(ctx, activity("k4", "p1", gh("alice"), base.Add(2*time.Hour))))

	page, err := as.ListActivities(ctx, domain.ActivityFilter{}, domain.Cursor{}, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "k4", page[0].Key)
	assert.Equal(t, "k3", page[1].Key)

	page, err = as.ListActivities(ctx, domain.ActivityFilter{}, domain.CursorAfter(&page[1]), 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "k2", page[0].Key)
	assert.Equal(t, "k1", page[1].Key)

	page, err = as.ListActivities(ctx, domain.ActivityFilter{}, domain.CursorAfter(&page[1]), 2)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func testListActivitiesFilters(t *testing.T, s driven.Store) {
	ctx := context.Background()
	as := s.ActivityStore()

	msg := activity("slack:message:c1-1", "p2", domain.Actor{SourceType: domain.SourceSlack, SourceKey: "U2"}, base.Add(time.Hour))
	msg.ActivityType = "message"
	require.NoError(t, as.InsertActivity(ctx, msg))
	require.NoError(t, as.InsertActivity(ctx, activity("github:commit:a", "p1", gh("alice"), base)))
	require.NoError(t, as.InsertActivity(ctx, activity("github:commit:b", "p1", gh("alice"), base.Add(2*time.Hour))))

	tests := []struct {
		name   string
		filter domain.ActivityFilter
		want   []string
	}{
		{"all", domain.ActivityFilter{}, []string{"github:commit:b", "slack:message:c1-1", "github:commit:a"}},
		{"person", domain.ActivityFilter{PersonID: "p1"}, []string{"github:commit:b", "github:commit:a"}},
		{"source type", domain.ActivityFilter{SourceType: domain.SourceSlack}, []string{"slack:message:c1-1"}},
		{"activity type", domain.ActivityFilter{ActivityType: "commit"}, []string{"github:commit:b", "github:commit:a"}},
		{"since inclusive", domain.ActivityFilter{Since: base.Add(time.Hour)}, []string{"github:commit:b", "slack:message:c1-1"}},
		{"until exclusive", domain.ActivityFilter{Until: base.Add(time.Hour)}, []string{"github:commit:a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := as.ListActivities(ctx, tt.filter, domain.Cursor{}, 10)
			require.NoError(t, err)
			keys := make([]string, len(got))
			for i, a := range got {
				keys[i] = a.Key
			}
			assert.Equal(t, tt.want, keys)
		})
	}
}

func testReadTimeAttribution(t *testing.T, s driven.Store) {
	ctx := context.Background()
	as := s.ActivityStore()

	// Ingested while the actor was unknown.
	require.NoError(t, as.InsertActivity(ctx, activity("k1", domain.UnknownPersonID, gh("NewHire"), base)))

	got, err := as.GetActivity(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, domain.UnknownPersonID, got.EffectivePersonID)

	_, _, err = s.IdentifierStore().BindIfAbsent(ctx, domain.Identifier{SourceType: domain.SourceGitHub, SourceKey: "newhire", PersonID: "p9"})
	require.NoError(t, err)

	got, err = as.GetActivity(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, domain.UnknownPersonID, got.PersonID, "stored row is immutable")
	assert.Equal(t, "p9", got.EffectivePersonID)

	list, err := as.ListActivities(ctx, domain.ActivityFilter{PersonID: "p9"}, domain.Cursor{}, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)

	counts, err := as.CountByPerson(ctx, []string{"p9", domain.UnknownPersonID}, domain.ActivityFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, counts["p9"])
	assert.Zero(t, counts[domain.UnknownPersonID])
}

func testCountByPerson(t *testing.T, s driven.Store) {
	ctx := context.Background()
	as := s.ActivityStore()

	for i := 0; i < 3; i++ {
		require.NoError(t, as.InsertActivity(ctx, activity(fmt.Sprintf("a%d", i), "p1", gh("alice"), base.Add(time.Duration(i)*time.Hour))))
	}
	require.NoError(t, as.InsertActivity(ctx, activity("b0", "p2", gh("bob"), base)))

	counts, err := as.CountByPerson(ctx, []string{"p1", "p2", "p3"}, domain.ActivityFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, counts["p1"])
	assert.Equal(t, 1, counts["p2"])
	_, present := counts["p3"]
	assert.False(t, present)

	counts, err = as.CountByPerson(ctx, []string{"p1"}, domain.ActivityFilter{Since: base.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, 2, counts["p1"])

	counts, err = as.CountByPerson(ctx, nil, domain.ActivityFilter{})
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func testRecentByPerson(t *testing.T, s driven.Store) {
	ctx := context.Background()
	as := s.ActivityStore()

	for i := 0; i < 4; i++ {
		require.NoError(t, as.InsertActivity(ctx, activity(fmt.Sprintf("a%d", i), "p1", gh("alice"), base.Add(time.Duration(i)*time.Hour))))
	}
	require.NoError(t, as.InsertActivity(ctx, activity("b0", "p2", gh("bob"), base)))

	recent, err := as.RecentByPerson(ctx, []string{"p1", "p2", "p3"}, 2, domain.ActivityFilter{})
	require.NoError(t, err)
	require.Len(t, recent["p1"], 2)
	assert.Equal(t, "a3", recent["p1"][0].Key)
	assert.Equal(t, "a2", recent["p1"][1].Key)
	require.Len(t, recent["p2"], 1)
	assert.Empty(t, recent["p3"])
}

func testSnapshots(t *testing.T, s driven.Store) {
	ctx := context.Background()
	ss := s.SnapshotStore()

	_, err := ss.GetSnapshot(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	baseline := domain.DocumentSnapshot{
		DocumentID:     "doc-1",
		SourceType:     domain.SourceNotion,
		RevisionMarker: "r1",
		Content:        "a\n",
		ContentHash:    domain.HashContent("a\n"),
		Segmentation:   domain.SegmentLines,
		State:          domain.StateBaseline,
		CapturedAt:     base,
	}
	require.NoError(t, ss.CreateSnapshot(ctx, baseline))
	assert.ErrorIs(t, ss.CreateSnapshot(ctx, baseline), domain.ErrRevisionConflict)

	next := baseline
	next.RevisionMarker = "r2"
	next.Content = "a\nb\n"
	next.ContentHash = domain.HashContent(next.Content)
	next.State = domain.StateTracked
	next.CapturedAt = base.Add(time.Hour)

	diffActivity := activity("notion:content_diff:doc-1:r2", "p1", domain.Actor{SourceType: domain.SourceNotion, SourceKey: "u1"}, next.CapturedAt)

	// A stale expected revision writes nothing.
	_, err = ss.AdvanceSnapshot(ctx, next, "r0", diffActivity)
	assert.ErrorIs(t, err, domain.ErrRevisionConflict)
	_, err = s.ActivityStore().GetActivity(ctx, diffActivity.Key)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	inserted, err := ss.AdvanceSnapshot(ctx, next, "r1", diffActivity)
	require.NoError(t, err)
	assert.True(t, inserted)

	got, err := ss.GetSnapshot(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "r2", got.RevisionMarker)
	assert.Equal(t, "a\nb\n", got.Content)
	assert.Equal(t, domain.StateTracked, got.State)
	assert.Equal(t, domain.SegmentLines, got.Segmentation)

	_, err = s.ActivityStore().GetActivity(ctx, diffActivity.Key)
	require.NoError(t, err)

	_, err = ss.AdvanceSnapshot(ctx, next, "missing-doc", nil)
	assert.True(t, errors.Is(err, domain.ErrRevisionConflict))
}

func testAdvanceSnapshotIdempotentDiff(t *testing.T, s driven.Store) {
	ctx := context.Background()
	ss := s.SnapshotStore()

	snap := domain.DocumentSnapshot{
		DocumentID: "doc-2", SourceType: domain.SourceDrive, RevisionMarker: "r1",
		Content: "x\n", ContentHash: domain.HashContent("x\n"),
		Segmentation: domain.SegmentLines, State: domain.StateBaseline, CapturedAt: base,
	}
	require.NoError(t, ss.CreateSnapshot(ctx, snap))

	diffActivity := activity("drive:content_diff:doc-2:r2", "p1", domain.Actor{SourceType: domain.SourceDrive, SourceKey: "u@example.com"}, base)
	require.NoError(t, s.ActivityStore().InsertActivity(ctx, diffActivity))

	next := snap
	next.RevisionMarker = "r2"
	next.State = domain.StateTracked
	inserted, err := ss.AdvanceSnapshot(ctx, next, "r1", diffActivity)
	require.NoError(t, err)
	assert.False(t, inserted, "existing diff activity is kept")

	got, err := ss.GetSnapshot(ctx, "doc-2")
	require.NoError(t, err)
	assert.Equal(t, "r2", got.RevisionMarker)
}

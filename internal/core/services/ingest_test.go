package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

func TestIngestService_Ingest_InsertThenAlreadyExists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	e := commitEvent("ada-l", "abc123", baseTime)

	outcome, err := env.ingest.Ingest(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, domain.Inserted, outcome)

	outcome, err = env.ingest.Ingest(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, domain.AlreadyExists, outcome)

	stored, err := env.store.ActivityStore().GetActivity(ctx, "github:commit:abc123")
	require.NoError(t, err)
	assert.Equal(t, "commit", stored.Payload.Kind)
	assert.Equal(t, baseTime, stored.OccurredAt)
}

func TestIngestService_Ingest_FirstSeenPayloadWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := slackEvent("U1", "1700000000.000100", baseTime)
	first.Payload = json.RawMessage(`{"text":"original"}`)
	edited := first
	edited.Payload = json.RawMessage(`{"text":"edited"}`)

	_, err := env.ingest.Ingest(ctx, first)
	require.NoError(t, err)
	outcome, err := env.ingest.Ingest(ctx, edited)
	require.NoError(t, err)

	assert.Equal(t, domain.AlreadyExists, outcome)
	stored, err := env.store.ActivityStore().GetActivity(ctx, first.Key())
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"original"}`, string(stored.Payload.Data))
}

func TestIngestService_Ingest_KeyIgnoresResolvedPerson(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	e := commitEvent("late-binder", "def456", baseTime)

	_, err := env.ingest.Ingest(ctx, e)
	require.NoError(t, err)

	ada := mustPerson(t, env, "Ada")
	require.NoError(t, env.identity.Bind(ctx, ada.ID, domain.SourceGitHub, "late-binder"))

	outcome, err := env.ingest.Ingest(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, domain.AlreadyExists, outcome)
}

func TestIngestService_Ingest_CaseVariantLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	jane := mustPerson(t, env, "Jane Doe")
	require.NoError(t, env.identity.Bind(ctx, jane.ID, domain.SourceGitHub, "JaneDoe"))

	res, err := env.ingest.IngestEvent(ctx, commitEvent("janedoe", "c0ffee", baseTime))

	require.NoError(t, err)
	assert.Nil(t, res.Unresolved)
	stored, err := env.store.ActivityStore().GetActivity(ctx, res.Key)
	require.NoError(t, err)
	assert.Equal(t, jane.ID, stored.PersonID)
	assert.Equal(t, jane.ID, stored.EffectivePersonID)
	assert.Equal(t, "janedoe", stored.Actor.SourceKey)
}

func TestIngestService_Ingest_UnresolvedActor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.ingest.IngestEvent(ctx, slackEvent("U999", "1.0", baseTime))

	require.NoError(t, err)
	require.NotNil(t, res.Unresolved)
	assert.Equal(t, "U999", res.Unresolved.SourceKey)

	stored, err := env.store.ActivityStore().GetActivity(ctx, res.Key)
	require.NoError(t, err)
	assert.Equal(t, domain.UnknownPersonID, stored.PersonID)

	markers, err := env.identity.Unresolved(ctx)
	require.NoError(t, err)
	require.Len(t, markers, 1)
	assert.Equal(t, domain.SourceSlack, markers[0].SourceType)
}

func TestIngestService_Ingest_StoresUTC(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	loc := time.FixedZone("UTC+9", 9*60*60)
	e := commitEvent("ada-l", "tz1", time.Date(2024, 3, 1, 21, 0, 0, 0, loc))

	_, err := env.ingest.Ingest(ctx, e)
	require.NoError(t, err)

	stored, err := env.store.ActivityStore().GetActivity(ctx, e.Key())
	require.NoError(t, err)
	assert.Equal(t, time.UTC, stored.OccurredAt.Location())
	assert.Equal(t, baseTime, stored.OccurredAt)
}

func TestIngestService_Ingest_Malformed(t *testing.T) {
	valid := commitEvent("ada-l", "abc", baseTime)

	tests := []struct {
		name   string
		mutate func(e *domain.Event)
		field  string
	}{
		{"unknown source", func(e *domain.Event) { e.SourceType = "jira" }, "source_type"},
		{"missing activity type", func(e *domain.Event) { e.ActivityType = "" }, "activity_type"},
		{"colon in activity type", func(e *domain.Event) { e.ActivityType = "a:b" }, "activity_type"},
		{"missing native id", func(e *domain.Event) { e.NativeID = "  " }, "native_id"},
		{"padded native id", func(e *domain.Event) { e.NativeID = " abc" }, "native_id"},
		{"missing time", func(e *domain.Event) { e.OccurredAt = time.Time{} }, "occurred_at"},
		{"time before 1678", func(e *domain.Event) { e.OccurredAt = time.Date(1500, 1, 1, 0, 0, 0, 0, time.UTC) }, "occurred_at"},
		{"time after 2261", func(e *domain.Event) { e.OccurredAt = time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC) }, "occurred_at"},
		{"missing actor", func(e *domain.Event) { e.Actor = domain.Actor{} }, "actor"},
		{"bad actor source", func(e *domain.Event) { e.Actor.SourceType = "jira" }, "actor.source_type"},
		{"blank actor key", func(e *domain.Event) { e.Actor.SourceKey = " " }, "actor.source_key"},
		{"missing payload", func(e *domain.Event) { e.Payload = nil }, "payload"},
		{"invalid payload", func(e *domain.Event) { e.Payload = json.RawMessage(`{nope`) }, "payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			e := valid
			tt.mutate(&e)

			_, err := env.ingest.Ingest(context.Background(), e)

			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrMalformedEvent)
			var malformed *domain.MalformedEventError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, tt.field, malformed.Field)
		})
	}
}

func TestIngestService_Ingest_MalformedKeepsRawEvent(t *testing.T) {
	env := newTestEnv(t)
	e := commitEvent("ada-l", "abc", baseTime)
	e.ActivityType = ""

	_, err := env.ingest.Ingest(context.Background(), e)

	var malformed *domain.MalformedEventError
	require.ErrorAs(t, err, &malformed)
	assert.Contains(t, string(malformed.Raw), `"NativeID":"abc"`)
}

func TestIngestService_Ingest_InvalidPayloadKeptVerbatim(t *testing.T) {
	env := newTestEnv(t)
	e := commitEvent("ada-l", "abc", baseTime)
	e.Payload = json.RawMessage(`{"sha": abc`)

	_, err := env.ingest.Ingest(context.Background(), e)

	var malformed *domain.MalformedEventError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "payload", malformed.Field)
	require.True(t, json.Valid(malformed.Raw))

	var raw struct {
		NativeID string
		Payload  string
	}
	require.NoError(t, json.Unmarshal(malformed.Raw, &raw))
	assert.Equal(t, "abc", raw.NativeID)
	assert.Equal(t, `{"sha": abc`, raw.Payload)
}

func TestIngestService_Ingest_StoreFailure(t *testing.T) {
	env := newTestEnv(t)
	boom := errors.New("disk full")
	ingest := NewIngestService(&failingActivityStore{
		ActivityStore: env.store.ActivityStore(),
		source:        domain.SourceGitHub,
		err:           boom,
	}, env.identity)

	_, err := ingest.Ingest(context.Background(), commitEvent("ada-l", "abc", baseTime))

	assert.ErrorIs(t, err, boom)
}

// Re-running a collector over an overlapping window inserts nothing new.
func TestIngest_DuplicateCollectionWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	week := make([]domain.Event, 0, 50)
	for i := range 50 {
		at := baseTime.Add(time.Duration(i) * 3 * time.Hour)
		if i >= 29 {
			at = baseTime.Add(96*time.Hour + time.Duration(i-29)*3*time.Hour)
		}
		week = append(week, commitEvent("ada-l", fmt.Sprintf("sha%02d", i), at))
	}
	since := baseTime.Add(96 * time.Hour)
	var overlap []domain.Event
	for _, e := range week {
		if !e.OccurredAt.Before(since) {
			overlap = append(overlap, e)
		}
	}
	require.Len(t, overlap, 21)

	first, err := env.runner.Run(ctx, week)
	require.NoError(t, err)
	assert.Equal(t, 50, first.Inserted())

	second, err := env.runner.Run(ctx, overlap)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted())
	assert.Equal(t, 21, second.AlreadyExisting())

	count := 0
	for _, err := range env.query.Query(ctx, domain.ActivityFilter{SourceType: domain.SourceGitHub}) {
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 50, count)
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/pulse/internal/core/domain"
	"github.com/custodia-labs/pulse/internal/core/ports/driven"
)

// activityStore implements driven.ActivityStore.
type activityStore struct {
	store *Store
}

var _ driven.ActivityStore = (*activityStore)(nil)

// effectivePerson is the read-time attribution of an activity row.
const effectivePerson = `COALESCE(i.person_id, a.person_id)`

const activitySelect = `
	SELECT a.activity_key, a.person_id, ` + effectivePerson + `,
		a.actor_source_type, a.actor_source_key, a.actor_display_name,
		a.source_type, a.activity_type, a.native_id,
		a.occurred_at, a.ingested_at, a.payload_kind, a.payload
	FROM activities a
	LEFT JOIN identifiers i
		ON i.source_type = a.actor_source_type AND i.key_norm = a.actor_key_norm`

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InsertActivity stores a new activity unless its key is taken.
func (s *activityStore) InsertActivity(ctx context.Context, a *domain.Activity) error {
	inserted, err := insertActivity(ctx, s.store.db, a)
	if err != nil {
		return err
	}
	if !inserted {
		return domain.ErrAlreadyExists
	}
	return nil
}

// insertActivity writes a with ON CONFLICT DO NOTHING and reports whether
// the row was new. The first stored payload is never replaced.
func insertActivity(ctx context.Context, db execer, a *domain.Activity) (bool, error) {
	ingestedAt := a.IngestedAt
	if ingestedAt.IsZero() {
		ingestedAt = time.Now()
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO activities (
			activity_key, person_id, actor_source_type, actor_source_key, actor_key_norm, actor_display_name,
			source_type, activity_type, native_id, occurred_at, ingested_at, payload_kind, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(activity_key) DO NOTHING
	`, a.Key, a.PersonID, a.Actor.SourceType, a.Actor.SourceKey,
		domain.NormalizeKey(a.Actor.SourceType, a.Actor.SourceKey), a.Actor.DisplayName,
		a.SourceType, a.ActivityType, a.NativeID, toNanos(a.OccurredAt), toNanos(ingestedAt),
		a.Payload.Kind, []byte(a.Payload.Data))
	if err != nil {
		return false, fmt.Errorf("inserting activity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting activity: %w", err)
	}
	return n == 1, nil
}

// GetActivity retrieves an activity by key.
func (s *activityStore) GetActivity(ctx context.Context, key string) (*domain.Activity, error) {
	row := s.store.db.QueryRowContext(ctx, activitySelect+` WHERE a.activity_key = ?`, key)
	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

// ListActivities returns a page of matching activities, newest first.
func (s *activityStore) ListActivities(ctx context.Context, filter domain.ActivityFilter, after domain.Cursor, limit int) ([]domain.Activity, error) {
	where, args := filterClauses(filter)
	if filter.PersonID != "" {
		where = append(where, effectivePerson+` = ?`)
		args = append(args, filter.PersonID)
	}
	if !after.IsZero() {
		at := toNanos(after.OccurredAt)
		where = append(where, `(a.occurred_at < ? OR (a.occurred_at = ? AND a.activity_key < ?))`)
		args = append(args, at, at, after.Key)
	}

	query := activitySelect + whereSQL(where) + ` ORDER BY a.occurred_at DESC, a.activity_key DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying activities: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Activity, 0, limit)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activities: %w", err)
	}
	return result, nil
}

// CountByPerson counts activities per effective person in one query.
func (s *activityStore) CountByPerson(ctx context.Context, personIDs []string, filter domain.ActivityFilter) (map[string]int, error) {
	counts := make(map[string]int)
	if len(personIDs) == 0 {
		return counts, nil
	}

	where, args := filterClauses(filter)
	where = append(where, effectivePerson+` IN (`+placeholders(len(personIDs))+`)`)
	for _, id := range personIDs {
		args = append(args, id)
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+effectivePerson+` AS effective_person_id, COUNT(*)
		FROM activities a
		LEFT JOIN identifiers i
			ON i.source_type = a.actor_source_type AND i.key_norm = a.actor_key_norm`+
		whereSQL(where)+`
		GROUP BY effective_person_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("counting activities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating counts: %w", err)
	}
	return counts, nil
}

// RecentByPerson returns the n most recent activities per effective person
// in one windowed query.
func (s *activityStore) RecentByPerson(ctx context.Context, personIDs []string, n int, filter domain.ActivityFilter) (map[string][]domain.Activity, error) {
	recent := make(map[string][]domain.Activity)
	if len(personIDs) == 0 || n <= 0 {
		return recent, nil
	}

	where, args := filterClauses(filter)
	where = append(where, effectivePerson+` IN (`+placeholders(len(personIDs))+`)`)
	for _, id := range personIDs {
		args = append(args, id)
	}
	args = append(args, n)

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT activity_key, person_id, effective_person_id,
			actor_source_type, actor_source_key, actor_display_name,
			source_type, activity_type, native_id,
			occurred_at, ingested_at, payload_kind, payload
		FROM (
			SELECT a.*, `+effectivePerson+` AS effective_person_id,
				ROW_NUMBER() OVER (
					PARTITION BY `+effectivePerson+`
					ORDER BY a.occurred_at DESC, a.activity_key DESC
				) AS rn
			FROM activities a
			LEFT JOIN identifiers i
				ON i.source_type = a.actor_source_type AND i.key_norm = a.actor_key_norm`+
		whereSQL(where)+`
		)
		WHERE rn <= ?
		ORDER BY effective_person_id, occurred_at DESC, activity_key DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying recent activities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		recent[a.EffectivePersonID] = append(recent[a.EffectivePersonID], *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating recent activities: %w", err)
	}
	return recent, nil
}

// filterClauses translates every filter field except PersonID.
func filterClauses(filter domain.ActivityFilter) ([]string, []any) {
	var where []string
	var args []any
	if filter.SourceType != "" {
		where = append(where, `a.source_type = ?`)
		args = append(args, filter.SourceType)
	}
	if filter.ActivityType != "" {
		where = append(where, `a.activity_type = ?`)
		args = append(args, filter.ActivityType)
	}
	if !filter.Since.IsZero() {
		where = append(where, `a.occurred_at >= ?`)
		args = append(args, toNanos(filter.Since))
	}
	if !filter.Until.IsZero() {
		where = append(where, `a.occurred_at < ?`)
		args = append(args, toNanos(filter.Until))
	}
	return where, args
}

func whereSQL(clauses []string) string {
	if len(clauses) == 0 {
		return ""
	}
	return "\n\tWHERE " + strings.Join(clauses, " AND ")
}

func scanActivity(row rowScanner) (*domain.Activity, error) {
	var a domain.Activity
	var occurredAt, ingestedAt int64
	var payload []byte
	if err := row.Scan(&a.Key, &a.PersonID, &a.EffectivePersonID,
		&a.Actor.SourceType, &a.Actor.SourceKey, &a.Actor.DisplayName,
		&a.SourceType, &a.ActivityType, &a.NativeID,
		&occurredAt, &ingestedAt, &a.Payload.Kind, &payload); err != nil {
		return nil, err
	}
	a.OccurredAt = fromNanos(occurredAt)
	a.IngestedAt = fromNanos(ingestedAt)
	if len(payload) > 0 {
		a.Payload.Data = payload
	}
	return &a, nil
}

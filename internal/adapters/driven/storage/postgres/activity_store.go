package postgres

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

const effectivePerson = `COALESCE(i.person_id, a.person_id)`

const activityColumns = `a.activity_key, a.person_id, ` + effectivePerson + ` AS effective_person_id,
		a.actor_source_type, a.actor_source_key, a.actor_display_name,
		a.source_type, a.activity_type, a.native_id,
		a.occurred_at, a.ingested_at, a.payload_kind, a.payload`

const activityJoin = `
	FROM activities a
	LEFT JOIN identifiers i
		ON i.source_type = a.actor_source_type AND i.key_norm = a.actor_key_norm`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type activityStore struct {
	store *Store
}

var _ driven.ActivityStore = (*activityStore)(nil)

func (s *activityStore) InsertActivity(ctx context.Context, a *domain.Activity) error {
	ctx, cancel, err := s.store.op(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	inserted, err := insertActivity(ctx, s.store.db, a)
	if err != nil {
		return err
	}
	if !inserted {
		return domain.ErrAlreadyExists
	}
	return nil
}

func insertActivity(ctx context.Context, db execer, a *domain.Activity) (bool, error) {
	ingestedAt := a.IngestedAt
	if ingestedAt.IsZero() {
		ingestedAt = time.Now()
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO activities (
			activity_key, person_id, actor_source_type, actor_source_key, actor_key_norm, actor_display_name,
			source_type, activity_type, native_id, occurred_at, ingested_at, payload_kind, payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (activity_key) DO NOTHING`,
		a.Key, a.PersonID, a.Actor.SourceType, a.Actor.SourceKey,
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

func (s *activityStore) GetActivity(ctx context.Context, key string) (*domain.Activity, error) {
	ctx, cancel, err := s.store.op(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	row := s.store.db.QueryRowContext(ctx, `SELECT `+activityColumns+activityJoin+` WHERE a.activity_key = $1`, key)
	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning activity: %w", err)
	}
	return a, nil
}

func (s *activityStore) ListActivities(ctx context.Context, filter domain.ActivityFilter, after domain.Cursor, limit int) ([]domain.Activity, error) {
	ctx, cancel, err := s.store.op(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var p params
	where := filterClauses(&p, filter)
	if filter.PersonID != "" {
		where = append(where, effectivePerson+` = `+p.add(filter.PersonID))
	}
	if !after.IsZero() {
		at := p.add(toNanos(after.OccurredAt))
		where = append(where, `(a.occurred_at < `+at+` OR (a.occurred_at = `+at+` AND a.activity_key < `+p.add(after.Key)+`))`)
	}
	query := `SELECT ` + activityColumns + activityJoin + whereSQL(where) +
		` ORDER BY a.occurred_at DESC, a.activity_key DESC LIMIT ` + p.add(limit)

	rows, err := s.store.db.QueryContext(ctx, query, p.values...)
	if err != nil {
		return nil, fmt.Errorf("querying activities: %w", err)
	}
	return collectActivities(rows, limit)
}

func (s *activityStore) CountByPerson(ctx context.Context, personIDs []string, filter domain.ActivityFilter) (map[string]int, error) {
	counts := make(map[string]int)
	if len(personIDs) == 0 {
		return counts, nil
	}
	ctx, cancel, err := s.store.op(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var p params
	where := filterClauses(&p, filter)
	where = append(where, effectivePerson+` IN (`+p.list(personIDs)+`)`)

	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+effectivePerson+`, COUNT(*)`+activityJoin+whereSQL(where)+` GROUP BY 1`, p.values...)
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

func (s *activityStore) RecentByPerson(ctx context.Context, personIDs []string, n int, filter domain.ActivityFilter) (map[string][]domain.Activity, error) {
	recent := make(map[string][]domain.Activity)
	if len(personIDs) == 0 || n <= 0 {
		return recent, nil
	}
	ctx, cancel, err := s.store.op(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var p params
	where := filterClauses(&p, filter)
	where = append(where, effectivePerson+` IN (`+p.list(personIDs)+`)`)

	query := `
		SELECT activity_key, person_id, effective_person_id,
			actor_source_type, actor_source_key, actor_display_name,
			source_type, activity_type, native_id,
			occurred_at, ingested_at, payload_kind, payload
		FROM (
			SELECT ` + activityColumns + `,
				ROW_NUMBER() OVER (
					PARTITION BY ` + effectivePerson + `
					ORDER BY a.occurred_at DESC, a.activity_key DESC
				) AS rn` + activityJoin + whereSQL(where) + `
		) ranked
		WHERE rn <= ` + p.add(n) + `
		ORDER BY effective_person_id, occurred_at DESC, activity_key DESC`

	rows, err := s.store.db.QueryContext(ctx, query, p.values...)
	if err != nil {
		return nil, fmt.Errorf("querying recent activities: %w", err)
	}
	list, err := collectActivities(rows, 0)
	if err != nil {
		return nil, err
	}
	for _, a := range list {
		recent[a.EffectivePersonID] = append(recent[a.EffectivePersonID], a)
	}
	return recent, nil
}

func filterClauses(p *params, filter domain.ActivityFilter) []string {
	var where []string
	if filter.SourceType != "" {
		where = append(where, `a.source_type = `+p.add(filter.SourceType))
	}
	if filter.ActivityType != "" {
		where = append(where, `a.activity_type = `+p.add(filter.ActivityType))
	}
	if !filter.Since.IsZero() {
		where = append(where, `a.occurred_at >= `+p.add(toNanos(filter.Since)))
	}
	if !filter.Until.IsZero() {
		where = append(where, `a.occurred_at < `+p.add(toNanos(filter.Until)))
	}
	return where
}

func whereSQL(clauses []string) string {
	if len(clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

func collectActivities(rows *sql.Rows, capacity int) ([]domain.Activity, error) {
	defer rows.Close()
	result := make([]domain.Activity, 0, capacity)
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

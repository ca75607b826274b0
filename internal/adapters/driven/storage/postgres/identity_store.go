package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/pulse/internal/core/domain"
	"github.com/custodia-labs/pulse/internal/core/ports/driven"
)

const personColumns = `id, display_name, primary_email, active, created_at, updated_at`

type personStore struct {
	store *Store
}

var _ driven.PersonStore = (*personStore)(nil)

func (s *personStore) CreatePerson(ctx context.Context, p domain.Person) error {
	ctx, cancel, err := s.store.op(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO persons (id, display_name, name_key, primary_email, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.DisplayName, p.NormalizedName(), p.PrimaryEmail, p.Active, toNanos(p.CreatedAt), toNanos(now))
	switch {
	case isUniqueViolation(err, "persons_pkey"):
		return domain.ErrAlreadyExists
	case isUniqueViolation(err, "persons_active_name_key"):
		return domain.ErrDuplicateDisplayName
	case err != nil:
		return fmt.Errorf("creating person: %w", err)
	}
	return nil
}

func (s *personStore) UpdatePerson(ctx context.Context, p domain.Person) error {
	ctx, cancel, err := s.store.op(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE persons
		SET display_name = $1, name_key = $2, primary_email = $3, active = $4, updated_at = $5
		WHERE id = $6`,
		p.DisplayName, p.NormalizedName(), p.PrimaryEmail, p.Active, toNanos(time.Now()), p.ID)
	if isUniqueViolation(err, "persons_active_name_key") {
		return domain.ErrDuplicateDisplayName
	}
	if err != nil {
		return fmt.Errorf("updating person: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating person: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *personStore) GetPerson(ctx context.Context, id string) (*domain.Person, error) {
	ctx, cancel, err := s.store.op(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return scanPerson(s.store.db.QueryRowContext(ctx, `SELECT `+personColumns+` FROM persons WHERE id = $1`, id))
}

func (s *personStore) FindPersonByName(ctx context.Context, name string) (*domain.Person, error) {
	ctx, cancel, err := s.store.op(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return scanPerson(s.store.db.QueryRowContext(ctx, `
		SELECT `+personColumns+` FROM persons
		WHERE name_key = $1
		ORDER BY active DESC, updated_at DESC
		LIMIT 1`, domain.NormalizeName(name)))
}

func (s *personStore) ListPersons(ctx context.Context, includeInactive bool) ([]domain.Person, error) {
	ctx, cancel, err := s.store.op(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	query := `SELECT ` + personColumns + ` FROM persons`
	if !includeInactive {
		query += ` WHERE active`
	}
	query += ` ORDER BY name_key, id`

	rows, err := s.store.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying persons: %w", err)
	}
	defer rows.Close()

	var persons []domain.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		persons = append(persons, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating persons: %w", err)
	}
	return persons, nil
}

func scanPerson(row rowScanner) (*domain.Person, error) {
	var p domain.Person
	var createdAt, updatedAt int64
	if err := row.Scan(&p.ID, &p.DisplayName, &p.PrimaryEmail, &p.Active, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning person: %w", err)
	}
	p.CreatedAt = fromNanos(createdAt)
	p.UpdatedAt = fromNanos(updatedAt)
	return &p, nil
}

type identifierStore struct {
	store *Store
}

var _ driven.IdentifierStore = (*identifierStore)(nil)

// BindIfAbsent inserts the binding unless the identifier is already bound.
func (s *identifierStore) BindIfAbsent(ctx context.Context, id domain.Identifier) (domain.Identifier, bool, error) {
	ctx, cancel, err := s.store.op(ctx)
	if err != nil {
		return domain.Identifier{}, false, err
	}
	defer cancel()

	if id.CreatedAt.IsZero() {
		id.CreatedAt = time.Now().UTC()
	}
	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO identifiers (source_type, key_norm, source_key, person_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source_type, key_norm) DO NOTHING`,
		id.SourceType, id.NormalizedKey(), id.SourceKey, id.PersonID, toNanos(id.CreatedAt))
	if err != nil {
		return domain.Identifier{}, false, fmt.Errorf("binding identifier: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Identifier{}, false, fmt.Errorf("binding identifier: %w", err)
	}

	stored, err := lookupIdentifier(ctx, s.store.db, id.SourceType, id.SourceKey)
	if err != nil {
		return domain.Identifier{}, false, err
	}
	return *stored, n == 1, nil
}

func (s *identifierStore) LookupIdentifier(ctx context.Context, sourceType domain.SourceType, key string) (*domain.Identifier, error) {
	ctx, cancel, err := s.store.op(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return lookupIdentifier(ctx, s.store.db, sourceType, key)
}

func lookupIdentifier(ctx context.Context, db *sql.DB, sourceType domain.SourceType, key string) (*domain.Identifier, error) {
	row := db.QueryRowContext(ctx, `
		SELECT source_type, source_key, person_id, created_at
		FROM identifiers WHERE source_type = $1 AND key_norm = $2`,
		sourceType, domain.NormalizeKey(sourceType, key))
	return scanIdentifier(row)
}

func (s *identifierStore) ListIdentifiers(ctx context.Context, personID string) ([]domain.Identifier, error) {
	ctx, cancel, err := s.store.op(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT source_type, source_key, person_id, created_at
		FROM identifiers WHERE person_id = $1
		ORDER BY source_type, key_norm`, personID)
	if err != nil {
		return nil, fmt.Errorf("querying identifiers: %w", err)
	}
	defer rows.Close()

	var ids []domain.Identifier
	for rows.Next() {
		id, err := scanIdentifier(rows)
		if err != nil {
			return nil, err
		}
		ids = append(ids, *id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating identifiers: %w", err)
	}
	return ids, nil
}

func scanIdentifier(row rowScanner) (*domain.Identifier, error) {
	var id domain.Identifier
	var createdAt int64
	if err := row.Scan(&id.SourceType, &id.SourceKey, &id.PersonID, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning identifier: %w", err)
	}
	id.CreatedAt = fromNanos(createdAt)
	return &id, nil
}

type unresolvedStore struct {
	store *Store
}

var _ driven.UnresolvedStore = (*unresolvedStore)(nil)

func (s *unresolvedStore) RecordUnresolved(ctx context.Context, actor domain.Actor, seenAt time.Time) error {
	ctx, cancel, err := s.store.op(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	seen := toNanos(seenAt)
	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO unresolved_actors (source_type, key_norm, source_key, observed_display_name, occurrences, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, 1, $5, $5)
		ON CONFLICT (source_type, key_norm) DO UPDATE SET
			occurrences = unresolved_actors.occurrences + 1,
			observed_display_name = COALESCE(NULLIF(EXCLUDED.observed_display_name, ''), unresolved_actors.observed_display_name),
			first_seen = LEAST(unresolved_actors.first_seen, EXCLUDED.first_seen),
			last_seen = GREATEST(unresolved_actors.last_seen, EXCLUDED.last_seen)`,
		actor.SourceType, domain.NormalizeKey(actor.SourceType, actor.SourceKey), actor.SourceKey, actor.DisplayName, seen)
	if err != nil {
		return fmt.Errorf("recording unresolved actor: %w", err)
	}
	return nil
}

func (s *unresolvedStore) ListUnresolved(ctx context.Context) ([]domain.UnresolvedActor, error) {
	ctx, cancel, err := s.store.op(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT source_type, source_key, observed_display_name, occurrences, first_seen, last_seen
		FROM unresolved_actors
		ORDER BY occurrences DESC, source_type, key_norm`)
	if err != nil {
		return nil, fmt.Errorf("querying unresolved actors: %w", err)
	}
	defer rows.Close()

	var result []domain.UnresolvedActor
	for rows.Next() {
		var u domain.UnresolvedActor
		var first, last int64
		if err := rows.Scan(&u.SourceType, &u.SourceKey, &u.ObservedDisplayName, &u.Occurrences, &first, &last); err != nil {
			return nil, fmt.Errorf("scanning unresolved actor: %w", err)
		}
		u.FirstSeen = fromNanos(first)
		u.LastSeen = fromNanos(last)
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating unresolved actors: %w", err)
	}
	return result, nil
}

func (s *unresolvedStore) DeleteUnresolved(ctx context.Context, sourceType domain.SourceType, key string) error {
	ctx, cancel, err := s.store.op(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	_, err = s.store.db.ExecContext(ctx,
		`DELETE FROM unresolved_actors WHERE source_type = $1 AND key_norm = $2`,
		sourceType, domain.NormalizeKey(sourceType, key))
	if err != nil {
		return fmt.Errorf("deleting unresolved actor: %w", err)
	}
	return nil
}

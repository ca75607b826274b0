package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/pulse/internal/core/domain"
	"github.com/custodia-labs/pulse/internal/core/ports/driven"
)

type snapshotStore struct {
	store *Store
}

var _ driven.SnapshotStore = (*snapshotStore)(nil)

func (s *snapshotStore) GetSnapshot(ctx context.Context, documentID string) (*domain.DocumentSnapshot, error) {
	ctx, cancel, err := s.store.op(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var snap domain.DocumentSnapshot
	var capturedAt int64
	err = s.store.db.QueryRowContext(ctx, `
		SELECT document_id, source_type, revision_marker, content, content_hash, segmentation, state, captured_at
		FROM document_snapshots WHERE document_id = $1`, documentID).
		Scan(&snap.DocumentID, &snap.SourceType, &snap.RevisionMarker, &snap.Content,
			&snap.ContentHash, &snap.Segmentation, &snap.State, &capturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning snapshot: %w", err)
	}
	snap.CapturedAt = fromNanos(capturedAt)
	return &snap, nil
}

func (s *snapshotStore) CreateSnapshot(ctx context.Context, snap domain.DocumentSnapshot) error {
	ctx, cancel, err := s.store.op(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO document_snapshots (document_id, source_type, revision_marker, content, content_hash, segmentation, state, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (document_id) DO NOTHING`,
		snap.DocumentID, snap.SourceType, snap.RevisionMarker, snap.Content, snap.ContentHash,
		snap.Segmentation, snap.State, toNanos(snap.CapturedAt))
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}
	if n == 0 {
		return domain.ErrRevisionConflict
	}
	return nil
}

func (s *snapshotStore) AdvanceSnapshot(ctx context.Context, next domain.DocumentSnapshot, expectedRevision string, diff *domain.Activity) (bool, error) {
	ctx, cancel, err := s.store.op(ctx)
	if err != nil {
		return false, err
	}
	defer cancel()

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		UPDATE document_snapshots
		SET source_type = $1, revision_marker = $2, content = $3, content_hash = $4,
			segmentation = $5, state = $6, captured_at = $7
		WHERE document_id = $8 AND revision_marker = $9`,
		next.SourceType, next.RevisionMarker, next.Content, next.ContentHash,
		next.Segmentation, next.State, toNanos(next.CapturedAt),
		next.DocumentID, expectedRevision)
	if err != nil {
		return false, fmt.Errorf("advancing snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("advancing snapshot: %w", err)
	}
	if n == 0 {
		return false, domain.ErrRevisionConflict
	}

	inserted := false
	if diff != nil {
		if inserted, err = insertActivity(ctx, tx, diff); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing transaction: %w", err)
	}
	return inserted, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/pulse/internal/core/domain"
	"github.com/custodia-labs/pulse/internal/core/ports/driven"
)

// snapshotStore implements driven.SnapshotStore.
type snapshotStore struct {
	store *Store
}

var _ driven.SnapshotStore = (*snapshotStore)(nil)

// GetSnapshot retrieves the current snapshot of a document.
func (s *snapshotStore) GetSnapshot(ctx context.Context, documentID string) (*domain.DocumentSnapshot, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT document_id, source_type, revision_marker, content, content_hash, segmentation, state, captured_at
		FROM document_snapshots WHERE document_id = ?
	`, documentID)

	var snap domain.DocumentSnapshot
	var capturedAt int64
	if err := row.Scan(&snap.DocumentID, &snap.SourceType, &snap.RevisionMarker, &snap.Content,
		&snap.ContentHash, &snap.Segmentation, &snap.State, &capturedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning snapshot: %w", err)
	}
	snap.CapturedAt = fromNanos(capturedAt)
	return &snap, nil
}

// CreateSnapshot stores the baseline snapshot of a document.
func (s *snapshotStore) CreateSnapshot(ctx context.Context, snap domain.DocumentSnapshot) error {
	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO document_snapshots (document_id, source_type, revision_marker, content, content_hash, segmentation, state, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO NOTHING
	`, snap.DocumentID, snap.SourceType, snap.RevisionMarker, snap.Content, snap.ContentHash,
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

// AdvanceSnapshot replaces the snapshot and stores the diff activity in one
// transaction, guarded by the expected revision.
func (s *snapshotStore) AdvanceSnapshot(ctx context.Context, next domain.DocumentSnapshot, expectedRevision string, diff *domain.Activity) (bool, error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		UPDATE document_snapshots
		SET source_type = ?, revision_marker = ?, content = ?, content_hash = ?,
			segmentation = ?, state = ?, captured_at = ?
		WHERE document_id = ? AND revision_marker = ?
	`, next.SourceType, next.RevisionMarker, next.Content, next.ContentHash,
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

package driven

import (
	"context"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

// SnapshotStore persists the current snapshot of each tracked document.
type SnapshotStore interface {
	// GetSnapshot retrieves the current snapshot of a document.
	// Returns domain.ErrNotFound for a document that was never observed.
	GetSnapshot(ctx context.Context, documentID string) (*domain.DocumentSnapshot, error)

	// CreateSnapshot stores the baseline snapshot of a document.
	// Returns domain.ErrRevisionConflict when a snapshot already exists.
	CreateSnapshot(ctx context.Context, snap domain.DocumentSnapshot) error

	// AdvanceSnapshot atomically stores the diff activity (idempotently) and
	// replaces the snapshot, but only while the stored revision still equals
	// expectedRevision; otherwise nothing is written and
	// domain.ErrRevisionConflict is returned. The boolean reports whether the
	// diff activity was newly inserted.
	AdvanceSnapshot(ctx context.Context, next domain.DocumentSnapshot, expectedRevision string, diff *domain.Activity) (bool, error)
}

package driving

import (
	"context"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

// SnapshotTracker turns successive observations of a document into diffs.
type SnapshotTracker interface {
	// Observe records a poll result and, for a new revision, stores the
	// ContentDiff activity and advances the snapshot.
	Observe(ctx context.Context, obs domain.Observation) (*domain.TrackResult, error)
}

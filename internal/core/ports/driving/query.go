package driving

import (
	"context"
	"iter"

	"github.com/custodia-labs/pulse/internal/batch"
	"github.com/custodia-labs/pulse/internal/core/domain"
)

// ActivityService serves filtered reads over the activity log.
type ActivityService interface {
	// Query returns a lazy, finite, restartable sequence of matching
	// activities, newest first. Iteration stops at the first error.
	Query(ctx context.Context, filter domain.ActivityFilter) iter.Seq2[domain.Activity, error]

	// QueryPage returns one page and the cursor of the next one.
	QueryPage(ctx context.Context, filter domain.ActivityFilter, cursor string, limit int) (*domain.ActivityPage, error)
}

// SummaryService serves per-person aggregates in bulk.
type SummaryService interface {
	// Summaries returns one summary per requested person, in request order.
	// Every kind of aggregate costs one datastore query regardless of how
	// many persons are requested.
	Summaries(ctx context.Context, personIDs []string, recent int) ([]domain.PersonSummary, error)
}

// AggregateService queues per-person aggregates on the batch scope carried
// by ctx. Thunks queued before the first one is awaited share one query.
type AggregateService interface {
	ActivityCount(ctx context.Context, personID string) batch.Thunk[int]
	RecentActivities(ctx context.Context, personID string, n int) batch.Thunk[[]domain.Activity]
}

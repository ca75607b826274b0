package driven

import (
	"context"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

// ActivityStore persists the unified activity log.
//
// Reads attribute every activity to its effective person: the current binding
// of the stored actor when one exists, the ingestion-time person otherwise.
type ActivityStore interface {
	// InsertActivity stores a new activity.
	// Returns domain.ErrAlreadyExists when the key is taken; the stored row is
	// left untouched. The uniqueness constraint on the key is the only arbiter.
	InsertActivity(ctx context.Context, a *domain.Activity) error

	// GetActivity retrieves an activity by key.
	GetActivity(ctx context.Context, key string) (*domain.Activity, error)

	// ListActivities returns at most limit activities matching filter that sort
	// strictly after the cursor in (occurred_at desc, key desc) order.
	// filter.Identifier is ignored; callers resolve it first.
	ListActivities(ctx context.Context, filter domain.ActivityFilter, after domain.Cursor, limit int) ([]domain.Activity, error)

	// CountByPerson counts activities per effective person in one query.
	// Persons without activity are absent from the result.
	// filter.PersonID and filter.Identifier are ignored.
	CountByPerson(ctx context.Context, personIDs []string, filter domain.ActivityFilter) (map[string]int, error)

	// RecentByPerson returns the n most recent activities per effective person
	// in one query. Persons without activity are absent from the result.
	RecentByPerson(ctx context.Context, personIDs []string, n int, filter domain.ActivityFilter) (map[string][]domain.Activity, error)
}

package services

import (
	"context"
	"fmt"
	"iter"

	"github.com/custodia-labs/pulse/internal/batch"
	"github.com/custodia-labs/pulse/internal/core/domain"
	"github.com/custodia-labs/pulse/internal/core/ports/driven"
	"github.com/custodia-labs/pulse/internal/core/ports/driving"
)

// Ensure QueryService implements the interfaces.
var (
	_ driving.ActivityService  = (*QueryService)(nil)
	_ driving.SummaryService   = (*QueryService)(nil)
	_ driving.AggregateService = (*QueryService)(nil)
)

// maxPageSize caps a single page regardless of what the caller asks for.
const maxPageSize = 1000

// QueryService serves reads over the activity log.
type QueryService struct {
	activities driven.ActivityStore
	registry   driving.IdentityRegistry
	settings   domain.QuerySettings
	hook       batch.DispatchHook
}

// NewQueryService creates a new query service. hook observes batches that
// are dispatched outside a request scope and may be nil.
func NewQueryService(
	activities driven.ActivityStore,
	registry driving.IdentityRegistry,
	settings domain.QuerySettings,
	hook batch.DispatchHook,
) *QueryService {
	defaults := domain.DefaultAppSettings().Query
	if settings.PageSize < 1 {
		settings.PageSize = defaults.PageSize
	}
	if settings.MaxRecent < 1 {
		settings.MaxRecent = defaults.MaxRecent
	}
	return &QueryService{
		activities: activities,
		registry:   registry,
		settings:   settings,
		hook:       hook,
	}
}

// Query returns matching activities newest first, fetching one page at a
// time as the caller iterates. Ranging over the result again restarts it.
func (s *QueryService) Query(ctx context.Context, filter domain.ActivityFilter) iter.Seq2[domain.Activity, error] {
	return func(yield func(domain.Activity, error) bool) {
		f, ok, err := s.resolveFilter(ctx, filter)
		if err != nil {
			yield(domain.Activity{}, err)
			return
		}
		if !ok {
			return
		}

		var after domain.Cursor
		for {
			page, err := s.activities.ListActivities(ctx, f, after, s.settings.PageSize)
			if err != nil {
				yield(domain.Activity{}, fmt.Errorf("list activities: %w", err))
				return
			}
			for i := range page {
				if !yield(page[i], nil) {
					return
				}
			}
			if len(page) < s.settings.PageSize {
				return
			}
			after = domain.CursorAfter(&page[len(page)-1])
		}
	}
}

// QueryPage returns one page and the cursor of the next one.
func (s *QueryService) QueryPage(ctx context.Context, filter domain.ActivityFilter, cursor string, limit int) (*domain.ActivityPage, error) {
	after, err := domain.DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = s.settings.PageSize
	}
	limit = min(limit, maxPageSize)

	f, ok, err := s.resolveFilter(ctx, filter)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &domain.ActivityPage{Activities: []domain.Activity{}}, nil
	}

	// One extra row tells whether another page exists.
	rows, err := s.activities.ListActivities(ctx, f, after, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}

	page := &domain.ActivityPage{Activities: rows}
	if len(rows) > limit {
		page.Activities = rows[:limit]
		page.NextCursor = domain.CursorAfter(&rows[limit-1]).Encode()
	}
	return page, nil
}

// resolveFilter turns an identifier filter into a person filter. The
// boolean is false when the identifier has no binding, so nothing matches.
func (s *QueryService) resolveFilter(ctx context.Context, filter domain.ActivityFilter) (domain.ActivityFilter, bool, error) {
	if filter.SourceType != "" && !filter.SourceType.Valid() {
		return filter, false, fmt.Errorf("%w: source type %q", domain.ErrUnsupportedType, filter.SourceType)
	}
	if !filter.Since.IsZero() && !filter.Until.IsZero() && !filter.Until.After(filter.Since) {
		return filter, false, fmt.Errorf("%w: until must be after since", domain.ErrInvalidInput)
	}
	if filter.PersonID != "" || filter.Identifier == nil {
		return filter, true, nil
	}

	personID, ok, err := s.registry.Resolve(ctx, filter.Identifier.SourceType, filter.Identifier.SourceKey)
	if err != nil || !ok {
		return filter, false, err
	}
	filter.PersonID = personID
	filter.Identifier = nil
	return filter, true, nil
}

// ActivityCount queues the activity count of a person on the count loader
// of the request scope. Every count requested before the first thunk is
// awaited is answered by the same query.
func (s *QueryService) ActivityCount(ctx context.Context, personID string) batch.Thunk[int] {
	return s.countLoader(ctx).Load(personID)
}

// RecentActivities queues the n most recent activities of a person.
func (s *QueryService) RecentActivities(ctx context.Context, personID string, n int) batch.Thunk[[]domain.Activity] {
	return s.recentLoader(ctx, min(n, s.settings.MaxRecent)).Load(personID)
}

// Summaries returns one summary per requested person, in request order.
func (s *QueryService) Summaries(ctx context.Context, personIDs []string, recent int) ([]domain.PersonSummary, error) {
	if recent < 0 {
		return nil, fmt.Errorf("%w: recent must not be negative", domain.ErrInvalidInput)
	}
	recent = min(recent, s.settings.MaxRecent)
	if _, ok := batch.FromContext(ctx); !ok {
		ctx = batch.WithScope(ctx, batch.NewScope(s.hook))
	}

	counts := s.countLoader(ctx).LoadMany(personIDs)
	var recents []batch.Thunk[[]domain.Activity]
	if recent > 0 {
		recents = s.recentLoader(ctx, recent).LoadMany(personIDs)
	}

	out := make([]domain.PersonSummary, len(personIDs))
	for i, id := range personIDs {
		n, err := counts[i]()
		if err != nil {
			return nil, err
		}
		out[i] = domain.PersonSummary{PersonID: id, ActivityCount: n, Recent: []domain.Activity{}}
		if recents == nil {
			continue
		}
		acts, err := recents[i]()
		if err != nil {
			return nil, err
		}
		if acts != nil {
			out[i].Recent = acts
		}
	}
	return out, nil
}

func (s *QueryService) countLoader(ctx context.Context) *batch.Loader[string, int] {
	return batch.For(ctx, domain.LoaderActivityCount, func(ctx context.Context, keys []string) (map[string]int, error) {
		return s.activities.CountByPerson(ctx, keys, domain.ActivityFilter{})
	})
}

func (s *QueryService) recentLoader(ctx context.Context, n int) *batch.Loader[string, []domain.Activity] {
	name := fmt.Sprintf("%s/%d", domain.LoaderRecentActivities, n)
	return batch.For(ctx, name, func(ctx context.Context, keys []string) (map[string][]domain.Activity, error) {
		return s.activities.RecentByPerson(ctx, keys, n, domain.ActivityFilter{})
	})
}

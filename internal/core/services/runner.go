package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/pulse/internal/core/domain"
	"github.com/custodia-labs/pulse/internal/core/ports/driving"
	"github.com/custodia-labs/pulse/internal/logger"
	"github.com/custodia-labs/pulse/internal/metrics"
)

// Ensure RunnerService implements the interface.
var _ driving.IngestRunner = (*RunnerService)(nil)

// RunnerService ingests collection runs. Events of one source type are
// written by their own pool of workers so a failing source does not stall
// the others.
type RunnerService struct {
	ingester *IngestService
	settings domain.IngestSettings
}

// NewRunnerService creates a new runner service.
func NewRunnerService(ingester *IngestService, settings domain.IngestSettings) *RunnerService {
	if settings.WorkersPerSource < 1 {
		settings.WorkersPerSource = 1
	}
	return &RunnerService{ingester: ingester, settings: settings}
}

// Run ingests all events and reports per-outcome counts.
func (s *RunnerService) Run(ctx context.Context, events []domain.Event) (*domain.RunSummary, error) {
	start := time.Now()
	if logger.RunID(ctx) == "" {
		ctx = logger.WithRunID(ctx, logger.NewID())
	}
	log := logger.Ctx(ctx)

	order, bySource := partitionBySource(events)
	summary := domain.NewRunSummary()

	var (
		g    errgroup.Group
		errs = make([]error, len(order))
	)
	for i, source := range order {
		g.Go(func() error {
			partial := domain.NewRunSummary()
			errs[i] = s.runSource(ctx, source, bySource[source], partial)
			summary.Merge(partial)
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(start)
	metrics.RecordIngestRun(elapsed)
	log.Info().
		Int("events", len(events)).
		Int("inserted", summary.Inserted()).
		Int("already_existing", summary.AlreadyExisting()).
		Int("malformed", summary.Malformed()).
		Int("unresolved_events", summary.UnresolvedEvents()).
		Dur("elapsed", elapsed).
		Msg("ingestion run finished")

	for _, w := range summary.Warnings() {
		log.Warn().
			Str("actor", w.Actor.String()).
			Int("occurrences", w.Occurrences).
			Msg("unresolved actor")
	}

	return summary, errors.Join(errs...)
}

// runSource writes the events of one source. The first datastore error
// stops the source; malformed events are counted and skipped.
func (s *RunnerService) runSource(ctx context.Context, source domain.SourceType, events []domain.Event, summary *domain.RunSummary) error {
	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan domain.Event)

	var limiter *rate.Limiter
	if s.settings.MaxEventsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.settings.MaxEventsPerSecond), 1)
	}

	g.Go(func() error {
		defer close(jobs)
		for _, e := range events {
			select {
			case jobs <- e:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for range s.settings.WorkersPerSource {
		g.Go(func() error {
			for e := range jobs {
				if err := gctx.Err(); err != nil {
					return err
				}
				if limiter != nil {
					if err := limiter.Wait(gctx); err != nil {
						return err
					}
				}
				res, err := s.ingester.IngestEvent(gctx, e)
				var malformed *domain.MalformedEventError
				switch {
				case errors.As(err, &malformed):
					summary.RecordMalformed()
					logger.Ctx(gctx).Warn().
						Str("source", malformed.SourceType).
						Str("field", malformed.Field).
						Str("reason", malformed.Reason).
						RawJSON("event", rawOrNull(malformed.Raw)).
						Msg("skipping malformed event")
				case err != nil:
					return err
				default:
					summary.Record(res.Outcome, res.Unresolved)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("source", string(source)).Msg("source ingestion stopped")
		return fmt.Errorf("ingest %s: %w", source, err)
	}
	return nil
}

// partitionBySource groups events by source type, keeping their order.
func partitionBySource(events []domain.Event) ([]domain.SourceType, map[domain.SourceType][]domain.Event) {
	var order []domain.SourceType //nolint:prealloc // number of sources unknown
	groups := make(map[domain.SourceType][]domain.Event)
	for _, e := range events {
		if _, ok := groups[e.SourceType]; !ok {
			order = append(order, e.SourceType)
		}
		groups[e.SourceType] = append(groups[e.SourceType], e)
	}
	return order, groups
}

func rawOrNull(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}

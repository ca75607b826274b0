package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/pulse/internal/core/domain"
	"github.com/custodia-labs/pulse/internal/core/ports/driven"
	"github.com/custodia-labs/pulse/internal/core/ports/driving"
	"github.com/custodia-labs/pulse/internal/logger"
	"github.com/custodia-labs/pulse/internal/metrics"
)

// Ensure IngestService implements the interface.
var _ driving.Ingester = (*IngestService)(nil)

// IngestResult is the detailed outcome of one Ingest call.
type IngestResult struct {
	Key     string
	Outcome domain.IngestOutcome

	// Unresolved is set when the actor had no binding and the activity was
	// attributed to the unknown person.
	Unresolved *domain.Actor
}

// IngestService is the single write path of the activity log.
type IngestService struct {
	activities driven.ActivityStore
	registry   driving.IdentityRegistry
	now        func() time.Time
}

// NewIngestService creates a new ingest service.
func NewIngestService(activities driven.ActivityStore, registry driving.IdentityRegistry) *IngestService {
	return &IngestService{
		activities: activities,
		registry:   registry,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Ingest stores the event idempotently.
func (s *IngestService) Ingest(ctx context.Context, event domain.Event) (domain.IngestOutcome, error) {
	res, err := s.IngestEvent(ctx, event)
	if err != nil {
		return 0, err
	}
	return res.Outcome, nil
}

// IngestEvent validates, resolves and stores one event.
// A repeat of a stored key keeps the first-seen activity untouched.
func (s *IngestService) IngestEvent(ctx context.Context, event domain.Event) (*IngestResult, error) {
	if err := ValidateEvent(event); err != nil {
		metrics.RecordIngest(string(event.SourceType), metrics.OutcomeMalformed, false)
		return nil, err
	}

	activity, unresolved, err := s.prepare(ctx, event)
	if err != nil {
		metrics.RecordIngest(string(event.SourceType), metrics.OutcomeError, false)
		return nil, err
	}

	res := &IngestResult{Key: activity.Key, Outcome: domain.Inserted, Unresolved: unresolved}
	err = s.activities.InsertActivity(ctx, activity)
	switch {
	case errors.Is(err, domain.ErrAlreadyExists):
		res.Outcome = domain.AlreadyExists
	case err != nil:
		metrics.RecordIngest(string(event.SourceType), metrics.OutcomeError, false)
		return nil, fmt.Errorf("insert activity %s: %w", activity.Key, err)
	}

	metrics.RecordIngest(string(event.SourceType), res.Outcome.String(), unresolved != nil)
	logger.Ctx(ctx).Debug().
		Str("key", res.Key).
		Str("person", activity.PersonID).
		Stringer("outcome", res.Outcome).
		Msg("ingested event")
	return res, nil
}

func (s *IngestService) prepare(ctx context.Context, event domain.Event) (*domain.Activity, *domain.Actor, error) {
	actor := event.Actor
	actor.SourceKey = strings.TrimSpace(actor.SourceKey)

	personID, err := s.registry.ResolveOrCreateProvisional(ctx, actor.SourceType, actor.SourceKey, actor.DisplayName)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve actor %s: %w", actor, err)
	}

	var unresolved *domain.Actor
	if personID == domain.UnknownPersonID {
		unresolved = &actor
	}

	return &domain.Activity{
		Key:          event.Key(),
		PersonID:     personID,
		Actor:        actor,
		SourceType:   event.SourceType,
		ActivityType: event.ActivityType,
		NativeID:     event.NativeID,
		OccurredAt:   event.OccurredAt.UTC(),
		IngestedAt:   s.now(),
		Payload:      domain.Payload{Kind: event.ActivityType, Data: event.Payload},
	}, unresolved, nil
}

// ValidateEvent checks the fields the activity key and attribution depend on.
// It returns a *domain.MalformedEventError describing the first problem.
func ValidateEvent(event domain.Event) error {
	malformed := func(field, reason string) error {
		if len(event.Payload) > 0 && !json.Valid(event.Payload) {
			// Keep the broken payload verbatim as a JSON string.
			quoted, _ := json.Marshal(string(event.Payload))
			event.Payload = quoted
		}
		raw, _ := json.Marshal(event)
		return &domain.MalformedEventError{
			SourceType: string(event.SourceType),
			Field:      field,
			Reason:     reason,
			Raw:        raw,
		}
	}

	switch {
	case !event.SourceType.Valid():
		return malformed("source_type", fmt.Sprintf("%q is not supported", event.SourceType))
	case strings.TrimSpace(event.ActivityType) == "":
		return malformed("activity_type", "is required")
	case strings.Contains(event.ActivityType, ":"):
		return malformed("activity_type", "must not contain ':'")
	case strings.TrimSpace(event.NativeID) == "":
		return malformed("native_id", "is required")
	case event.NativeID != strings.TrimSpace(event.NativeID):
		return malformed("native_id", "has surrounding whitespace")
	case event.OccurredAt.IsZero():
		return malformed("occurred_at", "is required")
	case !domain.TimeInRange(event.OccurredAt):
		return malformed("occurred_at", fmt.Sprintf("%s is outside %d-%d",
			event.OccurredAt.UTC().Format(time.RFC3339), domain.MinTime.Year(), domain.MaxTime.Year()))
	case event.Actor.IsZero():
		return malformed("actor", "is required")
	case !event.Actor.SourceType.Valid():
		return malformed("actor.source_type", fmt.Sprintf("%q is not supported", event.Actor.SourceType))
	case strings.TrimSpace(event.Actor.SourceKey) == "":
		return malformed("actor.source_key", "is required")
	case len(event.Payload) == 0:
		return malformed("payload", "is required")
	case !json.Valid(event.Payload):
		return malformed("payload", "is not valid JSON")
	}
	return nil
}

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
	"github.com/custodia-labs/pulse/internal/diff"
	"github.com/custodia-labs/pulse/internal/logger"
	"github.com/custodia-labs/pulse/internal/metrics"
)

// Ensure TrackerService implements the interface.
var _ driving.SnapshotTracker = (*TrackerService)(nil)

// Observation outcomes reported to metrics.
const (
	observeBaseline  = "baseline"
	observeUnchanged = "unchanged"
	observeDiff      = "diff"
	observeRebase    = "rebaseline"
	observeError     = "error"
)

// TrackerService turns successive observations of a document into
// ContentDiff activities. Observations of one document are processed one at
// a time; different documents proceed in parallel.
type TrackerService struct {
	snapshots driven.SnapshotStore
	registry  driving.IdentityRegistry
	locks     *keyedMutex
	now       func() time.Time
}

// NewTrackerService creates a new tracker service.
func NewTrackerService(snapshots driven.SnapshotStore, registry driving.IdentityRegistry) *TrackerService {
	return &TrackerService{
		snapshots: snapshots,
		registry:  registry,
		locks:     newKeyedMutex(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Observe records a poll result for a document.
func (s *TrackerService) Observe(ctx context.Context, obs domain.Observation) (*domain.TrackResult, error) {
	obs, err := normalizeObservation(obs)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(obs.DocumentID)
	defer unlock()

	cur, err := s.snapshots.GetSnapshot(ctx, obs.DocumentID)
	if errors.Is(err, domain.ErrNotFound) {
		return s.baseline(ctx, obs)
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", obs.DocumentID, err)
	}

	if cur.RevisionMarker == obs.RevisionMarker {
		metrics.RecordObservation(observeUnchanged)
		return &domain.TrackResult{DocumentID: obs.DocumentID, Previous: cur.State, State: cur.State}, nil
	}

	if cur.Segmentation != obs.Segmentation {
		return s.rebaseline(ctx, cur, obs)
	}

	d, err := diff.Diff(obs.DocumentID, cur.RevisionMarker, obs.RevisionMarker, obs.Segmentation, cur.Content, obs.Content)
	if err != nil {
		metrics.RecordObservation(observeError)
		logger.Ctx(ctx).Error().Err(err).
			Str("document", obs.DocumentID).
			Str("revision", obs.RevisionMarker).
			Msg("diff failed, snapshot kept")
		return nil, &domain.DiffComputationError{DocumentID: obs.DocumentID, Revision: obs.RevisionMarker, Err: err}
	}

	next := s.snapshotOf(obs, cur.State)
	result := &domain.TrackResult{DocumentID: obs.DocumentID, Previous: cur.State, State: cur.State, Changed: true}

	// A revision that changes no unit advances the snapshot without an activity.
	var activity *domain.Activity
	if !d.Empty() {
		activity, err = s.diffActivity(ctx, obs, d)
		if err != nil {
			return nil, err
		}
		next.State = domain.StateTracked
		result.State = domain.StateTracked
		result.Diff = d
		result.ActivityKey = activity.Key
	}

	inserted, err := s.snapshots.AdvanceSnapshot(ctx, next, cur.RevisionMarker, activity)
	if err != nil {
		metrics.RecordObservation(observeError)
		return nil, fmt.Errorf("advance snapshot %s: %w", obs.DocumentID, err)
	}
	if activity != nil && !inserted {
		result.Outcome = domain.AlreadyExists
	}

	metrics.RecordObservation(observeDiff)
	logger.Ctx(ctx).Debug().
		Str("document", obs.DocumentID).
		Str("from", cur.RevisionMarker).
		Str("to", obs.RevisionMarker).
		Int("added", len(d.AddedFragments)).
		Int("deleted", len(d.DeletedFragments)).
		Int("net_size_delta", d.NetSizeDelta).
		Msg("document changed")
	return result, nil
}

func (s *TrackerService) baseline(ctx context.Context, obs domain.Observation) (*domain.TrackResult, error) {
	// Content that cannot be segmented now could never be diffed later.
	if _, err := diff.Segment(obs.Content, obs.Segmentation); err != nil {
		metrics.RecordObservation(observeError)
		return nil, &domain.DiffComputationError{DocumentID: obs.DocumentID, Revision: obs.RevisionMarker, Err: err}
	}

	if err := s.snapshots.CreateSnapshot(ctx, s.snapshotOf(obs, domain.StateBaseline)); err != nil {
		metrics.RecordObservation(observeError)
		return nil, fmt.Errorf("create snapshot %s: %w", obs.DocumentID, err)
	}

	metrics.RecordObservation(observeBaseline)
	logger.Ctx(ctx).Debug().Str("document", obs.DocumentID).Str("revision", obs.RevisionMarker).Msg("baseline captured")
	return &domain.TrackResult{
		DocumentID: obs.DocumentID,
		Previous:   domain.StateUnseen,
		State:      domain.StateBaseline,
		Changed:    true,
	}, nil
}

// rebaseline replaces a snapshot whose segmentation changed. Units of
// different segmentations are not comparable, so no diff is produced.
func (s *TrackerService) rebaseline(ctx context.Context, cur *domain.DocumentSnapshot, obs domain.Observation) (*domain.TrackResult, error) {
	if _, err := diff.Segment(obs.Content, obs.Segmentation); err != nil {
		metrics.RecordObservation(observeError)
		return nil, &domain.DiffComputationError{DocumentID: obs.DocumentID, Revision: obs.RevisionMarker, Err: err}
	}
	if _, err := s.snapshots.AdvanceSnapshot(ctx, s.snapshotOf(obs, domain.StateBaseline), cur.RevisionMarker, nil); err != nil {
		metrics.RecordObservation(observeError)
		return nil, fmt.Errorf("advance snapshot %s: %w", obs.DocumentID, err)
	}

	metrics.RecordObservation(observeRebase)
	logger.Ctx(ctx).Warn().
		Str("document", obs.DocumentID).
		Str("from", string(cur.Segmentation)).
		Str("to", string(obs.Segmentation)).
		Msg("segmentation changed, snapshot rebaselined")
	return &domain.TrackResult{
		DocumentID: obs.DocumentID,
		Previous:   cur.State,
		State:      domain.StateBaseline,
		Changed:    true,
	}, nil
}

func (s *TrackerService) diffActivity(ctx context.Context, obs domain.Observation, d *domain.ContentDiff) (*domain.Activity, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode diff: %w", err)
	}

	editor := obs.Editor
	editor.SourceKey = strings.TrimSpace(editor.SourceKey)
	personID := domain.UnknownPersonID
	if !editor.IsZero() && editor.SourceType.Valid() && editor.SourceKey != "" {
		personID, err = s.registry.ResolveOrCreateProvisional(ctx, editor.SourceType, editor.SourceKey, editor.DisplayName)
		if err != nil {
			return nil, fmt.Errorf("resolve editor %s: %w", editor, err)
		}
	}

	nativeID := obs.DocumentID + ":" + obs.RevisionMarker
	occurredAt := obs.ObservedAt
	if occurredAt.IsZero() {
		occurredAt = s.now()
	}
	return &domain.Activity{
		Key:          domain.ActivityKey(obs.SourceType, obs.ActivityType, nativeID),
		PersonID:     personID,
		Actor:        editor,
		SourceType:   obs.SourceType,
		ActivityType: obs.ActivityType,
		NativeID:     nativeID,
		OccurredAt:   occurredAt.UTC(),
		IngestedAt:   s.now(),
		Payload:      domain.Payload{Kind: obs.ActivityType, Data: data},
	}, nil
}

func (s *TrackerService) snapshotOf(obs domain.Observation, state domain.TrackState) domain.DocumentSnapshot {
	return domain.DocumentSnapshot{
		DocumentID:     obs.DocumentID,
		SourceType:     obs.SourceType,
		RevisionMarker: obs.RevisionMarker,
		Content:        obs.Content,
		ContentHash:    domain.HashContent(obs.Content),
		Segmentation:   obs.Segmentation,
		State:          state,
		CapturedAt:     s.now(),
	}
}

func normalizeObservation(obs domain.Observation) (domain.Observation, error) {
	obs.DocumentID = strings.TrimSpace(obs.DocumentID)
	obs.RevisionMarker = strings.TrimSpace(obs.RevisionMarker)
	if obs.Segmentation == "" {
		obs.Segmentation = domain.SegmentLines
	}
	if obs.ActivityType == "" {
		obs.ActivityType = domain.DefaultDiffActivityType
	}

	switch {
	case obs.DocumentID == "":
		return obs, fmt.Errorf("%w: document ID is required", domain.ErrInvalidInput)
	case obs.RevisionMarker == "":
		return obs, fmt.Errorf("%w: revision marker is required", domain.ErrInvalidInput)
	case !obs.SourceType.Valid():
		return obs, fmt.Errorf("%w: source type %q", domain.ErrUnsupportedType, obs.SourceType)
	case !obs.Segmentation.Valid():
		return obs, fmt.Errorf("%w: segmentation %q", domain.ErrUnsupportedType, obs.Segmentation)
	case strings.Contains(obs.ActivityType, ":"):
		return obs, fmt.Errorf("%w: activity type must not contain ':'", domain.ErrInvalidInput)
	case !obs.ObservedAt.IsZero() && !domain.TimeInRange(obs.ObservedAt):
		return obs, fmt.Errorf("%w: observed at %s is outside %d-%d", domain.ErrInvalidInput,
			obs.ObservedAt.UTC().Format(time.RFC3339), domain.MinTime.Year(), domain.MaxTime.Year())
	}
	return obs, nil
}

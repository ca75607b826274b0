package httpapi

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/custodia-labs/pulse/internal/core/domain"
	"github.com/custodia-labs/pulse/internal/normalisers/jsonl"
)

type activityJSON struct {
	Key string `json:"key"`

	// PersonID is the effective person; IngestedPersonID is who the
	// activity was attributed to when it was stored.
	PersonID         string `json:"person_id"`
	IngestedPersonID string `json:"ingested_person_id"`

	Actor        domain.Actor    `json:"actor"`
	SourceType   string          `json:"source_type"`
	ActivityType string          `json:"activity_type"`
	NativeID     string          `json:"native_id"`
	OccurredAt   time.Time       `json:"occurred_at"`
	IngestedAt   time.Time       `json:"ingested_at"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

func toActivityJSON(a *domain.Activity) activityJSON {
	return activityJSON{
		Key:              a.Key,
		PersonID:         a.AttributedTo(),
		IngestedPersonID: a.PersonID,
		Actor:            a.Actor,
		SourceType:       string(a.SourceType),
		ActivityType:     a.ActivityType,
		NativeID:         a.NativeID,
		OccurredAt:       a.OccurredAt,
		IngestedAt:       a.IngestedAt,
		Payload:          a.Payload.Data,
	}
}

type activitiesResponse struct {
	Activities   []activityJSON `json:"activities"`
	NextCursor   string         `json:"next_cursor,omitempty"`
	PersonCounts map[string]int `json:"person_counts,omitempty"`
}

type summaryJSON struct {
	PersonID      string         `json:"person_id"`
	DisplayName   string         `json:"display_name,omitempty"`
	ActivityCount int            `json:"activity_count"`
	Recent        []activityJSON `json:"recent"`
}

type bindRequest struct {
	PersonID   string `json:"person_id"`
	SourceType string `json:"source_type"`
	SourceKey  string `json:"source_key"`
}

type resolveResponse struct {
	Resolved bool   `json:"resolved"`
	PersonID string `json:"person_id,omitempty"`
}

type unresolvedJSON struct {
	SourceType          string    `json:"source_type"`
	SourceKey           string    `json:"source_key"`
	ObservedDisplayName string    `json:"observed_display_name,omitempty"`
	Occurrences         int       `json:"occurrences"`
	FirstSeen           time.Time `json:"first_seen"`
	LastSeen            time.Time `json:"last_seen"`
}

type observationRequest struct {
	SourceType   string           `json:"source_type"`
	ActivityType string           `json:"activity_type,omitempty"`
	Revision     string           `json:"revision"`
	Content      string           `json:"content"`
	Segmentation string           `json:"segmentation,omitempty"`
	Editor       *jsonl.WireActor `json:"editor,omitempty"`
	ObservedAt   *time.Time       `json:"observed_at,omitempty"`
}

type trackJSON struct {
	DocumentID  string              `json:"document_id"`
	Previous    string              `json:"previous_state"`
	State       string              `json:"state"`
	Changed     bool                `json:"changed"`
	ActivityKey string              `json:"activity_key,omitempty"`
	Outcome     string              `json:"outcome,omitempty"`
	Diff        *domain.ContentDiff `json:"diff,omitempty"`
}

func toTrackJSON(r *domain.TrackResult) trackJSON {
	out := trackJSON{
		DocumentID:  r.DocumentID,
		Previous:    string(r.Previous),
		State:       string(r.State),
		Changed:     r.Changed,
		ActivityKey: r.ActivityKey,
		Diff:        r.Diff,
	}
	if r.ActivityKey != "" {
		out.Outcome = r.Outcome.String()
	}
	return out
}

type warningJSON struct {
	Actor       domain.Actor `json:"actor"`
	Occurrences int          `json:"occurrences"`
}

type rejectedJSON struct {
	Line   int    `json:"line"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type runResponse struct {
	Inserted         int            `json:"inserted"`
	AlreadyExisting  int            `json:"already_existing"`
	Malformed        int            `json:"malformed"`
	UnresolvedEvents int            `json:"unresolved_events"`
	Unresolved       []warningJSON  `json:"unresolved_actors"`
	Rejected         []rejectedJSON `json:"rejected,omitempty"`
}

func newRunResponse(s *domain.RunSummary, rejected []error) runResponse {
	resp := runResponse{
		Inserted:         s.Inserted(),
		AlreadyExisting:  s.AlreadyExisting(),
		Malformed:        s.Malformed(),
		UnresolvedEvents: s.UnresolvedEvents(),
		Unresolved:       []warningJSON{},
	}
	for _, w := range s.Warnings() {
		resp.Unresolved = append(resp.Unresolved, warningJSON{Actor: w.Actor, Occurrences: w.Occurrences})
	}
	for _, err := range rejected {
		rj := rejectedJSON{Reason: err.Error()}
		var le *jsonl.LineError
		if errors.As(err, &le) {
			rj.Line = le.Line
		}
		var me *domain.MalformedEventError
		if errors.As(err, &me) {
			rj.Field, rj.Reason = me.Field, me.Reason
		}
		resp.Rejected = append(resp.Rejected, rj)
	}
	return resp
}

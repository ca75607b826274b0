package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Actor is the raw source identity that performed an event.
type Actor struct {
	// SourceType is the identifier kind; SourceEmail for raw email actors.
	SourceType SourceType `json:"source_type"`

	// SourceKey is the native key with its original casing.
	SourceKey string `json:"source_key"`

	// DisplayName is what the source reported, if anything.
	DisplayName string `json:"display_name,omitempty"`
}

// EmailActor returns an actor identified only by an email address.
func EmailActor(address, displayName string) Actor {
	return Actor{SourceType: SourceEmail, SourceKey: strings.TrimSpace(address), DisplayName: displayName}
}

// IsZero reports whether the actor carries no identity.
func (a Actor) IsZero() bool {
	return a.SourceType == "" && strings.TrimSpace(a.SourceKey) == ""
}

func (a Actor) String() string {
	return string(a.SourceType) + ":" + a.SourceKey
}

// Event is the normalised record a collector hands to the core.
type Event struct {
	// SourceType is the platform that emitted the event.
	SourceType SourceType

	// ActivityType is e.g. "commit", "message", "page_edit".
	ActivityType string

	// NativeID is the source's own immutable identifier for the event
	// (commit SHA, channel+timestamp, page+revision).
	NativeID string

	// OccurredAt is the source's event time, not ingestion time.
	OccurredAt time.Time

	// Actor is who performed the event.
	Actor Actor

	// Payload is opaque structured data shaped by ActivityType.
	Payload json.RawMessage
}

// Event and snapshot times must fall in [MinTime, MaxTime). Stores keep
// timestamps as Unix nanoseconds, which cannot represent anything outside.
var (
	MinTime = time.Date(1678, time.January, 1, 0, 0, 0, 0, time.UTC)
	MaxTime = time.Date(2262, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// TimeInRange reports whether t can be stored without loss.
func TimeInRange(t time.Time) bool {
	return !t.Before(MinTime) && t.Before(MaxTime)
}

// ActivityKey derives the deterministic, content-derived key of an event.
// It depends only on source-native fields, never on the resolved person or
// on ingestion time.
func ActivityKey(sourceType SourceType, activityType, nativeID string) string {
	return string(sourceType) + ":" + activityType + ":" + nativeID
}

// Key returns the activity key of the event.
func (e *Event) Key() string {
	return ActivityKey(e.SourceType, e.ActivityType, e.NativeID)
}

// Payload is a tagged union keyed by activity type. The core never looks
// inside Data; edges decode it into a concrete type.
type Payload struct {
	Kind string
	Data json.RawMessage
}

// Decode unmarshals the payload data into v.
func (p Payload) Decode(v any) error {
	if len(p.Data) == 0 {
		return fmt.Errorf("%w: empty %s payload", ErrInvalidInput, p.Kind)
	}
	return json.Unmarshal(p.Data, v)
}

// Equal reports whether both payloads carry the same kind and bytes.
func (p Payload) Equal(o Payload) bool {
	return p.Kind == o.Kind && bytes.Equal(p.Data, o.Data)
}

// Activity is one immutable, deduplicated record of a source-native event.
type Activity struct {
	// Key is unique across the whole store.
	Key string

	// PersonID is the person resolved at ingestion time; it may be UnknownPersonID.
	PersonID string

	// EffectivePersonID is the person the activity is attributed to when read:
	// the current binding of Actor if one exists, PersonID otherwise.
	// Stores fill it on every read; it is never written.
	EffectivePersonID string

	// Actor is the raw actor as reported by the source.
	Actor Actor

	SourceType   SourceType
	ActivityType string
	NativeID     string

	// OccurredAt is the source's event time in UTC.
	OccurredAt time.Time

	// IngestedAt is when the activity was first stored.
	IngestedAt time.Time

	Payload Payload
}

// AttributedTo returns the effective person, falling back to the
// ingestion-time person for activities that were never read from a store.
func (a *Activity) AttributedTo() string {
	if a.EffectivePersonID != "" {
		return a.EffectivePersonID
	}
	return a.PersonID
}

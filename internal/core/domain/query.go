package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// Aggregate loader kinds served by the batched query resolver.
const (
	LoaderActivityCount    = "activity_count"
	LoaderRecentActivities = "recent_activities"
)

// IdentifierRef names a person through any of their source identities.
type IdentifierRef struct {
	SourceType SourceType
	SourceKey  string
}

// ParseIdentifierRef parses the "source_type:source_key" form.
func ParseIdentifierRef(s string) (*IdentifierRef, error) {
	src, key, ok := strings.Cut(s, ":")
	if !ok || strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("%w: identifier %q, want source_type:source_key", ErrInvalidInput, s)
	}
	st, err := ParseSourceType(src)
	if err != nil {
		return nil, err
	}
	return &IdentifierRef{SourceType: st, SourceKey: key}, nil
}

// String returns the "source_type:source_key" form.
func (r IdentifierRef) String() string {
	return string(r.SourceType) + ":" + r.SourceKey
}

// ActivityFilter narrows an activity query. Zero fields do not filter.
type ActivityFilter struct {
	// PersonID matches the effective person of an activity.
	PersonID string

	// Identifier is resolved to a person before querying when PersonID is empty.
	Identifier *IdentifierRef

	SourceType   SourceType
	ActivityType string

	// Since is inclusive.
	Since time.Time

	// Until is exclusive.
	Until time.Time
}

// Cursor marks a position in the (occurred_at desc, key desc) ordering.
// It holds no server-side state; re-issuing a filter with a cursor resumes
// after the activity it names.
type Cursor struct {
	OccurredAt time.Time
	Key        string
}

// IsZero reports whether the cursor points at the start of the sequence.
func (c Cursor) IsZero() bool {
	return c.Key == "" && c.OccurredAt.IsZero()
}

// CursorAfter returns the cursor that resumes after a.
func CursorAfter(a *Activity) Cursor {
	return Cursor{OccurredAt: a.OccurredAt, Key: a.Key}
}

// Encode returns the opaque token form of the cursor.
func (c Cursor) Encode() string {
	if c.IsZero() {
		return ""
	}
	raw := c.OccurredAt.UTC().Format(time.RFC3339Nano) + "|" + c.Key
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by Cursor.Encode.
// An empty token is the zero cursor.
func DecodeCursor(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: cursor encoding", ErrInvalidInput)
	}
	ts, key, ok := strings.Cut(string(raw), "|")
	if !ok || key == "" {
		return Cursor{}, fmt.Errorf("%w: cursor shape", ErrInvalidInput)
	}
	at, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: cursor time", ErrInvalidInput)
	}
	return Cursor{OccurredAt: at.UTC(), Key: key}, nil
}

// ActivityPage is one page of an activity query.
type ActivityPage struct {
	Activities []Activity

	// NextCursor is empty when there are no more results.
	NextCursor string
}

// PersonSummary is the per-person aggregate served in bulk.
type PersonSummary struct {
	PersonID      string
	ActivityCount int
	Recent        []Activity
}

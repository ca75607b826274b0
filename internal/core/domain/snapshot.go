package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// DefaultDiffActivityType is used when an observation names no activity type.
const DefaultDiffActivityType = "content_diff"

// Segmentation selects the comparison unit of a document.
type Segmentation string

const (
	// SegmentLines compares plain text line by line.
	SegmentLines Segmentation = "lines"
	// SegmentBlocks compares a JSON array of structured blocks element by element.
	SegmentBlocks Segmentation = "blocks"
)

// Valid reports whether s is a known segmentation.
func (s Segmentation) Valid() bool {
	return s == SegmentLines || s == SegmentBlocks
}

// TrackState is the lifecycle state of a tracked document.
type TrackState string

const (
	// StateUnseen means no snapshot exists yet. It is never stored.
	StateUnseen TrackState = "unseen"
	// StateBaseline means one snapshot exists and no diff was produced yet.
	StateBaseline TrackState = "baseline"
	// StateTracked means at least one diff was produced.
	StateTracked TrackState = "tracked"
)

// DocumentSnapshot is the last captured state of one mutable document.
type DocumentSnapshot struct {
	DocumentID     string
	SourceType     SourceType
	RevisionMarker string

	// Content is kept in full so the next revision can be diffed against it.
	Content      string
	ContentHash  string
	Segmentation Segmentation
	State        TrackState
	CapturedAt   time.Time
}

// HashContent returns the hex sha256 of content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Observation is one poll result for a tracked document.
type Observation struct {
	DocumentID string
	SourceType SourceType

	// ActivityType of the diff activity; DefaultDiffActivityType when empty.
	ActivityType string

	RevisionMarker string
	Content        string
	Segmentation   Segmentation

	// Editor is the source's "last editor" identity for this revision.
	Editor Actor

	// ObservedAt is the source's modification time of the revision.
	ObservedAt time.Time
}

// Fragment is one changed unit. Index is its position in the new sequence
// for additions and in the old sequence for deletions.
type Fragment struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// ContentDiff is the delta between two consecutive snapshots.
// A modified unit appears as one deletion plus one addition.
type ContentDiff struct {
	DocumentID       string       `json:"document_id"`
	FromRevision     string       `json:"from_revision"`
	ToRevision       string       `json:"to_revision"`
	Segmentation     Segmentation `json:"segmentation"`
	AddedFragments   []Fragment   `json:"added_fragments"`
	DeletedFragments []Fragment   `json:"deleted_fragments"`
	NetSizeDelta     int          `json:"net_size_delta"`
}

// Empty reports whether the diff changes nothing.
func (d *ContentDiff) Empty() bool {
	return len(d.AddedFragments) == 0 && len(d.DeletedFragments) == 0
}

// TrackResult describes what one observation did.
type TrackResult struct {
	DocumentID string

	// Previous is the state before the observation.
	Previous TrackState

	// State is the state after the observation.
	State TrackState

	// Changed is true when a new revision replaced the stored snapshot.
	Changed bool

	// Diff is set when a ContentDiff activity was produced.
	Diff *ContentDiff

	// ActivityKey is the key of the diff activity, if any.
	ActivityKey string

	// Outcome of the diff activity write.
	Outcome IngestOutcome
}

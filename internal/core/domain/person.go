package domain

import (
	"strings"
	"time"
)

// UnknownPersonID is the sentinel person for activities whose actor had no
// binding at ingestion time. It is never stored as a Person row.
const UnknownPersonID = "unknown"

// Person is the canonical record for one human team member.
// Persons are deactivated, never deleted, so historical activity keeps resolving.
type Person struct {
	// ID is the stable internal key.
	ID string

	// DisplayName is unique among active persons.
	DisplayName string

	// PrimaryEmail is optional.
	PrimaryEmail string

	// Active is false once the person has left the roster.
	Active bool

	// CreatedAt is when the person was first created.
	CreatedAt time.Time

	// UpdatedAt is when the person was last changed by a roster update.
	UpdatedAt time.Time
}

// NormalizedName returns the comparison form of the display name.
func (p *Person) NormalizedName() string {
	return NormalizeName(p.DisplayName)
}

// NormalizeName returns the comparison form of a display name.
func NormalizeName(name string) string {
	return FoldCase(strings.TrimSpace(name))
}

// Identifier binds one source-native identity to exactly one Person.
type Identifier struct {
	// SourceType is the platform the key belongs to.
	SourceType SourceType

	// SourceKey is the native key with its original casing.
	SourceKey string

	// PersonID is the owning person.
	PersonID string

	// CreatedAt is when the binding was made.
	CreatedAt time.Time
}

// NormalizedKey returns the lookup form of the identifier key.
func (i *Identifier) NormalizedKey() string {
	return NormalizeKey(i.SourceType, i.SourceKey)
}

// UnresolvedActor is the marker left behind when an event names an actor
// with no binding. A roster update promotes it into an Identifier.
type UnresolvedActor struct {
	SourceType          SourceType
	SourceKey           string
	ObservedDisplayName string
	Occurrences         int
	FirstSeen           time.Time
	LastSeen            time.Time
}

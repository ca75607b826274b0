package domain

import (
	"fmt"
	"strings"
)

// SourceType identifies the platform an identifier or event comes from.
// The set is closed: adding a platform means adding a constant here.
type SourceType string

const (
	// SourceGitHub covers commits, pull requests and reviews.
	SourceGitHub SourceType = "github"
	// SourceSlack covers channel messages.
	SourceSlack SourceType = "slack"
	// SourceNotion covers page edits.
	SourceNotion SourceType = "notion"
	// SourceDrive covers file changes.
	SourceDrive SourceType = "drive"
	// SourceEmail is both a platform and the cross-platform identifier kind.
	SourceEmail SourceType = "email"
)

// AllSourceTypes returns every supported source type in a stable order.
func AllSourceTypes() []SourceType {
	return []SourceType{SourceGitHub, SourceSlack, SourceNotion, SourceDrive, SourceEmail}
}

// ParseSourceType converts s into a SourceType.
// Matching ignores case and surrounding whitespace.
func ParseSourceType(s string) (SourceType, error) {
	st := SourceType(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: source type %q", ErrUnsupportedType, s)
	}
	return st, nil
}

// Valid reports whether t is one of the supported source types.
func (t SourceType) Valid() bool {
	switch t {
	case SourceGitHub, SourceSlack, SourceNotion, SourceDrive, SourceEmail:
		return true
	default:
		return false
	}
}

func (t SourceType) String() string {
	return string(t)
}

// FoldCase maps every case variant of s to one form. Lower-casing the
// upper-cased string also merges letters such as 'ı' and 'ſ' whose upper
// case ('I', 'S') lowers to a different letter.
func FoldCase(s string) string {
	return strings.ToLower(strings.ToUpper(s))
}

// NormalizeKey returns the comparison form of a source-native key.
// The stored key keeps its native casing; only lookups use this form.
func NormalizeKey(t SourceType, key string) string {
	k := FoldCase(strings.TrimSpace(key))
	if t == SourceEmail {
		k = strings.TrimSuffix(strings.TrimPrefix(k, "<"), ">")
	}
	return k
}

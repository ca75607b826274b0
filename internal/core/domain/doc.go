// Package domain defines the core business entities for pulse.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Person: A canonical team member
//   - Identifier: One source identity bound to a Person
//   - Event: A normalised record handed over by a collector
//   - Activity: An immutable, deduplicated event keyed by its activity key
//   - DocumentSnapshot: The last captured state of a mutable document
//   - ContentDiff: The delta between two consecutive snapshots
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain

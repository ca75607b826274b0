// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// (sqlite, postgres, memory) implement them.
//
// # Required Interfaces
//
//   - PersonStore: Canonical person persistence
//   - IdentifierStore: Identifier binding persistence
//   - UnresolvedStore: Unresolved actor markers
//   - ActivityStore: The unified, deduplicated activity log
//   - SnapshotStore: Current snapshot per tracked document
//   - ConfigStore: Key/value application configuration
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven

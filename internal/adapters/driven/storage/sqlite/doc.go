// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements every store interface
// through a single database connection:
//
//   - PersonStore: Canonical persons
//   - IdentifierStore: Source identity bindings
//   - UnresolvedStore: Markers for actors without a binding
//   - ActivityStore: The deduplicated activity log
//   - SnapshotStore: Current snapshot of each tracked document
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Timestamps are stored as UTC Unix nanoseconds so that ordering and range
// filters compare integers.
//
// # Attribution
//
// Activities keep the person resolved at ingestion time. Reads join the
// identifiers table on the stored raw actor, so a binding made later
// re-attributes history without rewriting rows.
//
// # Data Location
//
// By default, the database is stored at ~/.pulse/data/pulse.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite

package driven

// Store groups every driven store so adapters can be swapped as one unit.
type Store interface {
	PersonStore() PersonStore
	IdentifierStore() IdentifierStore
	UnresolvedStore() UnresolvedStore
	ActivityStore() ActivityStore
	SnapshotStore() SnapshotStore
	Close() error
}

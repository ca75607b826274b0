package domain

// Roster is an externally supplied snapshot of the team.
// It is an input to reconciliation, never a live dependency of ingestion.
type Roster struct {
	Members []RosterMember `yaml:"members"`
}

// RosterMember is one person and their known identities.
type RosterMember struct {
	// ID is optional; members are matched by display name when empty.
	ID           string              `yaml:"id,omitempty"`
	DisplayName  string              `yaml:"name"`
	PrimaryEmail string              `yaml:"email,omitempty"`
	Identifiers  map[string][]string `yaml:"identifiers,omitempty"`
}

// ReconcileReport summarises one roster sync.
type ReconcileReport struct {
	Created      []string
	Reactivated  []string
	Deactivated  []string
	Bound        []Identifier
	AlreadyBound int
	Conflicts    []ConflictError
	Invalid      []string
}

package mcp

import (
	"github.com/custodia-labs/pulse/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Activities serves filtered reads over the activity log.
	Activities driving.ActivityService

	// Summaries serves per-person aggregates.
	Summaries driving.SummaryService

	// Registry resolves source identities to persons.
	Registry driving.IdentityRegistry
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Activities == nil {
		return ErrMissingActivityService
	}
	// Summaries and Registry are optional; their tools are not registered.
	return nil
}

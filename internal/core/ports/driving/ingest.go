package driving

import (
	"context"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

// Ingester is the single write path of the activity log.
type Ingester interface {
	// Ingest stores the event idempotently.
	// A duplicate is reported as domain.AlreadyExists, never as an error.
	Ingest(ctx context.Context, event domain.Event) (domain.IngestOutcome, error)
}

// IngestRunner ingests a collection run, one worker per source type.
type IngestRunner interface {
	// Run ingests all events and reports per-outcome counts.
	// Malformed events are counted and skipped; datastore failures stop the
	// affected source and are returned joined.
	Run(ctx context.Context, events []domain.Event) (*domain.RunSummary, error)
}

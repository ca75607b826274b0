// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The identity service owns bindings, the ingest and runner services own
// the write path of the activity log, the query service serves reads and
// batched aggregates, and the tracker turns document revisions into diff
// activities.
package services

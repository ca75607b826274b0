package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	// Stores return it when a unique key is already taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown source type or segmentation.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrConflict indicates an identifier is already bound to another person.
	ErrConflict = errors.New("identifier conflict")

	// ErrMalformedEvent indicates an event cannot be turned into an activity.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrDiffComputation indicates two snapshots could not be compared.
	ErrDiffComputation = errors.New("diff computation failed")

	// ErrBatchQuery indicates a batched aggregate query failed for every caller.
	ErrBatchQuery = errors.New("batch query failed")

	// ErrRevisionConflict indicates a snapshot was advanced by someone else
	// between read and replace.
	ErrRevisionConflict = errors.New("revision conflict")

	// ErrDuplicateDisplayName indicates an active person already uses the name.
	ErrDuplicateDisplayName = errors.New("display name already in use")
)

// ConflictError is returned by Bind when the identifier belongs to a
// different person. It is never resolved automatically.
type ConflictError struct {
	SourceType      SourceType
	SourceKey       string
	CurrentPersonID string
	RequestPersonID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("identifier %s:%s is bound to person %s, refusing to bind to %s",
		e.SourceType, e.SourceKey, e.CurrentPersonID, e.RequestPersonID)
}

// Is reports whether target is ErrConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// MalformedEventError carries enough context to replay the event by hand
// once the producing collector is fixed.
type MalformedEventError struct {
	SourceType string
	Field      string
	Reason     string
	Raw        []byte
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed %s event: %s %s", e.SourceType, e.Field, e.Reason)
}

// Is reports whether target is ErrMalformedEvent.
func (e *MalformedEventError) Is(target error) bool {
	return target == ErrMalformedEvent
}

// DiffComputationError reports a failed comparison of two document snapshots.
// The tracker does not advance state when it sees one.
type DiffComputationError struct {
	DocumentID string
	Revision   string
	Err        error
}

func (e *DiffComputationError) Error() string {
	return fmt.Sprintf("diff %s@%s: %v", e.DocumentID, e.Revision, e.Err)
}

// Is reports whether target is ErrDiffComputation.
func (e *DiffComputationError) Is(target error) bool {
	return target == ErrDiffComputation
}

func (e *DiffComputationError) Unwrap() error {
	return e.Err
}

// BatchQueryError is delivered, unchanged, to every caller waiting on a batch.
type BatchQueryError struct {
	Kind string
	Keys int
	Err  error
}

func (e *BatchQueryError) Error() string {
	return fmt.Sprintf("batch %s (%d keys): %v", e.Kind, e.Keys, e.Err)
}

// Is reports whether target is ErrBatchQuery.
func (e *BatchQueryError) Is(target error) bool {
	return target == ErrBatchQuery
}

func (e *BatchQueryError) Unwrap() error {
	return e.Err
}

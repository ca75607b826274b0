package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrAlreadyExists", ErrAlreadyExists},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrUnsupportedType", ErrUnsupportedType},
		{"ErrConflict", ErrConflict},
		{"ErrMalformedEvent", ErrMalformedEvent},
		{"ErrDiffComputation", ErrDiffComputation},
		{"ErrBatchQuery", ErrBatchQuery},
		{"ErrRevisionConflict", ErrRevisionConflict},
		{"ErrDuplicateDisplayName", ErrDuplicateDisplayName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

// TestErrors_Uniqueness tests that all errors are distinct
func TestErrors_Uniqueness(t *testing.T) {
	allErrors := []error{
		ErrNotFound,
		ErrAlreadyExists,
		ErrInvalidInput,
		ErrUnsupportedType,
		ErrConflict,
		ErrMalformedEvent,
		ErrDiffComputation,
		ErrBatchQuery,
		ErrRevisionConflict,
		ErrDuplicateDisplayName,
	}

	for i, err1 := range allErrors {
		for j, err2 := range allErrors {
			if i != j {
				assert.False(t, errors.Is(err1, err2),
					"Error %v should not match error %v", err1, err2)
			}
		}
	}
}

// TestErrors_WithWrapping tests error wrapping behavior
func TestErrors_WithWrapping(t *testing.T) {
	wrapped := fmt.Errorf("get person p-1: %w", ErrNotFound)

	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Contains(t, wrapped.Error(), "not found")
}

func TestConflictError(t *testing.T) {
	err := &ConflictError{
		SourceType:      SourceGitHub,
		SourceKey:       "janedoe",
		CurrentPersonID: "p-1",
		RequestPersonID: "p-2",
	}

	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrAlreadyExists))
	assert.Contains(t, err.Error(), "github:janedoe")
	assert.Contains(t, err.Error(), "p-1")

	var target *ConflictError
	wrapped := fmt.Errorf("bind: %w", err)
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, "p-2", target.RequestPersonID)
}

func TestMalformedEventError(t *testing.T) {
	err := &MalformedEventError{SourceType: "slack", Field: "native_id", Reason: "is empty", Raw: []byte(`{}`)}

	assert.True(t, errors.Is(err, ErrMalformedEvent))
	assert.Equal(t, "malformed slack event: native_id is empty", err.Error())
}

func TestDiffComputationError(t *testing.T) {
	cause := errors.New("blocks: not a JSON array")
	err := &DiffComputationError{DocumentID: "doc-1", Revision: "r2", Err: cause}

	assert.True(t, errors.Is(err, ErrDiffComputation))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "diff doc-1@r2: blocks: not a JSON array", err.Error())
}

func TestBatchQueryError(t *testing.T) {
	cause := errors.New("connection reset")
	err := &BatchQueryError{Kind: LoaderActivityCount, Keys: 3, Err: cause}

	assert.True(t, errors.Is(err, ErrBatchQuery))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "activity_count (3 keys)")
}

// TestErrors_InSwitchStatement tests using errors in switch statements
func TestErrors_InSwitchStatement(t *testing.T) {
	var testErr error = &ConflictError{SourceType: SourceSlack, SourceKey: "U1"}

	var result string
	switch {
	case errors.Is(testErr, ErrNotFound):
		result = "not found"
	case errors.Is(testErr, ErrConflict):
		result = "conflict"
	default:
		result = "unknown"
	}

	assert.Equal(t, "conflict", result)
}

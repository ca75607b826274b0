package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/custodia-labs/pulse/internal/core/domain"
	"github.com/custodia-labs/pulse/internal/logger"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`

	// Field is set for malformed events.
	Field string `json:"field,omitempty"`

	// CurrentPersonID is set for identifier conflicts.
	CurrentPersonID string `json:"current_person_id,omitempty"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrRevisionConflict):
		return http.StatusConflict, "revision_conflict"
	case errors.Is(err, domain.ErrMalformedEvent):
		return http.StatusBadRequest, "malformed_event"
	case errors.Is(err, domain.ErrUnsupportedType):
		return http.StatusBadRequest, "unsupported_type"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrDiffComputation):
		return http.StatusUnprocessableEntity, "diff_computation"
	case errors.Is(err, domain.ErrBatchQuery):
		return http.StatusServiceUnavailable, "batch_query"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	body := errorBody{Error: err.Error(), Kind: kind}

	var me *domain.MalformedEventError
	if errors.As(err, &me) {
		body.Field = me.Field
	}
	var ce *domain.ConflictError
	if errors.As(err, &ce) {
		body.CurrentPersonID = ce.CurrentPersonID
	}

	if status >= http.StatusInternalServerError {
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		if status == http.StatusInternalServerError {
			body.Error = "internal error"
		}
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

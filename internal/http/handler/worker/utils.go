package worker

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"github.com/bornholm/trainyard/internal/failure"
	"github.com/bornholm/trainyard/internal/slogx"
)

func errInvalidRequest(format string, args ...any) error {
	return failure.InvalidInput(format, args...)
}

// HTTP response utilities
func writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, failure.ErrInvalidInput):
		return "validation_error"
	case errors.Is(err, failure.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, failure.ErrConflict):
		return "conflict"
	case errors.Is(err, failure.ErrNotFound):
		return "not_found"
	default:
		return ""
	}
}

// Error handling utilities
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	if !failure.IsExpected(err) {
		h.logger.ErrorContext(ctx, "could not handle worker request", slogx.Error(errors.WithStack(err)))
		writeJSONResponse(w, failure.StatusCode(err), ErrorResponse{Error: "Internal server error"})
		return
	}

	h.logger.WarnContext(ctx, "worker request rejected", slogx.Error(err))

	writeJSONResponse(w, failure.StatusCode(err), ErrorResponse{
		Error: err.Error(),
		Code:  errorCode(err),
	})
}

// Request parsing utilities
func parseJSONRequest(r *http.Request, dest any) error {
	if r.Header.Get("Content-Type") != "application/json" {
		return errInvalidRequest("Content-Type must be application/json")
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dest); err != nil {
		return errInvalidRequest("invalid JSON: %v", err)
	}

	return nil
}

// Path parameter utilities
func getJobIDFromPath(r *http.Request) (uint, error) {
	raw := r.PathValue("jobID")
	if raw == "" {
		return 0, errInvalidRequest("jobID is required")
	}

	jobID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || jobID == 0 {
		return 0, errInvalidRequest("invalid jobID '%s'", raw)
	}

	return uint(jobID), nil
}

package api

import (
	"encoding/json"
	"mime"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"github.com/bornholm/trainyard/internal/failure"
	"github.com/bornholm/trainyard/internal/slogx"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// HTTP response utilities
func writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// writeError maps the error kind to its status code. Unexpected errors are
// logged and their message is not exposed.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	status := failure.StatusCode(err)

	switch {
	case failure.IsExpected(err):
		h.logger.DebugContext(ctx, "request rejected", slogx.Error(err))
		writeJSONResponse(w, status, ErrorResponse{Error: err.Error()})

	case errors.Is(err, failure.ErrIntegrity), errors.Is(err, failure.ErrUpstreamUnavailable):
		h.logger.ErrorContext(ctx, "request failed", slogx.Error(err))
		writeJSONResponse(w, status, ErrorResponse{Error: err.Error()})

	default:
		h.logger.ErrorContext(ctx, "unexpected error", slogx.Error(errors.WithStack(err)))
		writeJSONResponse(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
	}
}

// Request parsing utilities
func parseJSONRequest(r *http.Request, dest any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return failure.InvalidInput("Content-Type must be application/json")
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dest); err != nil {
		return failure.InvalidInput("invalid JSON: %v", err)
	}

	return nil
}

func parseID(raw string, name string) (uint, error) {
	if raw == "" {
		return 0, failure.InvalidInput("%s is required", name)
	}

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, failure.InvalidInput("invalid %s '%s'", name, raw)
	}

	return uint(id), nil
}

// Path parameter utilities
func pathID(r *http.Request, name string) (uint, error) {
	return parseID(r.PathValue(name), name)
}

func queryID(r *http.Request, name string) (uint, error) {
	return parseID(r.URL.Query().Get(name), name)
}

func optionalFormID(r *http.Request, name string) (uint, error) {
	raw := r.FormValue(name)
	if raw == "" {
		return 0, nil
	}

	return parseID(raw, name)
}

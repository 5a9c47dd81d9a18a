package api

import (
	"net/http"
)

func (h *Handler) handleModelList(w http.ResponseWriter, r *http.Request) {
	models, err := h.models.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, models)
}

func (h *Handler) handleModelGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	model, err := h.models.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, model)
}

// handleModelArtifacts handles GET /api/models/versions/{versionID}/artifacts
func (h *Handler) handleModelArtifacts(w http.ResponseWriter, r *http.Request) {
	versionID, err := pathID(r, "versionID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	artifacts, err := h.models.Artifacts(r.Context(), versionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, artifacts)
}

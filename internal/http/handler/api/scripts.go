package api

import (
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bornholm/trainyard/internal/failure"
	"github.com/bornholm/trainyard/internal/vault"
)

type ScriptContentResponse struct {
	Content string `json:"content"`
}

// handleScriptUpload handles POST /api/scripts
func (h *Handler) handleScriptUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Leave room for the other form fields
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxScriptSize+(1<<20))

	if err := r.ParseMultipartForm(h.opts.MaxFormMemory); err != nil {
		h.writeError(w, r, failure.InvalidInput("could not parse multipart form: %v", err))
		return
	}

	defer r.MultipartForm.RemoveAll()

	upload, header, err := r.FormFile("script")
	if err != nil {
		h.writeError(w, r, failure.InvalidInput("no script file provided"))
		return
	}

	defer upload.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !slices.Contains(h.opts.ScriptExtensions, ext) {
		h.writeError(w, r, failure.InvalidInput("unsupported script extension '%s', expected one of %v", ext, h.opts.ScriptExtensions))
		return
	}

	if header.Size > h.opts.MaxScriptSize {
		h.writeError(w, r, failure.InvalidInput("script is %d bytes, the limit is %d", header.Size, h.opts.MaxScriptSize))
		return
	}

	previousScriptID, err := optionalFormID(r, "previousScriptId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	script, err := h.scripts.Save(ctx, upload, vault.SaveRequest{
		Filename:         header.Filename,
		Name:             r.FormValue("name"),
		Category:         r.FormValue("category"),
		Action:           vault.VersionAction(r.FormValue("versionAction")),
		PreviousScriptID: previousScriptID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, script)
}

func (h *Handler) handleScriptList(w http.ResponseWriter, r *http.Request) {
	groups, err := h.scripts.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, groups)
}

// handleScriptVersions handles GET /api/scripts/{id}/versions
func (h *Handler) handleScriptVersions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	versions, err := h.scripts.Versions(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, versions)
}

func (h *Handler) handleScriptContent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	content, err := h.scripts.Content(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, ScriptContentResponse{Content: string(content)})
}

func (h *Handler) handleScriptDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.scripts.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

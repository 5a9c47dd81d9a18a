package api

import (
	"net/http"
	"net/url"
	"os"

	"github.com/bornholm/trainyard/internal/dataset"
	"github.com/bornholm/trainyard/internal/failure"
)

// handleDatasetUpload handles POST /api/datasets/upload
func (h *Handler) handleDatasetUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(h.opts.MaxFormMemory); err != nil {
		h.writeError(w, r, failure.InvalidInput("could not parse multipart form: %v", err))
		return
	}

	defer r.MultipartForm.RemoveAll()

	upload, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, failure.InvalidInput("no dataset file provided"))
		return
	}

	defer upload.Close()

	ds, err := h.datasets.Ingest(ctx, upload, header.Filename, r.FormValue("name"), dataset.VersionAction(r.FormValue("versionAction")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, ds)
}

// handleDatasetDiff handles GET /api/datasets/diff?idA=&idB=
func (h *Handler) handleDatasetDiff(w http.ResponseWriter, r *http.Request) {
	idA, err := queryID(r, "idA")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	idB, err := queryID(r, "idB")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	report, err := h.datasets.Diff(r.Context(), idA, idB)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, report)
}

func (h *Handler) handleDatasetList(w http.ResponseWriter, r *http.Request) {
	datasets, err := h.datasets.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, datasets)
}

func (h *Handler) handleDatasetGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ds, err := h.datasets.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, ds)
}

func (h *Handler) handleDatasetDownload(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ds, content, err := h.datasets.Open(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	defer content.Close()

	modTime := ds.UploadedAt
	if f, ok := content.(*os.File); ok {
		if info, err := f.Stat(); err == nil {
			modTime = info.ModTime()
		}
	}

	w.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(ds.Filename))
	if ds.MimeType != "" {
		w.Header().Set("Content-Type", ds.MimeType)
	}

	http.ServeContent(w, r, ds.Filename, modTime, content)
}

func (h *Handler) handleDatasetDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.datasets.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/bornholm/trainyard/internal/failure"
	"github.com/bornholm/trainyard/internal/runtime"
	"github.com/bornholm/trainyard/internal/store"
)

type RegisterRuntimesRequest struct {
	Images []*runtime.Candidate `json:"images"`
}

type RegisterRuntimesResponse struct {
	Registered []*store.RuntimeImage `json:"registered"`
	Errors     []string              `json:"errors,omitempty"`
}

type UploadRuntimeResponse struct {
	RepoTags []string `json:"repoTags"`
}

func (h *Handler) handleRuntimeList(w http.ResponseWriter, r *http.Request) {
	runtimes, err := h.runtimes.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, runtimes)
}

// handleRuntimeScan handles GET /api/runtimes/scan
func (h *Handler) handleRuntimeScan(w http.ResponseWriter, r *http.Request) {
	candidates, err := h.runtimes.Scan(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, candidates)
}

// handleRuntimeRegister handles POST /api/runtimes/register
func (h *Handler) handleRuntimeRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRuntimesRequest
	if err := parseJSONRequest(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if len(req.Images) == 0 {
		h.writeError(w, r, failure.InvalidInput("no image to register"))
		return
	}

	registered, err := h.runtimes.Register(r.Context(), req.Images)
	if err != nil && len(registered) == 0 {
		h.writeError(w, r, err)
		return
	}

	response := RegisterRuntimesResponse{
		Registered: registered,
	}

	if err != nil {
		h.logger.WarnContext(r.Context(), "some runtimes could not be registered", "error", err)
		response.Errors = splitErrors(err)
	}

	writeJSONResponse(w, http.StatusCreated, response)
}

// handleRuntimeUpload handles POST /api/runtimes/upload. The archive is
// streamed to a staging file without buffering the request in memory.
func (h *Handler) handleRuntimeUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reader, err := r.MultipartReader()
	if err != nil {
		h.writeError(w, r, failure.InvalidInput("expected a multipart request: %v", err))
		return
	}

	var stagedPath string

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.writeError(w, r, failure.InvalidInput("could not read multipart request: %v", err))
			return
		}

		if part.FormName() != "file" || part.FileName() == "" {
			part.Close()
			continue
		}

		ext, ok := imageArchiveExtension(part.FileName())
		if !ok {
			part.Close()
			h.writeError(w, r, failure.InvalidInput("unsupported image archive '%s', expected .tar, .tar.gz or .tgz", part.FileName()))
			return
		}

		temp, err := h.runtimeFiles.WriteTemp(io.LimitReader(part, h.opts.MaxRuntimeSize+1), ext)
		part.Close()
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		if temp.Size > h.opts.MaxRuntimeSize {
			h.runtimeFiles.Discard(temp.Path)
			h.writeError(w, r, failure.InvalidInput("image archive exceeds %d bytes", h.opts.MaxRuntimeSize))
			return
		}

		stagedPath = temp.Path

		break
	}

	if stagedPath == "" {
		h.writeError(w, r, failure.InvalidInput("no image archive provided"))
		return
	}

	repoTags, err := h.runtimes.Ingest(ctx, stagedPath)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, UploadRuntimeResponse{RepoTags: repoTags})
}

// handleRuntimeDelete handles DELETE /api/runtimes/{id}?fromDaemon=true
func (h *Handler) handleRuntimeDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	fromDaemon := false
	if raw := r.URL.Query().Get("fromDaemon"); raw != "" {
		fromDaemon, err = strconv.ParseBool(raw)
		if err != nil {
			h.writeError(w, r, failure.InvalidInput("invalid fromDaemon '%s'", raw))
			return
		}
	}

	if err := h.runtimes.Delete(r.Context(), id, fromDaemon); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func splitErrors(err error) []string {
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		return []string{err.Error()}
	}

	messages := make([]string, 0, len(merr.Errors))
	for _, e := range merr.Errors {
		messages = append(messages, e.Error())
	}

	return messages
}

var imageArchiveExtensions = []string{".tar.gz", ".tgz", ".tar"}

func imageArchiveExtension(filename string) (string, bool) {
	lower := strings.ToLower(filename)
	for _, ext := range imageArchiveExtensions {
		if strings.HasSuffix(lower, ext) {
			return ext, true
		}
	}

	return "", false
}

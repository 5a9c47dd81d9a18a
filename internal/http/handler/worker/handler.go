package worker

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bornholm/trainyard/internal/job"
)

// Handler exposes the callbacks used by training workers to report on the
// jobs they consume from the queue.
type Handler struct {
	mux    *http.ServeMux
	jobs   *job.Controller
	token  []byte
	logger *slog.Logger
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func NewHandler(jobs *job.Controller, token string, logger *slog.Logger) *Handler {
	h := &Handler{
		mux:    http.NewServeMux(),
		jobs:   jobs,
		token:  []byte(token),
		logger: logger.With("component", "worker-handler"),
	}

	h.mux.HandleFunc("POST /jobs/{jobID}/status", h.assertWorker(h.handleJobStatus))
	h.mux.HandleFunc("POST /jobs/{jobID}/model-versions", h.assertWorker(h.handleModelVersion))

	return h
}

func (h *Handler) assertWorker(next http.HandlerFunc) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization := r.Header.Get("Authorization")
		workerToken := strings.TrimPrefix(authorization, "Bearer ")

		if workerToken == "" || len(h.token) == 0 {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		if subtle.ConstantTimeCompare([]byte(workerToken), h.token) != 1 {
			h.logger.WarnContext(r.Context(), "invalid worker token", slog.String("remote_addr", r.RemoteAddr))

			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		next(w, r)
	})
}

// handleJobStatus handles POST /worker/jobs/{jobID}/status
func (h *Handler) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID, err := getJobIDFromPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var report job.Report
	if err := parseJSONRequest(r, &report); err != nil {
		h.writeError(w, r, err)
		return
	}

	updated, err := h.jobs.ReportStatus(ctx, jobID, report)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, JobStatusResponse{
		JobID:  updated.ID,
		Status: updated.Status,
	})

	h.logger.DebugContext(ctx, "job status reported",
		slog.Uint64("job_id", uint64(updated.ID)),
		slog.String("status", string(updated.Status)))
}

// handleModelVersion handles POST /worker/jobs/{jobID}/model-versions
func (h *Handler) handleModelVersion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID, err := getJobIDFromPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req ModelVersionRequest
	if err := parseJSONRequest(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if strings.TrimSpace(req.Path) == "" {
		h.writeError(w, r, errInvalidRequest("path is required"))
		return
	}

	version, err := h.jobs.RecordModelVersion(ctx, jobID, req.Path)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, version)

	h.logger.InfoContext(ctx, "model version recorded",
		slog.Uint64("job_id", uint64(jobID)),
		slog.Uint64("model_version_id", uint64(version.ID)))
}

var _ http.Handler = &Handler{}
